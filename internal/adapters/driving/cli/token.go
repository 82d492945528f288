package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Check that a token can be acquired",
	Long: `Acquire an access token with the configured client credentials and report
its type, expiry and audience. The token itself is never printed.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if err := loadServices(); err != nil {
		return err
	}
	if tokens == nil {
		return errors.New("token provider not configured")
	}

	token, err := tokens.GetToken(cmd.Context())
	if err != nil {
		return err
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	cmd.Printf("Token acquired (%s)\n", tokenType)
	cmd.Printf("Expires: %s (in %s)\n",
		token.ExpiresAt.Format(time.RFC3339), time.Until(token.ExpiresAt).Round(time.Second))

	if claims, ok := readClaims(token.AccessToken); ok {
		if claims.Audience != "" {
			cmd.Printf("Audience: %s\n", claims.Audience)
		}
		if claims.AppID != "" {
			cmd.Printf("App ID: %s\n", claims.AppID)
		}
		if len(claims.Roles) > 0 {
			cmd.Printf("Roles: %s\n", strings.Join(claims.Roles, ", "))
		}
	}
	return nil
}
