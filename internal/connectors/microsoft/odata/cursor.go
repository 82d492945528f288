package odata

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// ErrInvalidCursor indicates the cursor could not be decoded.
var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", domain.ErrInvalidInput)

// Cursor lets a caller resume a collection query from the server's next link.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`
	// Entity is the entity set the link belongs to.
	Entity string `json:"entity"`
	// NextLink is the @odata.nextLink to fetch next.
	NextLink string `json:"next_link"`
	// CrossCompany is replayed as a header on resumed F&O pages.
	CrossCompany bool `json:"cross_company,omitempty"`
}

// NewCursor creates a cursor pointing at nextLink.
func NewCursor(entity, nextLink string, crossCompany bool) *Cursor {
	return &Cursor{
		Version:      CursorVersion,
		Entity:       entity,
		NextLink:     nextLink,
		CrossCompany: crossCompany,
	}
}

// Encode serialises the cursor to an opaque base64 string.
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor from a base64 string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, ErrInvalidCursor
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	if cursor.Version < 1 || cursor.Version > CursorVersion {
		return nil, ErrInvalidCursor
	}
	if cursor.NextLink == "" || cursor.Entity == "" {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}
