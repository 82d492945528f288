// Package odata builds and executes OData v4 requests against Dynamics 365
// Dataverse and Finance & Operations endpoints.
package odata

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

const upperhex = "0123456789ABCDEF"

// ToQueryString serialises spec into an OData query string without the leading "?".
// Parameters appear in a fixed order; $top is always present and clamped.
// Filter and orderby expressions are passed through unvalidated.
func ToQueryString(spec *domain.QuerySpec) string {
	params := make([]string, 0, 7)

	if f := strings.TrimSpace(spec.Filter); f != "" {
		params = append(params, "$filter="+EscapeQueryValue(f))
	}
	if sel := joinFields(spec.Select); sel != "" {
		params = append(params, "$select="+EscapeQueryValue(sel))
	}
	if exp := joinFields(spec.Expand); exp != "" {
		params = append(params, "$expand="+EscapeQueryValue(exp))
	}
	if ob := strings.TrimSpace(spec.OrderBy); ob != "" {
		params = append(params, "$orderby="+EscapeQueryValue(ob))
	}
	params = append(params, "$top="+strconv.Itoa(spec.EffectiveTop()))
	if spec.Skip > 0 {
		params = append(params, "$skip="+strconv.Itoa(spec.Skip))
	}
	if spec.Count {
		params = append(params, "$count=true")
	}

	return strings.Join(params, "&")
}

// EntityQueryString serialises the options that apply to a single-record read:
// $select and $expand only.
func EntityQueryString(spec *domain.QuerySpec) string {
	var params []string
	if sel := joinFields(spec.Select); sel != "" {
		params = append(params, "$select="+EscapeQueryValue(sel))
	}
	if exp := joinFields(spec.Expand); exp != "" {
		params = append(params, "$expand="+EscapeQueryValue(exp))
	}
	return strings.Join(params, "&")
}

// EscapeQueryValue percent-encodes s for use as an OData query option value.
// OData punctuation (quotes, commas, parentheses, $, /, :, @, *, !) is left
// readable; separators that would end the value (&, =, #, +, %) are escaped,
// as are spaces (%20, never "+").
func EscapeQueryValue(s string) string {
	return escape(s, isQuerySafe)
}

// EscapeKey percent-encodes an entity key for use inside "EntitySet(<key>)".
// Composite keys such as dataAreaId='usmf',CustomerAccount='US-001' keep their
// separators.
func EscapeKey(s string) string {
	return escape(s, isKeySafe)
}

// EntityPath returns "<entity>(<key>)".
func EntityPath(entity, key string) string {
	return entity + "(" + EscapeKey(key) + ")"
}

func escape(s string, safe func(byte) bool) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !safe(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func isQuerySafe(c byte) bool {
	if isUnreserved(c) {
		return true
	}
	switch c {
	case '\'', ',', '(', ')', '$', '/', ':', '@', '*', '!':
		return true
	}
	return false
}

func isKeySafe(c byte) bool {
	if isUnreserved(c) {
		return true
	}
	switch c {
	case '\'', ',', '=', ':', '@', '*', '!', '$':
		return true
	}
	return false
}

// joinFields trims, drops empties and de-duplicates while keeping the first
// occurrence order.
func joinFields(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, ",")
}
