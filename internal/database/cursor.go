package database

import (
	"encoding/base64"
	"strings"
)

// Cursors are opaque resumption tokens for paginated queries. They encode
// the sort-key values of the last item of a page; the next page filters on
// "strictly after" those values. Base64 keeps them URL-safe.

const cursorSep = "|"

// encodeCursor packs sort-key parts into an opaque cursor.
func encodeCursor(parts ...string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, cursorSep)))
}

// decodeCursor unpacks a cursor into exactly n parts. An empty or malformed
// cursor yields ok=false, which callers treat as "start from the beginning"
// rather than an error: a stale cursor must not break a list call.
func decodeCursor(cursor string, n int) ([]string, bool) {
	if cursor == "" {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, false
	}
	parts := strings.Split(string(raw), cursorSep)
	if len(parts) != n {
		return nil, false
	}
	return parts, true
}
