package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor wraps a comment id into the opaque page token handed out to
// clients. The token carries the id only; the sort value it pairs with is
// resolved server side when the token comes back.
func EncodeCursor(id int64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

func DecodeCursor(s string) (int64, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: non-positive id", ErrInvalidCursor)
	}
	return id, nil
}
