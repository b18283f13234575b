package models

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

const cursorPrefix = "permit:"

// EncodeCursor turns a row id into an opaque page cursor.
func EncodeCursor(id int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(id)))
}

// DecodeCursor reverses EncodeCursor. A nil or empty cursor decodes to 0,
// meaning "first page".
func DecodeCursor(cursor *string) (int, error) {
	if cursor == nil || *cursor == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return 0, errors.New("invalid cursor")
	}
	decoded := string(raw)
	if !strings.HasPrefix(decoded, cursorPrefix) {
		return 0, errors.New("invalid cursor")
	}
	id, err := strconv.Atoi(strings.TrimPrefix(decoded, cursorPrefix))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid cursor")
	}
	return id, nil
}
