package projectfiles

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// EncodeCursor serializes a table continuation key into an opaque cursor.
func EncodeCursor(key *Key) string {
	if key == nil {
		return ""
	}
	data, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor produced by EncodeCursor for the given
// partition. Undecodable cursors and cursors from another partition yield
// nil, so the listing restarts from the beginning.
func DecodeCursor(cursor, partitionKey, sortKeyPrefix string) *Key {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(cursor, "="))
	if err != nil {
		return nil
	}
	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil
	}
	if key.PK != partitionKey || !strings.HasPrefix(key.SK, sortKeyPrefix) {
		return nil
	}
	return &key
}
