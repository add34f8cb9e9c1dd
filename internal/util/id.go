package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// TempID returns a provisional identifier for an item that has not yet been
// assigned a permanent id by the document store. The timestamp keeps ids
// roughly ordered per action; the random suffix covers same-millisecond
// collisions.
func TempID() string {
	bytes := make([]byte, 4)
	_, _ = rand.Read(bytes)
	return fmt.Sprintf("temp_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(bytes))
}

// IsTempID reports whether id is a provisional client-generated id.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "temp_")
}
