package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// IsCheckboxChecked normalizes the three truthy checkbox encodings clients
// send (true, 1, "on") into a single bool at the boundary. Everything else is
// unchecked.
func IsCheckboxChecked(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v == 1
	case float64:
		// JSON numbers decode to float64
		return v == 1
	case string:
		return v == "on"
	}
	return false
}

// HashString returns the hex-encoded SHA-256 digest of content.
func HashString(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
