package payments

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	zapKeyPrefix = "zap_key"
	zapKeyLength = 16
)

var zapKeySuffix = regexp.MustCompile(`^[a-f0-9]{9,}$`)

// ValidKey is a structural check on a tenant key. It does no I/O and runs
// before any datastore lookup.
func ValidKey(key string) bool {
	if len(key) != zapKeyLength || !strings.HasPrefix(key, zapKeyPrefix) {
		return false
	}
	return zapKeySuffix.MatchString(key[len(zapKeyPrefix):])
}

// GenerateKey returns a fresh tenant key that passes ValidKey.
func GenerateKey() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	key := zapKeyPrefix + hex.EncodeToString(buf)
	return key[:zapKeyLength], nil
}
