package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyScheme    = "tpl"
	prefixBytes  = 4
	secretBytes  = 24
	prefixLength = len(keyScheme) + 1 + prefixBytes*2
)

// NewAPIKey generates a plaintext key of the form "tpl_<8 hex>_<48 hex>" and
// returns it together with its lookup prefix ("tpl_<8 hex>").
func NewAPIKey() (key string, prefix string, err error) {
	p := make([]byte, prefixBytes)
	if _, err := rand.Read(p); err != nil {
		return "", "", err
	}
	s := make([]byte, secretBytes)
	if _, err := rand.Read(s); err != nil {
		return "", "", err
	}
	prefix = fmt.Sprintf("%s_%s", keyScheme, hex.EncodeToString(p))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(s)), prefix, nil
}

// KeyPrefix returns the lookup prefix of a plaintext key, or false when the
// key is not shaped like one produced by NewAPIKey.
func KeyPrefix(key string) (string, bool) {
	if len(key) <= prefixLength+1 || !strings.HasPrefix(key, keyScheme+"_") {
		return "", false
	}
	if key[prefixLength] != '_' {
		return "", false
	}
	return key[:prefixLength], true
}
