package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
)

// Base64PrivateKey is an ed25519 private key serialized as base64 in
// config.toml, rather than as a raw byte array, so the config file remains
// a single readable line per value.
type Base64PrivateKey struct {
	Key ed25519.PrivateKey
}

// UnmarshalTOML implements naoina/toml's unmarshaler interface.
func (k *Base64PrivateKey) UnmarshalTOML(data []byte) error {
	s := strings.Trim(string(data), `"`)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("config: decoding private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return fmt.Errorf("config: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	k.Key = ed25519.PrivateKey(raw)
	return nil
}

// MarshalTOML implements naoina/toml's marshaler interface.
func (k Base64PrivateKey) MarshalTOML() ([]byte, error) {
	return []byte(`"` + base64.StdEncoding.EncodeToString(k.Key) + `"`), nil
}
