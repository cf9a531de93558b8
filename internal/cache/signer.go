package cache

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Signer authenticates fragment urls with an HMAC over the key fingerprint.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(strings.TrimSpace(secret))}
}

// Enabled reports whether a secret is configured.
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Sign returns the hex token for keys, or "" without a secret.
func (s *Signer) Sign(keys Keys) string {
	if !s.Enabled() {
		return ""
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(Fingerprint(keys)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a token produced by Sign. Without a secret every token
// passes.
func (s *Signer) Verify(keys Keys, token string) bool {
	if !s.Enabled() {
		return true
	}
	expected, err := hex.DecodeString(s.Sign(keys))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// MatchesSecret compares token with the raw secret. The purge endpoint
// uses it. An unset secret matches nothing.
func (s *Signer) MatchesSecret(token string) bool {
	if !s.Enabled() || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare(s.secret, []byte(token)) == 1
}
