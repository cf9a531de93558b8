package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-pagecms/internal/identity"
	"github.com/spf13/cast"
)

// Required key names. Every block cache lookup carries all four; updated_at
// makes an edited block miss its previous entry without an explicit flush.
const (
	KeyBlockID   = "block_id"
	KeyPageID    = "page_id"
	KeyManager   = "manager"
	KeyUpdatedAt = "updated_at"
)

// RequiredKeys lists the key names ValidateKeys checks, in report order.
var RequiredKeys = []string{KeyBlockID, KeyPageID, KeyManager, KeyUpdatedAt}

// ErrKeysIncomplete is returned, wrapped in MissingKeysError, when a key map
// lacks a required key. It is a programming error, never a cache miss.
var ErrKeysIncomplete = errors.New("cache: required keys missing")

// Keys identifies a cached block rendering.
type Keys map[string]any

// MissingKeysError names the required keys absent from a key map.
type MissingKeysError struct {
	Missing []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("%s: %s", ErrKeysIncomplete.Error(), strings.Join(e.Missing, ", "))
}

func (e *MissingKeysError) Unwrap() error {
	return ErrKeysIncomplete
}

// ValidateKeys fails when any required key is absent, nil or blank.
func ValidateKeys(keys Keys) error {
	var missing []string
	for _, name := range RequiredKeys {
		value, ok := keys[name]
		if !ok || value == nil || strings.TrimSpace(cast.ToString(value)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Missing: missing}
	}
	return nil
}

// Fingerprint renders keys as sorted name=value pairs.
func Fingerprint(keys Keys) string {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(cast.ToString(keys[name]))
	}
	return b.String()
}

// HashKeys returns the storage key of a key map. Maps that differ only in
// value representation, such as 5 and "5", hash alike.
func HashKeys(keys Keys) string {
	return identity.CacheKey(Fingerprint(keys))
}

// StringKeys returns keys with every value rendered as a string.
func StringKeys(keys Keys) map[string]string {
	out := make(map[string]string, len(keys))
	for name, value := range keys {
		out[name] = cast.ToString(value)
	}
	return out
}

// Clone copies keys.
func (k Keys) Clone() Keys {
	if k == nil {
		return nil
	}
	out := make(Keys, len(k))
	for name, value := range k {
		out[name] = value
	}
	return out
}

// Matches reports whether every entry of subset is present in k with the
// same string value.
func (k Keys) Matches(subset Keys) bool {
	for name, value := range subset {
		got, ok := k[name]
		if !ok || cast.ToString(got) != cast.ToString(value) {
			return false
		}
	}
	return true
}
