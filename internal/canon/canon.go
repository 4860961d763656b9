// Package canon produces the canonical JSON form used for every hash the
// judge publishes: object keys sorted lexicographically at every depth,
// arrays kept in order, no HTML escaping, no insignificant whitespace.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashPrefix marks config fingerprints.
const HashPrefix = "sha256:"

// Marshal returns the canonical JSON encoding of v. Structs are reduced to
// their JSON object form first so their tags, not field order, decide keys.
func Marshal(v any) ([]byte, error) {
	tree, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return encode(tree)
}

// String is Marshal as a string.
func String(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Normalize converts v to a tree of map[string]any, []any, string, float64,
// bool and nil. Numbers follow JSON semantics (float64).
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	b, err := encode(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}
	return tree, nil
}

// CloneObject deep-copies a JSON object by round-tripping it through the
// canonical form. The result shares nothing with doc.
func CloneObject(doc map[string]any) (map[string]any, error) {
	tree, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	out, ok := tree.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return out, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Hash returns the hex SHA-256 of the canonical form of v.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// PrefixedHash is Hash with the "sha256:" fingerprint prefix.
func PrefixedHash(v any) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return HashPrefix + h, nil
}

// ShortID builds "<prefix>_<first 24 hex chars of Hash(v)>".
func ShortID(prefix string, v any) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return prefix + "_" + h[:24], nil
}

// ShortIDFromString hashes s verbatim rather than its JSON form.
func ShortIDFromString(prefix, s string) string {
	return prefix + "_" + SHA256Hex([]byte(s))[:24]
}

// encoding/json sorts map keys, which is what makes the output canonical
// once structs have been flattened to maps.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
