// Package analysis persists versioned configurations, indicator
// calculations, per-symbol analysis results and signals, and runs the
// indicator-to-signal pipeline for one symbol inside one transaction.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint returns the canonical content hash of a config payload.
// The payload is marshalled to JSON, re-parsed and re-serialized with
// sorted keys at every nesting level, so two structurally equal configs
// hash identically regardless of field order.
func Fingerprint(config interface{}) (string, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config for fingerprint: %w", err)
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to reparse config for fingerprint: %w", err)
	}

	canonical, err := canonicalize(parsed)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize serializes a decoded JSON value with object keys sorted.
func canonicalize(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, keyJSON...)
			out = append(out, ':')
			valueJSON, err := canonicalize(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, valueJSON...)
		}
		return append(out, '}'), nil

	case []interface{}:
		out := []byte{'['}
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			itemJSON, err := canonicalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, itemJSON...)
		}
		return append(out, ']'), nil

	default:
		return json.Marshal(val)
	}
}
