package governance

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-version"

	"github.com/geox/judge/internal/canon"
)

// SupportedSchemaMajor is the only SSOT schema major this build understands.
const SupportedSchemaMajor = 1

// SSOT is one loaded snapshot of the single-source-of-truth document.
type SSOT struct {
	// Source names where the document came from (file path).
	Source string
	// Doc is the raw JSON tree; the hash covers all of it.
	Doc    map[string]any
	Hash   string
	Config JudgeConfig
}

// LoadSSOT reads and validates the SSOT file at path.
func LoadSSOT(path string) (*SSOT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read judge SSOT %q: %w", path, err)
	}
	ssot, err := ParseSSOT(data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load judge SSOT %q: %w", path, err)
	}
	return ssot, nil
}

// ParseSSOT validates data as an SSOT document and fingerprints it.
func ParseSSOT(data []byte, source string) (*SSOT, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, configInvalid("not valid JSON: %v", err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, configInvalid("judge config must be an object")
	}
	return NewSSOT(doc, source)
}

// NewSSOT validates doc and wraps it. doc is not copied.
func NewSSOT(doc map[string]any, source string) (*SSOT, error) {
	if err := ValidateEffectiveConfig(doc); err != nil {
		return nil, err
	}
	cfg, err := DecodeConfig(doc)
	if err != nil {
		return nil, err
	}
	hash, err := Hash(doc)
	if err != nil {
		return nil, err
	}
	return &SSOT{Source: source, Doc: doc, Hash: hash, Config: cfg}, nil
}

// Hash fingerprints a config document: "sha256:" + hex over the canonical form.
func Hash(doc map[string]any) (string, error) {
	h, err := canon.PrefixedHash(doc)
	if err != nil {
		return "", configInvalid("hash: %v", err)
	}
	return h, nil
}

// ValidateEffectiveConfig guards the anchors every config must carry. It is
// not a full schema check.
func ValidateEffectiveConfig(doc map[string]any) error {
	if doc == nil {
		return configInvalid("judge config must be an object")
	}

	sv, ok := doc["schema_version"].(string)
	if !ok {
		return configInvalid("schema_version must be string")
	}
	v, err := version.NewVersion(sv)
	if err != nil {
		return configInvalid("schema_version %q is not a version: %v", sv, err)
	}
	if major := v.Segments()[0]; major != SupportedSchemaMajor {
		return configInvalid("schema_version %q: unsupported major %d", sv, major)
	}

	if name, present := doc["name"]; present && name != nil {
		if _, ok := name.(string); !ok {
			return configInvalid("name must be string when present")
		}
	}
	if !isStringList(doc["required_metrics"]) {
		return configInvalid("required_metrics must be string[] (got %s)", describe(doc["required_metrics"]))
	}
	if _, err := mustObject(doc["evidence"], "evidence"); err != nil {
		return err
	}
	marker, err := mustObject(doc["marker"], "marker")
	if err != nil {
		return err
	}
	if !isStringList(marker["exclusion_kinds"]) {
		return configInvalid("marker.exclusion_kinds must be string[]")
	}
	det, ok := doc["determinism"].(map[string]any)
	if !ok {
		return configInvalid("determinism.tie_breaker must be string")
	}
	if _, ok := det["tie_breaker"].(string); !ok {
		return configInvalid("determinism.tie_breaker must be string")
	}
	return nil
}
