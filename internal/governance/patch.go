package governance

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/geox/judge/internal/canon"
)

// Patch is a decoded, replace-only config patch bound to one SSOT hash.
type Patch struct {
	PatchVersion string    `json:"patch_version"`
	Base         PatchBase `json:"base"`
	Ops          []PatchOp `json:"ops"`
}

type PatchBase struct {
	SSOTHash string `json:"ssot_hash"`
}

type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// ChangedPaths returns the op paths, sorted.
func (p *Patch) ChangedPaths() []string {
	out := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		out = append(out, strings.TrimSpace(op.Path))
	}
	sort.Strings(out)
	return out
}

// DecodePatch converts a validated generic patch into a Patch.
func DecodePatch(raw any) (*Patch, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	var p Patch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return &p, nil
}

// PatchBaseHash extracts patch.base.ssot_hash without validating anything
// else. Missing or non-string values yield "".
func PatchBaseHash(raw any) string {
	p, _ := raw.(map[string]any)
	base, _ := p["base"].(map[string]any)
	h, _ := base["ssot_hash"].(string)
	return h
}

func unknownKeys(obj map[string]any, allow ...string) []string {
	var out []string
	for k := range obj {
		known := false
		for _, a := range allow {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func unknownKeysError(path string, keys []string) PatchError {
	return PatchError{Code: CodeUnknownKeys, Path: path, Message: "unknown keys: " + strings.Join(keys, ",")}
}

func schemaError(path, msg string) PatchError {
	return PatchError{Code: CodeInvalidPatchSchema, Path: path, Message: msg}
}

// ValidateEnvelope checks the {base, patch, dryRun} request wrapper.
func ValidateEnvelope(body any) []PatchError {
	obj, ok := body.(map[string]any)
	if !ok {
		return []PatchError{schemaError("", "body must be object")}
	}

	var errs []PatchError
	if uk := unknownKeys(obj, "base", "patch", "dryRun"); len(uk) > 0 {
		errs = append(errs, unknownKeysError("", uk))
	}
	if base, ok := obj["base"].(map[string]any); !ok {
		errs = append(errs, schemaError("base", "base must be object"))
	} else {
		if uk := unknownKeys(base, "ssot_hash"); len(uk) > 0 {
			errs = append(errs, unknownKeysError("base", uk))
		}
		if _, ok := base["ssot_hash"].(string); !ok {
			errs = append(errs, schemaError("base.ssot_hash", "ssot_hash must be string"))
		}
	}
	if _, ok := obj["patch"].(map[string]any); !ok {
		errs = append(errs, schemaError("patch", "patch must be object"))
	}
	if v, present := obj["dryRun"]; present {
		if _, ok := v.(bool); !ok {
			errs = append(errs, schemaError("dryRun", "dryRun must be boolean"))
		}
	}
	return errs
}

// ValidatePatch checks a generic patch against the manifest allowlist and
// returns every violation, in op order. It never stops at the first error
// except when ops is not a list.
func ValidatePatch(raw any, m *Manifest) []PatchError {
	patch, ok := raw.(map[string]any)
	if !ok {
		return []PatchError{schemaError("patch", "patch must be object")}
	}

	var errs []PatchError
	if uk := unknownKeys(patch, "patch_version", "base", "ops"); len(uk) > 0 {
		errs = append(errs, unknownKeysError("patch", uk))
	}
	if v, _ := patch["patch_version"].(string); v != PatchVersion {
		errs = append(errs, schemaError("patch.patch_version", "patch_version must be "+PatchVersion))
	}
	if base, ok := patch["base"].(map[string]any); !ok {
		errs = append(errs, schemaError("patch.base", "base must be object"))
	} else {
		if uk := unknownKeys(base, "ssot_hash"); len(uk) > 0 {
			errs = append(errs, unknownKeysError("patch.base", uk))
		}
		if _, ok := base["ssot_hash"].(string); !ok {
			errs = append(errs, schemaError("patch.base.ssot_hash", "ssot_hash must be string"))
		}
	}

	ops, ok := patch["ops"].([]any)
	if !ok {
		return append(errs, schemaError("patch.ops", "ops must be array"))
	}

	for i, rawOp := range ops {
		basePath := fmt.Sprintf("patch.ops[%d]", i)
		op, ok := rawOp.(map[string]any)
		if !ok {
			errs = append(errs, schemaError(basePath, "op must be object"))
			continue
		}
		if uk := unknownKeys(op, "op", "path", "value"); len(uk) > 0 {
			errs = append(errs, unknownKeysError(basePath, uk))
		}
		if kind, _ := op["op"].(string); kind != OpReplace {
			errs = append(errs, schemaError(basePath+".op", "op must be replace"))
		}
		path, _ := op["path"].(string)
		path = strings.TrimSpace(path)
		if path == "" {
			errs = append(errs, schemaError(basePath+".path", "path must be string"))
			continue
		}
		field, ok := m.Lookup(path)
		if !ok {
			errs = append(errs, PatchError{
				Code:    CodePathNotAllowed,
				Path:    basePath + ".path",
				Message: "path not allowed: " + path,
			})
			continue
		}
		errs = append(errs, validateValue(field, op["value"], basePath+".value")...)
	}
	return errs
}

func validateValue(f EditableField, v any, path string) []PatchError {
	mismatch := func(msg string) []PatchError {
		return []PatchError{{Code: CodeValueTypeMismatch, Path: path, Message: msg}}
	}

	switch f.Type {
	case FieldBool:
		if _, ok := v.(bool); !ok {
			return mismatch("value must be boolean")
		}
	case FieldInt:
		n, ok := asNumber(v)
		if !ok || n != math.Trunc(n) {
			return mismatch("value must be int")
		}
		return checkRange(f, n, path)
	case FieldNumber:
		n, ok := asNumber(v)
		if !ok {
			return mismatch("value must be number")
		}
		return checkRange(f, n, path)
	case FieldEnumList:
		values, ok := asStrings(v)
		if !ok {
			return mismatch("value must be string[]")
		}
		allowed := make(map[string]bool, len(f.Enum))
		for _, e := range f.Enum {
			allowed[e] = true
		}
		seen := make(map[string]bool, len(values))
		var invalid []string
		for _, s := range values {
			if seen[s] {
				continue
			}
			seen[s] = true
			if !allowed[s] {
				invalid = append(invalid, s)
			}
		}
		if len(invalid) > 0 {
			return []PatchError{{
				Code:    CodeEnumNotSubset,
				Path:    path,
				Message: "value must be subset of enum; invalid: " + strings.Join(invalid, ","),
				Meta:    map[string]any{"enum": append([]string{}, f.Enum...)},
			}}
		}
	}
	return nil
}

func checkRange(f EditableField, n float64, path string) []PatchError {
	var errs []PatchError
	meta := func() map[string]any {
		out := map[string]any{}
		if f.Min != nil {
			out["min"] = *f.Min
		}
		if f.Max != nil {
			out["max"] = *f.Max
		}
		return out
	}
	if f.Min != nil && n < *f.Min {
		errs = append(errs, PatchError{Code: CodeValueOutOfRange, Path: path, Message: "value below min", Meta: meta()})
	}
	if f.Max != nil && n > *f.Max {
		errs = append(errs, PatchError{Code: CodeValueOutOfRange, Path: path, Message: "value above max", Meta: meta()})
	}
	return errs
}

func asNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// ApplyPatch returns a new document with every op applied. doc is never
// modified. The patch is assumed to be validated.
func ApplyPatch(doc map[string]any, p *Patch) (map[string]any, error) {
	out, err := canon.CloneObject(doc)
	if err != nil {
		return nil, fmt.Errorf("clone config: %w", err)
	}
	for _, op := range p.Ops {
		value, err := canon.Normalize(op.Value)
		if err != nil {
			return nil, fmt.Errorf("patch value for %s: %w", op.Path, err)
		}
		setPath(out, strings.TrimSpace(op.Path), value)
	}
	return out, nil
}

// setPath assigns value at a dot-path, replacing non-object intermediates
// with fresh objects.
func setPath(obj map[string]any, dotPath string, value any) {
	parts := strings.Split(dotPath, ".")
	cur := obj
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
