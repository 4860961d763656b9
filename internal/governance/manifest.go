package governance

import (
	"time"
)

// FieldType is the value type an editable path accepts.
type FieldType string

const (
	FieldInt      FieldType = "int"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "bool"
	FieldEnumList FieldType = "enum_list"
)

// ConditionExistsInSSOT keeps a path editable only while the live SSOT has it.
const ConditionExistsInSSOT = "exists_in_ssot"

const (
	PatchVersion      = "1.0.0"
	OpReplace         = "replace"
	UnknownKeysReject = "reject"
)

// EditableField is one allowlisted dot-path.
type EditableField struct {
	Path        string    `json:"path"`
	Type        FieldType `json:"type"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Conditional string    `json:"conditional,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ManifestSSOT fingerprints the document a manifest was derived from.
type ManifestSSOT struct {
	Source        string `json:"source"`
	SchemaVersion string `json:"schema_version"`
	SSOTHash      string `json:"ssot_hash"`
	UpdatedAtTs   int64  `json:"updated_at_ts"`
}

// ManifestPatch advertises the accepted patch dialect.
type ManifestPatch struct {
	PatchVersion      string   `json:"patch_version"`
	OpAllowed         []string `json:"op_allowed"`
	UnknownKeysPolicy string   `json:"unknown_keys_policy"`
}

// Manifest is the only source of editing capability offered to clients.
type Manifest struct {
	SSOT          ManifestSSOT    `json:"ssot"`
	Patch         ManifestPatch   `json:"patch"`
	Editable      []EditableField `json:"editable"`
	Defaults      map[string]any  `json:"defaults"`
	ReadOnlyHints []string        `json:"read_only_hints"`
}

// Lookup returns the editable entry for path.
func (m *Manifest) Lookup(path string) (EditableField, bool) {
	for _, f := range m.Editable {
		if f.Path == path {
			return f, true
		}
	}
	return EditableField{}, false
}

// ReadOnlyHints lists paths clients may display but never patch.
var ReadOnlyHints = []string{
	"schema_version",
	"name",
	"required_metrics",
	"evidence",
	"marker.exclusion_kinds",
	"determinism",
	"determinism.tie_breaker",
}

// BuildManifest derives the frozen v1 manifest from a loaded SSOT.
func BuildManifest(ssot *SSOT, now time.Time) *Manifest {
	cfg := ssot.Config
	editable := make([]EditableField, 0, len(accessors))
	defaults := make(map[string]any, len(accessors))

	for _, a := range accessors {
		f := a.field
		if f.Conditional == ConditionExistsInSSOT && !a.present(&cfg) {
			continue
		}
		if f.Type == FieldEnumList {
			// The enum is whatever the live SSOT enables; patches may only narrow it.
			f.Enum = append([]string{}, a.get(&cfg).([]string)...)
		}
		editable = append(editable, f)
		defaults[f.Path] = a.get(&cfg)
	}

	return &Manifest{
		SSOT: ManifestSSOT{
			Source:        ssot.Source,
			SchemaVersion: cfg.SchemaVersion,
			SSOTHash:      ssot.Hash,
			UpdatedAtTs:   now.UnixMilli(),
		},
		Patch: ManifestPatch{
			PatchVersion:      PatchVersion,
			OpAllowed:         []string{OpReplace},
			UnknownKeysPolicy: UnknownKeysReject,
		},
		Editable:      editable,
		Defaults:      defaults,
		ReadOnlyHints: append([]string{}, ReadOnlyHints...),
	}
}
