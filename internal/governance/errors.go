package governance

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrConfigInvalid is matched by every *ConfigInvalidError.
var ErrConfigInvalid = errors.New("judge config invalid")

// ConfigInvalidError reports a malformed SSOT or effective config. Runs abort
// on it.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigInvalid, e.Reason)
}

// Is lets errors.Is(err, ErrConfigInvalid) match.
func (e *ConfigInvalidError) Is(target error) bool {
	return target == ErrConfigInvalid
}

func configInvalid(format string, args ...any) error {
	return &ConfigInvalidError{Reason: fmt.Sprintf(format, args...)}
}

// PatchErrorCode classifies a single patch violation.
type PatchErrorCode string

const (
	CodeInvalidPatchSchema PatchErrorCode = "INVALID_PATCH_SCHEMA"
	CodeUnknownKeys        PatchErrorCode = "UNKNOWN_KEYS"
	CodeSSOTHashMismatch   PatchErrorCode = "SSOT_HASH_MISMATCH"
	CodePathNotAllowed     PatchErrorCode = "PATH_NOT_ALLOWED"
	CodeValueTypeMismatch  PatchErrorCode = "VALUE_TYPE_MISMATCH"
	CodeValueOutOfRange    PatchErrorCode = "VALUE_OUT_OF_RANGE"
	CodeValueNotInEnum     PatchErrorCode = "VALUE_NOT_IN_ENUM"
	CodeEnumNotSubset      PatchErrorCode = "ENUM_NOT_SUBSET"
)

// PatchError is one field-level violation.
type PatchError struct {
	Code    PatchErrorCode `json:"code"`
	Path    string         `json:"path"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// PatchRejectedError carries every violation found for a patch and the HTTP
// status the rejection maps to (400 validation, 409 stale base).
type PatchRejectedError struct {
	Status   int
	SSOTHash string
	Errors   []PatchError
}

func (e *PatchRejectedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s:%s", pe.Code, pe.Path))
	}
	return fmt.Sprintf("config patch rejected (%d): %s", e.Status, strings.Join(parts, ","))
}

// IsConflict reports whether the rejection is a stale-base conflict.
func (e *PatchRejectedError) IsConflict() bool {
	return e.Status == http.StatusConflict
}

func rejectValidation(hash string, errs []PatchError) *PatchRejectedError {
	return &PatchRejectedError{Status: http.StatusBadRequest, SSOTHash: hash, Errors: errs}
}

func rejectHashMismatch(path, got, expected string) *PatchRejectedError {
	return &PatchRejectedError{
		Status:   http.StatusConflict,
		SSOTHash: expected,
		Errors: []PatchError{{
			Code:    CodeSSOTHashMismatch,
			Path:    path,
			Message: fmt.Sprintf("ssot_hash mismatch: got=%s expected=%s", got, expected),
		}},
	}
}
