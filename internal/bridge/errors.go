package bridge

import (
	"github.com/samber/oops"

	"github.com/joeblew999/plat-mapbridge/internal/errutil"
)

// Error codes carried by bridge errors.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUpstreamFailure      = "UPSTREAM_FAILURE"
	CodeDoubleInitialization = "DOUBLE_INITIALIZATION"
)

func notFound(mapID string, kind Kind, id string) error {
	return oops.
		Code(CodeNotFound).
		With("map_id", mapID, "kind", string(kind), "id", id).
		Errorf("%s %q not found", kind, id)
}

func mapNotFound(mapID string) error {
	return oops.
		Code(CodeNotFound).
		With("map_id", mapID).
		Errorf("map %q not found", mapID)
}

func invalid(mapID string, format string, args ...any) error {
	return oops.
		Code(CodeValidationFailed).
		With("map_id", mapID).
		Errorf(format, args...)
}

func invalidWrap(mapID string, err error, msg string) error {
	return oops.
		Code(CodeValidationFailed).
		With("map_id", mapID).
		Wrapf(err, "%s", msg)
}

func upstream(mapID, op string, err error) error {
	return oops.
		Code(CodeUpstreamFailure).
		With("map_id", mapID, "op", op).
		Wrapf(err, "%s failed", op)
}

// IsNotFound reports whether err is a NotFound bridge error. Remove and
// update callers may treat it as a benign no-op.
func IsNotFound(err error) bool {
	return errutil.HasCode(err, CodeNotFound)
}

// IsValidation reports whether err is a ValidationFailed bridge error.
func IsValidation(err error) bool {
	return errutil.HasCode(err, CodeValidationFailed)
}

// IsUpstream reports whether err is an UpstreamFailure bridge error.
func IsUpstream(err error) bool {
	return errutil.HasCode(err, CodeUpstreamFailure)
}

// IsDoubleInitialization reports whether err rejects a repeated Setup.
func IsDoubleInitialization(err error) bool {
	return errutil.HasCode(err, CodeDoubleInitialization)
}

func errDoubleSetup(mapID string) error {
	return oops.
		Code(CodeDoubleInitialization).
		With("map_id", mapID).
		Errorf("map %q is already set up", mapID)
}
