// Package pkgid defines the core identifiers, version patterns, condition
// vocabulary, and the shared error taxonomy used across the package
// subsystem.
package pkgid

import "fmt"

// Code identifies one of the enumerated error kinds produced anywhere in
// the package subsystem. Call sites compare against the exported sentinels
// below with errors.Is, never by inspecting Error() text.
type Code string

const (
	CodeParseError               Code = "parse_error"
	CodeUndefinedVariable        Code = "undefined_variable"
	CodeEvaluationFailed         Code = "evaluation_failed"
	CodePermissionDenied         Code = "permission_denied"
	CodeUnsupportedEnvironment   Code = "unsupported_environment"
	CodeUnknownPackage           Code = "unknown_package"
	CodeConflict                 Code = "conflict"
	CodeMissingExtension         Code = "missing_extension"
	CodeExplicitDependencyUnmet  Code = "explicit_dependency_unmet"
	CodeExtensionCycle           Code = "extension_cycle"
	CodeAddonCollision           Code = "addon_collision"
	CodeRepoUnavailable          Code = "repo_unavailable"
	CodeCancelled                Code = "cancelled"
	CodeIntegrityFailure         Code = "integrity_failure"
)

// Error is the single concrete error type for the package subsystem. It
// carries the machine-readable Code, a human message, the chain of package
// ids that were being processed when the error occurred (for user display),
// and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Path    []string
	Cause   error
}

func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path: %v)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, pkgid.ErrConflict) style sentinel checks by
// matching on Code alone, ignoring message/path/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithPath returns a copy of e with the given package id prepended to its
// path, for building up a user-facing trail as an error propagates upward
// through the resolver.
func (e *Error) WithPath(id string) *Error {
	cp := *e
	cp.Path = append([]string{id}, e.Path...)
	return &cp
}

func newErr(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors for errors.Is comparisons; each carries only a Code, no
// message, so it is never returned directly — construct with the New*
// functions below and compare against these with errors.Is.
var (
	ErrParseError              = &Error{Code: CodeParseError}
	ErrUndefinedVariable       = &Error{Code: CodeUndefinedVariable}
	ErrEvaluationFailed        = &Error{Code: CodeEvaluationFailed}
	ErrPermissionDenied        = &Error{Code: CodePermissionDenied}
	ErrUnsupportedEnvironment  = &Error{Code: CodeUnsupportedEnvironment}
	ErrUnknownPackage          = &Error{Code: CodeUnknownPackage}
	ErrConflict                = &Error{Code: CodeConflict}
	ErrMissingExtension        = &Error{Code: CodeMissingExtension}
	ErrExplicitDependencyUnmet = &Error{Code: CodeExplicitDependencyUnmet}
	ErrExtensionCycle          = &Error{Code: CodeExtensionCycle}
	ErrAddonCollision          = &Error{Code: CodeAddonCollision}
	ErrRepoUnavailable         = &Error{Code: CodeRepoUnavailable}
	ErrCancelled               = &Error{Code: CodeCancelled}
	ErrIntegrityFailure        = &Error{Code: CodeIntegrityFailure}
)

func NewParseError(row, col int, msg string) *Error {
	return newErr(CodeParseError, "%s (line %d, col %d)", msg, row, col)
}

func NewUndefinedVariable(name string) *Error {
	return newErr(CodeUndefinedVariable, "undefined variable $%s", name)
}

func NewEvaluationFailed(reason string) *Error {
	return newErr(CodeEvaluationFailed, "%s", reason)
}

func NewPermissionDenied(capability string) *Error {
	return newErr(CodePermissionDenied, "capability %q requires elevated permission", capability)
}

func NewUnsupportedEnvironment(addonID string) *Error {
	if addonID == "" {
		return newErr(CodeUnsupportedEnvironment, "package is not supported in this environment")
	}
	return newErr(CodeUnsupportedEnvironment, "addon %q is not supported in this environment", addonID)
}

func NewUnknownPackage(id string) *Error {
	return newErr(CodeUnknownPackage, "unknown package %q", id)
}

func NewConflict(a, b string) *Error {
	return newErr(CodeConflict, "package %q conflicts with %q", a, b)
}

func NewMissingExtension(id string) *Error {
	return newErr(CodeMissingExtension, "extension target %q is missing from the plan", id)
}

func NewExplicitDependencyUnmet(id string) *Error {
	return newErr(CodeExplicitDependencyUnmet, "explicit dependency %q was not requested by the user", id)
}

func NewExtensionCycle(ids []string) *Error {
	return newErr(CodeExtensionCycle, "extension cycle among %v", ids)
}

func NewAddonCollision(addonID, a, b string) *Error {
	return newErr(CodeAddonCollision, "addon %q is provided by both %q and %q", addonID, a, b)
}

func NewRepoUnavailable(repo string) *Error {
	return newErr(CodeRepoUnavailable, "repository %q is unavailable", repo)
}

func NewCancelled() *Error {
	return newErr(CodeCancelled, "operation cancelled")
}

func NewIntegrityFailure(key string) *Error {
	return newErr(CodeIntegrityFailure, "integrity check failed for %q", key)
}

// NewUnknownContentType reports a repository index entry whose content_type
// is neither "script" nor "declarative".
func NewUnknownContentType(id string) *Error {
	return newErr(CodeParseError, "package %q has an unknown content_type", id)
}
