// Package errors provides structured error handling for netmapper operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors raised during target expansion, probing, and vendor lookup.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Target expansion errors. These are setup errors: they abort a
	// session before any probing starts.
	CodeTargetInvalid     ErrorCode = "TARGET_INVALID"
	CodeTargetSetTooLarge ErrorCode = "TARGET_SET_TOO_LARGE"

	// Probe errors.
	CodeHostUnreachable ErrorCode = "HOST_UNREACHABLE"
	CodeProbeFailed     ErrorCode = "PROBE_FAILED"
	CodeToolMissing     ErrorCode = "TOOL_MISSING"

	// Vendor lookup errors.
	CodeVendorLookup  ErrorCode = "VENDOR_LOOKUP"
	CodeVendorTimeout ErrorCode = "VENDOR_TIMEOUT"
)

// TargetError represents an error produced while expanding a target
// specification into a concrete set of addresses.
type TargetError struct {
	Code    ErrorCode
	Message string
	Spec    string
	Cause   error
}

// Error implements the error interface.
func (e *TargetError) Error() string {
	if e.Spec != "" {
		return fmt.Sprintf("[%s] %s (spec: %s)", e.Code, e.Message, e.Spec)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TargetError) Unwrap() error {
	return e.Cause
}

// NewTargetError creates a target expansion error for a specification string.
func NewTargetError(code ErrorCode, message, spec string) *TargetError {
	return &TargetError{
		Code:    code,
		Message: message,
		Spec:    spec,
	}
}

// WrapTargetError wraps an existing error as a target expansion error.
func WrapTargetError(code ErrorCode, message, spec string, err error) *TargetError {
	return &TargetError{
		Code:    code,
		Message: message,
		Spec:    spec,
		Cause:   err,
	}
}

// ProbeError represents an error that occurred while probing a single host.
// Ordinary network failures (refused, unreachable, timed out) are result
// values, not ProbeErrors; this type is reserved for setup-level failures
// such as a missing external tool.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// NewProbeError creates a new probe error with the specified code and message.
func NewProbeError(code ErrorCode, message string) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
	}
}

// WrapProbeError wraps an error raised while probing a target.
func WrapProbeError(code ErrorCode, message, target string, err error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// VendorError represents a MAC vendor resolution failure. Vendor errors
// degrade to an "Unknown" vendor entry and are never fatal to a session.
type VendorError struct {
	Code    ErrorCode
	Message string
	Prefix  string
	Cause   error
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	if e.Prefix != "" {
		return fmt.Sprintf("[%s] %s (prefix: %s)", e.Code, e.Message, e.Prefix)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *VendorError) Unwrap() error {
	return e.Cause
}

// WrapVendorError wraps an error from a vendor lookup for a MAC prefix.
func WrapVendorError(code ErrorCode, message, prefix string, err error) *VendorError {
	return &VendorError{
		Code:    code,
		Message: message,
		Prefix:  prefix,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *TargetError:
		return e.Code
	case *ProbeError:
		return e.Code
	case *VendorError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsSetup reports whether an error is a setup error that must abort the
// session before probing begins.
func IsSetup(err error) bool {
	switch GetCode(err) {
	case CodeTargetInvalid, CodeTargetSetTooLarge, CodeToolMissing, CodeConfiguration, CodeValidation:
		return true
	default:
		return false
	}
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeHostUnreachable, CodeVendorTimeout:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTargetSpec creates an error for an unparseable target specification.
func ErrInvalidTargetSpec(spec string) *TargetError {
	return NewTargetError(CodeTargetInvalid, "invalid target specification", spec)
}

// ErrTargetSetTooLarge creates an error for a specification that expands past
// the configured ceiling.
func ErrTargetSetTooLarge(spec string, size, limit int) *TargetError {
	return NewTargetError(CodeTargetSetTooLarge,
		fmt.Sprintf("target set of %d addresses exceeds limit of %d", size, limit), spec)
}

// ErrToolMissing creates an error for a missing external scanning tool.
func ErrToolMissing(tool string, err error) *ProbeError {
	return WrapProbeError(CodeToolMissing, fmt.Sprintf("external tool %q not available", tool), "", err)
}
