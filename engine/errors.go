package engine

import (
	"errors"
	"fmt"
)

// ErrorCategory groups related error codes and knows how to render them,
// mirroring the (category, code) pair every error value in emilua carries.
type ErrorCategory struct {
	Name    string
	message func(code int) string
}

func (c *ErrorCategory) Message(code int) string {
	if c == nil || c.message == nil {
		return fmt.Sprintf("unknown error %d", code)
	}
	return c.message(code)
}

// EngineError is the (category, code) pair itself. Two EngineErrors are
// equal iff both their category and code match; their string form is always
// category.Message(code).
type EngineError struct {
	Category *ErrorCategory
	Code     int
}

func (e EngineError) Error() string {
	return e.Category.Message(e.Code)
}

// Equal implements the pair-equality invariant: reflexive, symmetric and
// transitive because it reduces to comparing two small immutable fields.
func (e EngineError) Equal(o EngineError) bool {
	return e.Category == o.Category && e.Code == o.Code
}

// Engine-internal error codes (spec §7, §9; supplemented from
// original_source/src/state.cpp and src/scope_cleanup.cpp per SPEC_FULL.md §12).
const (
	CodeBadIndex = iota
	CodeInterrupted
	CodeInterruptionAlreadyAllowed
	CodeUnmatchedScopeCleanup
	CodeModuleNotFound
	CodeBadCoroutine
	CodeBadRootContext
	CodeFailedToLoadModule
	CodeOperationNotPermitted
	CodeVMClosed
	CodeMemoryExhausted
)

var engineMessages = map[int]string{
	CodeBadIndex:                   "bad index",
	CodeInterrupted:                "interrupted",
	CodeInterruptionAlreadyAllowed: "interruption already allowed",
	CodeUnmatchedScopeCleanup:      "unmatched scope cleanup",
	CodeModuleNotFound:             "module not found",
	CodeBadCoroutine:               "bad coroutine",
	CodeBadRootContext:             "bad root context",
	CodeFailedToLoadModule:         "failed to load module",
	CodeOperationNotPermitted:      "operation not permitted",
	CodeVMClosed:                   "vm is closed",
	CodeMemoryExhausted:            "memory exhausted",
}

// EngineCategory is the "engine-internal" category from spec §7's error
// category list.
var EngineCategory = &ErrorCategory{
	Name: "engine",
	message: func(code int) string {
		if msg, ok := engineMessages[code]; ok {
			return msg
		}
		return fmt.Sprintf("engine error %d", code)
	},
}

// GenericCategory mirrors the POSIX-style "generic" category spec §7 lists
// alongside the asio/json/regex categories consumed by protocol modules
// this core does not implement directly.
var GenericCategory = &ErrorCategory{
	Name: "generic",
	message: func(code int) string {
		return fmt.Sprintf("generic error %d", code)
	},
}

// AsioCategory, JSONCategory and RegexCategory exist so the full error
// taxonomy named in spec §7 is constructible and comparable even though the
// concrete protocol/codec modules that would raise them live outside this
// core (spec §1 Non-goals).
var (
	AsioCategory = &ErrorCategory{Name: "asio", message: func(code int) string {
		return fmt.Sprintf("asio error %d", code)
	}}
	JSONCategory = &ErrorCategory{Name: "json", message: func(code int) string {
		return fmt.Sprintf("json error %d", code)
	}}
	RegexCategory = &ErrorCategory{Name: "regex", message: func(code int) string {
		return fmt.Sprintf("regex error %d", code)
	}}
)

func engineErr(code int) EngineError { return EngineError{Category: EngineCategory, Code: code} }

var (
	ErrInterrupted                = engineErr(CodeInterrupted)
	ErrInterruptionAlreadyAllowed = engineErr(CodeInterruptionAlreadyAllowed)
	ErrUnmatchedScopeCleanup      = engineErr(CodeUnmatchedScopeCleanup)
	ErrModuleNotFound             = engineErr(CodeModuleNotFound)
	ErrBadCoroutine               = engineErr(CodeBadCoroutine)
	ErrBadRootContext             = engineErr(CodeBadRootContext)
	ErrFailedToLoadModule         = engineErr(CodeFailedToLoadModule)
	ErrOperationNotPermitted      = engineErr(CodeOperationNotPermitted)
	ErrVMClosed                   = engineErr(CodeVMClosed)
	ErrBadIndex                   = engineErr(CodeBadIndex)
	ErrMemoryExhausted            = engineErr(CodeMemoryExhausted)
)

// IsInterrupted reports whether err is (or wraps) the interrupted engine error.
func IsInterrupted(err error) bool {
	var ee EngineError
	return errors.As(err, &ee) && ee.Equal(ErrInterrupted)
}

// IsMemoryExhausted reports whether err is (or wraps) the memory-exhausted
// engine error.
func IsMemoryExhausted(err error) bool {
	var ee EngineError
	return errors.As(err, &ee) && ee.Equal(ErrMemoryExhausted)
}
