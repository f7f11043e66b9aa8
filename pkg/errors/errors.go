package errors

import (
	"fmt"
	pkgerrors "github.com/pkg/errors"
	"runtime"
	"strings"
)

// New returns an error with the message and the current stack.
func New(msg string) error {
	return pkgerrors.New(msg)
}

// Errorf formats an error with the current stack.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// Wrap annotates err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. A nil err stays nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WithStack records the current stack on err.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// Cause returns the innermost error of a wrap chain.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

func Is(err, target error) bool {
	return pkgerrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return pkgerrors.As(err, target)
}

// NewWithReport creates an error and sends it to every configured reporter.
func NewWithReport(msg string) error {
	err := pkgerrors.New(msg)
	report(err)
	return err
}

// WrapAndReport wraps err and sends it to every configured reporter.
func WrapAndReport(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(err, msg)
	report(wrapped)
	return wrapped
}

// ErrorfAndReport formats an error and sends it to every configured reporter.
func ErrorfAndReport(format string, args ...interface{}) error {
	err := pkgerrors.Errorf(format, args...)
	report(err)
	return err
}

type stack []uintptr

// callers skips runtime.Callers, callers itself and the reporter that asked.
func callers() stack {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

func (s stack) fullStack() []string {
	frames := runtime.CallersFrames(s)
	lines := make([]string, 0, len(s))
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			lines = append(lines, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return lines
}

// origin picks the first frame outside this package, which identifies the
// call site that produced the error.
func origin(lines []string) string {
	for _, l := range lines {
		if !strings.Contains(l, "fungily-score/pkg/errors.") {
			return l
		}
	}
	if len(lines) > 0 {
		return lines[len(lines)-1]
	}
	return ""
}
