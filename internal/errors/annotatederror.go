// Package errors decorates errors with slog attributes and the source location where they were annotated.
//
// It is a drop-in replacement for the standard library errors package: Is, As, Unwrap and Join delegate to it.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

type annotatedError struct {
	msg   string
	err   error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

// callerPC returns the program counter of the caller skip frames above callerPC.
func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 { //nolint:mnd // runtime.Callers and callerPC itself.
		return 0
	}
	return pcs[0]
}

// New returns an error that records where it was created. Use NewSentinel for package level sentinels.
func New(text string) error {
	return &annotatedError{msg: text, err: nil, attrs: nil, pc: callerPC(1)}
}

// NewSentinel returns a plain error suitable for comparison with Is.
func NewSentinel(text string) error {
	return stderrors.New(text)
}

// Wrap annotates err with msg and attrs. It returns nil if err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{msg: msg, err: err, attrs: attrs, pc: callerPC(1)}
}

// DecoratePanic converts a recovered value into an error pointing at the line that panicked.
//
// It must be called from the deferred function that recovered.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	pcs := make([]uintptr, 32) //nolint:mnd // deep enough to reach the panicking frame.
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var (
		pc          uintptr
		afterPanics bool
	)
	for {
		frame, more := frames.Next()
		if afterPanics && !strings.HasPrefix(frame.Function, "runtime.") {
			pc = frame.PC
			break
		}
		if frame.Function == "runtime.gopanic" {
			afterPanics = true
		}
		if !more {
			break
		}
	}
	var err error
	if e, ok := recovered.(error); ok {
		err = e
	}
	return &annotatedError{msg: fmt.Sprintf("panic: %v", recovered), err: nil, attrs: errAttr(err), pc: pc}
}

func errAttr(err error) []slog.Attr {
	if err == nil {
		return nil
	}
	return []slog.Attr{slog.String("cause", err.Error())}
}

// SlogError renders err as a slog group with the message, the annotations collected along the wrap chain and the
// source location of the innermost annotation.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.AnyValue(nil)}
	}
	var (
		annotations []any
		pc          uintptr
	)
	collectAnnotations(err, &annotations, &pc)

	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if pc != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
		attrs = append(attrs, slog.String("source", fmt.Sprintf("%s:%d", frame.File, frame.Line)))
	}
	return slog.Group("error", attrs...)
}

// collectAnnotations walks the whole tree of err, descending into every branch of joined errors.
func collectAnnotations(err error, annotations *[]any, pc *uintptr) {
	for err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				collectAnnotations(e, annotations, pc)
			}
			return
		}
		if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // the chain is walked by hand.
			for _, a := range ae.attrs {
				*annotations = append(*annotations, a)
			}
			if ae.pc != 0 {
				*pc = ae.pc
			}
		}
		err = stderrors.Unwrap(err)
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
