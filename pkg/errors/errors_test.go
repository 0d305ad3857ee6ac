package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrCodeCycle, "edge %d→%d would create a cycle", 1, 2)
	if got, want := plain.Error(), "CYCLE: edge 1→2 would create a cycle"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := stderrors.New("boom")
	wrapped := Wrap(ErrCodeInternal, cause, "opening store")
	if got, want := wrapped.Error(), "INTERNAL_ERROR: opening store: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("wrapped error does not unwrap to cause")
	}
}

func TestIsAndGetCode(t *testing.T) {
	err := New(ErrCodeEdgeNotFound, "no such edge")

	if !Is(err, ErrCodeEdgeNotFound) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrCodeCycle) {
		t.Error("Is() = true for different code")
	}
	if Is(stderrors.New("plain"), ErrCodeCycle) {
		t.Error("Is() = true for non-coded error")
	}

	// The code survives wrapping with fmt.Errorf.
	deep := fmt.Errorf("handler: %w", err)
	if GetCode(deep) != ErrCodeEdgeNotFound {
		t.Errorf("GetCode(wrapped) = %q, want EDGE_NOT_FOUND", GetCode(deep))
	}
	if GetCode(stderrors.New("plain")) != "" {
		t.Error("GetCode(plain) returned a code")
	}
}

func TestUserMessage(t *testing.T) {
	coded := New(ErrCodeInvalidEntity, "entity ids must be positive")
	if got := UserMessage(coded); got != "entity ids must be positive" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("boom")); got != "boom" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestFromEngine(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "Cycle", err: fmt.Errorf("add: %w", pathdag.ErrCycle), want: ErrCodeCycle},
		{name: "EdgeNotFound", err: pathdag.ErrEdgeNotFound, want: ErrCodeEdgeNotFound},
		{name: "InvalidEntity", err: pathdag.ErrInvalidEntity, want: ErrCodeInvalidEntity},
		{name: "Conflict", err: pathdag.ErrStorageConflict, want: ErrCodeStorageConflict},
		{name: "Invariant", err: pathdag.ErrInvariant, want: ErrCodeInvariant},
		{name: "Unknown", err: stderrors.New("boom"), want: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromEngine(tt.err)
			if GetCode(got) != tt.want {
				t.Errorf("FromEngine(%v) code = %q, want %q", tt.err, GetCode(got), tt.want)
			}
			if !stderrors.Is(got, tt.err) && tt.err != nil {
				// The original error must remain reachable for errors.Is.
				var e *Error
				if !stderrors.As(got, &e) || !stderrors.Is(e.Cause, tt.err) {
					t.Errorf("FromEngine(%v) lost the cause", tt.err)
				}
			}
		})
	}

	if FromEngine(nil) != nil {
		t.Error("FromEngine(nil) != nil")
	}

	already := New(ErrCodeNotFound, "gone")
	if FromEngine(already) != already {
		t.Error("FromEngine re-wrapped an already coded error")
	}
}
