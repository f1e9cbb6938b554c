package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"rate limited", ErrRateLimited, true},
		{"server error", ErrServerError, true},
		{"retries exceeded", ErrMaxRetriesExceeded, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped timeout message", errors.New("dial tcp: i/o timeout"), true},
		{"ambiguous sequence", ErrAmbiguousSequence, false},
		{"plain error", errors.New("something odd"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransient(test.err); got != test.expected {
				t.Errorf("IsTransient(%v) = %v, expected %v", test.err, got, test.expected)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ambiguous sequence", ErrAmbiguousSequence, true},
		{"unknown service", ErrUnknownService, true},
		{"invalid identifier", ErrInvalidIdentifier, true},
		{"invalid pagination", ErrInvalidPagination, true},
		{"rate limited", ErrRateLimited, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsInvalid(test.err); got != test.expected {
				t.Errorf("IsInvalid(%v) = %v, expected %v", test.err, got, test.expected)
			}
		})
	}
}

func TestWrap_Format(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(base, "Transport", "Send", "POST request")

	expected := "Transport.Send: POST request failed: boom"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base via errors.Is")
	}
}

func TestWrap_NilPassthrough(t *testing.T) {
	if Wrap(nil, "C", "M", "a") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapTransient(nil, "C", "M", "a") != nil {
		t.Error("WrapTransient(nil) should return nil")
	}
	if WrapInvalid(nil, "C", "M", "a") != nil {
		t.Error("WrapInvalid(nil) should return nil")
	}
	if WrapFatal(nil, "C", "M", "a") != nil {
		t.Error("WrapFatal(nil) should return nil")
	}
}

func TestClassificationPreservedThroughChain(t *testing.T) {
	invalid := WrapInvalid(ErrInvalidIdentifier, "Data", "Fetch", "id check")
	rewrapped := fmt.Errorf("outer context: %w", invalid)

	if !IsInvalid(rewrapped) {
		t.Error("invalid classification should survive fmt.Errorf wrapping")
	}

	var ce *ClassifiedError
	if !errors.As(rewrapped, &ce) {
		t.Fatal("expected ClassifiedError in chain")
	}
	if ce.Component != "Data" || ce.Operation != "Fetch" {
		t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
	}
}

func TestClassify(t *testing.T) {
	if Classify(ErrNoIdentifiers) != ErrorInvalid {
		t.Error("ErrNoIdentifiers should classify as invalid")
	}
	if Classify(ErrRateLimited) != ErrorTransient {
		t.Error("ErrRateLimited should classify as transient")
	}
	if Classify(WrapFatal(errors.New("broken"), "C", "M", "a")) != ErrorFatal {
		t.Error("fatal wrap should classify as fatal")
	}
	if Classify(errors.New("mystery")) != ErrorTransient {
		t.Error("unknown errors default to transient")
	}
}
