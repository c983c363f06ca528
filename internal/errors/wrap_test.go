package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapper(t *testing.T) {
	wrapper := NewWrapper("schedule", "get_schedule")

	t.Run("Wrap returns nil for nil error", func(t *testing.T) {
		result := wrapper.Wrap(nil, "Timetable is temporarily unavailable")
		if result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("Wrap creates WrappedError", func(t *testing.T) {
		baseErr := errors.New("connection refused")
		wrapped := wrapper.Wrap(baseErr, "Timetable is temporarily unavailable")

		if wrapped == nil {
			t.Fatal("expected non-nil wrapped error")
		}

		wrappedErr, ok := wrapped.(*WrappedError)
		if !ok {
			t.Fatal("expected WrappedError type")
		}

		if wrappedErr.Module != "schedule" {
			t.Errorf("expected module 'schedule', got '%s'", wrappedErr.Module)
		}

		if wrappedErr.Operation != "get_schedule" {
			t.Errorf("expected operation 'get_schedule', got '%s'", wrappedErr.Operation)
		}

		if wrappedErr.UserMessage != "Timetable is temporarily unavailable" {
			t.Errorf("expected user message 'Timetable is temporarily unavailable', got '%s'", wrappedErr.UserMessage)
		}

		if !errors.Is(wrapped, baseErr) {
			t.Error("wrapped error should unwrap to base error")
		}
	})

	t.Run("Wrapf formats message", func(t *testing.T) {
		baseErr := errors.New("not found")
		wrapped := wrapper.Wrapf(baseErr, "Unknown group: %s", "1-CS")

		wrappedErr := wrapped.(*WrappedError)
		expected := "Unknown group: 1-CS"
		if wrappedErr.UserMessage != expected {
			t.Errorf("expected '%s', got '%s'", expected, wrappedErr.UserMessage)
		}
	})
}

func TestGetUserMessage(t *testing.T) {
	t.Run("returns empty string for nil", func(t *testing.T) {
		result := GetUserMessage(nil)
		if result != "" {
			t.Errorf("expected empty string, got '%s'", result)
		}
	})

	t.Run("returns user message from WrappedError", func(t *testing.T) {
		wrapped := &WrappedError{
			Operation:   "test",
			Module:      "test",
			Cause:       errors.New("base error"),
			UserMessage: "user friendly message",
		}

		result := GetUserMessage(wrapped)
		if result != "user friendly message" {
			t.Errorf("expected 'user friendly message', got '%s'", result)
		}
	})

	t.Run("finds WrappedError behind fmt wrapping", func(t *testing.T) {
		inner := NewWrapper("schedule", "get_meta").Wrap(errors.New("timeout"), "Upstream timetable unavailable")
		result := GetUserMessage(fmt.Errorf("handler: %w", inner))
		if result != "Upstream timetable unavailable" {
			t.Errorf("expected wrapped user message, got '%s'", result)
		}
	})

	t.Run("returns error string for non-WrappedError", func(t *testing.T) {
		err := errors.New("plain error")
		result := GetUserMessage(err)
		if result != "plain error" {
			t.Errorf("expected 'plain error', got '%s'", result)
		}
	})
}

func TestWrappedError_Error(t *testing.T) {
	wrapped := &WrappedError{
		Operation:   "build",
		Module:      "calendar",
		Cause:       errors.New("db error"),
		UserMessage: "Calendar unavailable",
	}

	errMsg := wrapped.Error()
	expected := "[calendar:build] Calendar unavailable: db error"
	if errMsg != expected {
		t.Errorf("expected '%s', got '%s'", expected, errMsg)
	}
}
