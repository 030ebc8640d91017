package testutil

import (
	"errors"
	"testing"
)

func Assert[T comparable](t *testing.T, expected T, value T, message string) {
	t.Helper()
	if expected != value {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func AssertErr(t *testing.T, expected error, value error, message string) {
	t.Helper()
	if expected == nil && value == nil {
		return
	}

	if !errors.Is(value, expected) {
		t.Fatalf("%s: expected %v got %v", message, expected, value)
	}
}

func IsNil(t *testing.T, value interface{}, message string) {
	t.Helper()
	if value != nil {
		t.Fatalf("%s: expected nil got %v", message, value)
	}
}

func IsTrue(t *testing.T, value bool, message string) {
	t.Helper()
	if !value {
		t.Fatalf("%s: expected true", message)
	}
}
