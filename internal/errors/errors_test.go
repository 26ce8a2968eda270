package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrScipProduction, "failed to index file", cause)

	if err.Code != ErrScipProduction {
		t.Fatalf("Code = %v, want %v", err.Code, ErrScipProduction)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Error() = %q, want it to mention the cause", err.Error())
	}
	if !errors.Is(err.Unwrap(), cause) {
		t.Fatalf("Unwrap() did not return the original cause")
	}
}

func TestError_NoCause(t *testing.T) {
	err := New(ErrConfiguration, "marker file missing")
	if strings.Contains(err.Error(), "<nil>") {
		t.Fatalf("Error() should not render a nil cause: %q", err.Error())
	}
}

func TestSQLError(t *testing.T) {
	cause := errors.New("near \"SELCT\": syntax error")
	err := NewSQLError("failed to parse query", "SELCT 1", cause)

	if err.Code() != ErrQuery {
		t.Fatalf("Code() = %v, want %v", err.Code(), ErrQuery)
	}
	if !strings.Contains(err.Error(), "SELCT 1") {
		t.Fatalf("Error() should echo the offending SQL: %q", err.Error())
	}
}
