package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: Validation("bad"), want: KindValidation},
		{err: NotFound("gone"), want: KindNotFound},
		{err: fmt.Errorf("outer: %w", Domain("Insufficient funds")), want: KindDomain},
		{err: errors.New("boom"), want: KindInternal},
		{err: Wrap(errors.New("db down"), "load game"), want: KindInternal},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	orig := Conflict("User already exists")
	got := Wrap(orig, "register")
	if got != error(orig) {
		t.Fatalf("Wrap replaced a typed error: %v", got)
	}
	if Wrap(nil, "noop") != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(fmt.Errorf("ctx: %w", Domain("Insufficient stocks"))); got != "Insufficient stocks" {
		t.Fatalf("got %q", got)
	}
	internal := Wrap(errors.New("conn reset"), "update participant")
	if got := Message(internal); got != "update participant: conn reset" {
		t.Fatalf("got %q", got)
	}
}

func TestStackRecordsCaller(t *testing.T) {
	err := NotFound("Game not found")
	if !strings.Contains(err.Stack(), "TestStackRecordsCaller") {
		t.Fatalf("stack missing caller frame:\n%s", err.Stack())
	}
}
