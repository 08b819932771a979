package main

import (
	"testing"

	cl "stockgame/internal/cli"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1234567.891, "1,234,567.89"},
		{-2500, "-2,500.00"},
	}
	for _, tc := range tests {
		if got := formatMoney(tc.in); got != tc.want {
			t.Errorf("formatMoney(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestComma(t *testing.T) {
	tests := map[int64]string{
		7:       "7",
		100:     "100",
		1000:    "1,000",
		123456:  "123,456",
		1234567: "1,234,567",
	}
	for in, want := range tests {
		if got := comma(in); got != want {
			t.Errorf("comma(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  hello world  ", 8); got != "hello..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 2); got != "ab" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("truncate no-op = %q", got)
	}
}

func TestParseQuantity(t *testing.T) {
	if q, err := parseQuantity(" 12 "); err != nil || q != 12 {
		t.Fatalf("parseQuantity = %d, %v", q, err)
	}
	for _, raw := range []string{"0", "-3", "1.5", "ten"} {
		if _, err := parseQuantity(raw); err == nil {
			t.Errorf("parseQuantity(%q) should fail", raw)
		}
	}
}

func TestParseSymbol(t *testing.T) {
	if s, err := parseSymbol(" aapl "); err != nil || s != "AAPL" {
		t.Fatalf("parseSymbol = %q, %v", s, err)
	}
	if _, err := parseSymbol("TOOLONG"); err == nil {
		t.Fatalf("expected invalid symbol error")
	}
}

func TestResolveGame(t *testing.T) {
	sess := cl.Session{GameID: "saved"}
	if got, _ := resolveGame(sess, []string{"explicit"}); got != "explicit" {
		t.Fatalf("explicit arg ignored: %q", got)
	}
	if got, _ := resolveGame(sess, []string{""}); got != "saved" {
		t.Fatalf("fallback = %q", got)
	}
	if _, err := resolveGame(cl.Session{}, nil); err == nil {
		t.Fatalf("expected error without a selected game")
	}
}
