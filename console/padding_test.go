// Copyright (c) 2024 The alsanna authors. MIT License.

package console_test

import (
	"testing"
	"unicode/utf8"

	"github.com/dulaku/alsanna/console"
)

func TestPadLeft(t *testing.T) {
	cases := []struct {
		str, pad, want string
		width          int
	}{
		{"test", " ", "      test", 10},
		{"abc", "0", "00abc", 5},
		{"verylongtext", " ", "verylongtext", 4},
		{"exact", " ", "exact", 5},
		{"", "*", "*****", 5},
	}
	for _, c := range cases {
		got := console.PadLeft(c.str, c.width, c.pad)
		if got != c.want {
			t.Errorf("PadLeft(%q, %d, %q) = %q, want %q", c.str, c.width, c.pad, got, c.want)
		}
	}
}

func TestPadLeftUTF8(t *testing.T) {
	got := console.PadLeft("日本", 6, " ")
	if utf8.RuneCountInString(got) != 6 {
		t.Errorf("expected 6 runes, got %d (%q)", utf8.RuneCountInString(got), got)
	}
	if got[len(got)-len("日本"):] != "日本" {
		t.Errorf("expected suffix 日本, got %q", got)
	}
}

func TestPadRight(t *testing.T) {
	cases := []struct {
		str, pad, want string
		width          int
	}{
		{"test", " ", "test      ", 10},
		{"abc", "*", "abc**", 5},
		{"verylongtext", " ", "verylongtext", 4},
		{"exact", " ", "exact", 5},
		{"", "*", "*****", 5},
	}
	for _, c := range cases {
		got := console.PadRight(c.str, c.width, c.pad)
		if got != c.want {
			t.Errorf("PadRight(%q, %d, %q) = %q, want %q", c.str, c.width, c.pad, got, c.want)
		}
	}
}

func TestPadCenter(t *testing.T) {
	cases := []struct {
		str, pad, want string
		width          int
	}{
		{"ab", "-", "--ab--", 6},
		{"X", "*", "**X**", 5},
		{"verylongtext", " ", "verylongtext", 4},
		{"exact", " ", "exact", 5},
		{"", "*", "******", 6},
	}
	for _, c := range cases {
		got := console.PadCenter(c.str, c.width, c.pad)
		if got != c.want {
			t.Errorf("PadCenter(%q, %d, %q) = %q, want %q", c.str, c.width, c.pad, got, c.want)
		}
	}
}

func TestPadCenterOddDistributesExtraToRight(t *testing.T) {
	got := console.PadCenter("hi", 5, "*")
	if utf8.RuneCountInString(got) != 5 {
		t.Fatalf("expected width 5, got %d (%q)", utf8.RuneCountInString(got), got)
	}
	want := "*hi**"
	if got != want {
		t.Errorf("PadCenter(\"hi\", 5, \"*\") = %q, want %q", got, want)
	}
}

func TestPaddingForTableColumns(t *testing.T) {
	header := console.PadCenter("Title", 20, "=")
	left := console.PadLeft("Right-aligned", 20, " ")
	right := console.PadRight("Left-aligned", 20, " ")

	for _, s := range []string{header, left, right} {
		if utf8.RuneCountInString(s) != 20 {
			t.Errorf("expected width 20, got %d (%q)", utf8.RuneCountInString(s), s)
		}
	}
}
