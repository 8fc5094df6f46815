// Copyright (c) 2024 The alsanna authors. MIT License.

package rawbytes_test

import (
	"bytes"
	"testing"

	"github.com/dulaku/alsanna/handler/rawbytes"
)

func TestPrintableRoundTrip(t *testing.T) {
	h := rawbytes.New()
	cases := [][]byte{
		[]byte("ping\n"),
		[]byte{0x01, 'h', 'i'},
		[]byte("quote ' and backslash \\"),
		{},
	}
	for _, in := range cases {
		text, state, err := h.MessageToPrintable(in)
		if err != nil {
			t.Fatalf("MessageToPrintable(%v): %v", in, err)
		}
		out, err := h.PrintableToMessage(text, state)
		if err != nil {
			t.Fatalf("PrintableToMessage(%q): %v", text, err)
		}
		gotBytes, ok := out.([]byte)
		if !ok {
			t.Fatalf("expected []byte, got %T", out)
		}
		if !bytes.Equal(gotBytes, in) {
			t.Errorf("round trip mismatch: in=%v text=%q out=%v", in, text, gotBytes)
		}
	}
}

func TestMessageToPrintableFormat(t *testing.T) {
	h := rawbytes.New()
	text, _, err := h.MessageToPrintable([]byte{0x01, 'h', 'i'})
	if err != nil {
		t.Fatalf("MessageToPrintable: %v", err)
	}
	want := `b'\x01hi'`
	if text != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestPrintableToMessageRejectsMalformedLiteral(t *testing.T) {
	h := rawbytes.New()
	if _, err := h.PrintableToMessage("not a literal", nil); err == nil {
		t.Error("expected an error for a non-literal string")
	}
}
