// Copyright (c) 2024 The alsanna authors. MIT License.

package ldaphandler_test

import (
	"bytes"
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/dulaku/alsanna/handler/ldaphandler"
)

// buildBindRequest constructs a minimal LDAPMessage carrying a simple bind
// request: messageID 1, protocolOp BindRequest{version=3, name="cn=admin",
// authentication simple="secret"}. Mirrors the shape S5 exercises.
func buildBindRequest() *ber.Packet {
	msg := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPMessage")
	msg.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(1), "MessageID"))

	bindReq := ber.Encode(ber.ClassApplication, ber.TypeConstructed, 0, nil, "BindRequest")
	bindReq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3), "Version"))
	bindReq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "cn=admin", "Name"))
	bindReq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, "secret", "Simple"))
	msg.AppendChild(bindReq)

	return msg
}

func TestPrintableRoundTrip(t *testing.T) {
	h := ldaphandler.New(ldaphandler.Config{MinWidth: 10, MaxWidth: 200})
	original := buildBindRequest()

	text, state, err := h.MessageToPrintable(original)
	if err != nil {
		t.Fatalf("MessageToPrintable: %v", err)
	}
	if text == "" {
		t.Fatal("MessageToPrintable returned empty text")
	}

	out, err := h.PrintableToMessage(text, state)
	if err != nil {
		t.Fatalf("PrintableToMessage: %v\ntext was:\n%s", err, text)
	}
	rebuilt, ok := out.(*ber.Packet)
	if !ok {
		t.Fatalf("expected *ber.Packet, got %T", out)
	}

	if !bytes.Equal(original.Bytes(), rebuilt.Bytes()) {
		t.Fatalf("round trip not byte-identical\noriginal: %x\nrebuilt:  %x\ntext:\n%s", original.Bytes(), rebuilt.Bytes(), text)
	}
}

func TestPrintableWidthBounds(t *testing.T) {
	h := ldaphandler.New(ldaphandler.Config{MinWidth: 80, MaxWidth: 80})
	text, _, err := h.MessageToPrintable(buildBindRequest())
	if err != nil {
		t.Fatalf("MessageToPrintable: %v", err)
	}
	for _, line := range splitLines(text) {
		if line == "" {
			continue
		}
		left := line[:bytes.IndexByte([]byte(line), '|')]
		if len(left) != 80 && len(left) != 80+1 { // allow for the trailing space before '|'
			t.Fatalf("left column width %d outside configured min/max=80: %q", len(left), line)
		}
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
