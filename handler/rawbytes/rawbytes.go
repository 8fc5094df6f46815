// Copyright (c) 2024 The alsanna authors. MIT License.

// Package rawbytes implements alsanna's simplest handler: an
// identity wrapper around the transport whose messages are plain byte
// strings, printable as a quoted byte literal.
//
// Grounded on original_source/handlers/rawbytes/__init__.py's Handler and
// RawSocket: connect/close/send/recv pass straight through to the lower
// socket, and obj_to_printable/printable_to_obj round-trip through a
// literal syntax (Python's str(bytes) / ast.literal_eval there; a
// Go-native `b'...'` quoted literal and parser here).
package rawbytes

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dulaku/alsanna/msgsock"
)

// Handler is the registry-facing raw bytes handler. It has no
// configuration of its own.
type Handler struct{}

// New constructs the raw bytes handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Name() string { return "rawbytes" }

func (h *Handler) SetupClientFacing(lower msgsock.Socket, _ *msgsock.ConnLocals) (msgsock.Socket, error) {
	return &socket{lower: lower}, nil
}

func (h *Handler) SetupServerFacing(lower msgsock.Socket, _ *msgsock.ConnLocals) (msgsock.Socket, error) {
	return &socket{lower: lower}, nil
}

// IsRetryable is always false: raw bytes has no framing to resynchronize.
func (h *Handler) IsRetryable(error) bool { return false }

// MessageToPrintable renders the []byte message as a quoted byte literal;
// it carries no unprintable state.
func (h *Handler) MessageToPrintable(m msgsock.Message) (string, interface{}, error) {
	b, ok := m.([]byte)
	if !ok {
		return "", nil, fmt.Errorf("rawbytes: expected []byte message, got %T", m)
	}
	return quote(b), nil, nil
}

// PrintableToMessage parses a quoted byte literal back into a []byte message.
func (h *Handler) PrintableToMessage(text string, _ interface{}) (msgsock.Message, error) {
	return unquote(text)
}

var _ msgsock.Handler = (*Handler)(nil)
var _ msgsock.Printable = (*Handler)(nil)

// socket is the identity wrapper RawSocket corresponds to: Recv/Send pass
// straight through to the lower socket with no re-framing.
type socket struct {
	lower msgsock.Socket
}

func (s *socket) Connect(addr string) error { return s.lower.Connect(addr) }
func (s *socket) Close() error              { return s.lower.Close() }

func (s *socket) Recv() (msgsock.Message, error) {
	m, err := s.lower.Recv()
	if err != nil {
		return nil, err
	}
	b, ok := m.([]byte)
	if !ok {
		return nil, fmt.Errorf("rawbytes: lower socket returned non-[]byte message %T", m)
	}
	if len(b) == 0 {
		return nil, io.EOF
	}
	return b, nil
}

func (s *socket) Send(m msgsock.Message) error {
	b, ok := m.([]byte)
	if !ok {
		return fmt.Errorf("rawbytes: expected []byte message, got %T", m)
	}
	return s.lower.Send(b)
}

// quote renders b as a Rust/Python-flavoured quoted byte literal: the quote
// and backslash characters are escaped as \' and \\, newline, carriage
// return and tab as \n, \r and \t, other printable ASCII passes through, and
// every remaining byte is escaped as \xHH.
func quote(b []byte) string {
	var sb strings.Builder
	sb.WriteString("b'")
	for _, c := range b {
		switch {
		case c == '\'' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\x%02x`, c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// unquote parses the literal syntax quote produces. It is deliberately
// strict: anything other than a b'...' literal is rejected rather than
// guessed at, since an editing mistake here should surface as an error,
// not silently mangle the message.
func unquote(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if len(text) < 3 || text[0] != 'b' || text[1] != '\'' || text[len(text)-1] != '\'' {
		return nil, errors.New("rawbytes: expected a b'...' byte literal")
	}
	body := text[2 : len(text)-1]

	var out []byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			return nil, errors.New("rawbytes: dangling escape at end of literal")
		}
		switch body[i] {
		case '\'':
			out = append(out, '\'')
		case '\\':
			out = append(out, '\\')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'x':
			if i+2 >= len(body) {
				return nil, errors.New("rawbytes: truncated \\x escape")
			}
			v, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("rawbytes: invalid \\x escape: %w", err)
			}
			out = append(out, byte(v))
			i += 2
		default:
			return nil, fmt.Errorf("rawbytes: unknown escape \\%c", body[i])
		}
	}
	return out, nil
}
