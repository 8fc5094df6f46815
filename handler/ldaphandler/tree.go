// Copyright (c) 2024 The alsanna authors. MIT License.

package ldaphandler

import (
	"encoding/binary"
	"unicode"
	"unicode/utf8"

	ber "github.com/go-asn1-ber/asn1-ber"
)

// node is a generic, tag-preserving decode of one BER element. LDAP's wire
// format is just BER (ITU-T X.690 restricted to DER-ish encodings), so a
// full LDAPMessage is representable without knowing LDAP's specific
// protocolOp grammar at all: every element is either a container
// (TypeConstructed, with Children) or a leaf (TypePrimitive, with a decoded
// Go value). That genericity is what lets alsanna's LDAP handler satisfy
// the printable-conversion contract without a full LDAP schema.
type node struct {
	Class   ber.Class
	TagType ber.Type
	Tag     ber.Tag

	// Container children, when TagType == TypeConstructed.
	Children []*node

	// Leaf payload, when TagType == TypePrimitive. Kind selects which field
	// is meaningful.
	Kind kind
	Bool bool
	Int  int64
	Str  string // valid for Kind == kindString; for kindElided, holds the unprintable_state lookup key once parsed back from printable form
	Raw  []byte // valid for Kind == kindElided: the original non-UTF8 content
}

type kind uint8

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindString
	kindElided // non-UTF8 primitive content; raw bytes live in unprintable_state
)

// decodeTree walks a *ber.Packet (as returned by ber.ReadPacket) into the
// generic node tree.
func decodeTree(p *ber.Packet) *node {
	n := &node{Class: p.ClassType, TagType: p.TagType, Tag: p.Tag}
	if p.TagType == ber.TypeConstructed {
		for _, c := range p.Children {
			n.Children = append(n.Children, decodeTree(c))
		}
		return n
	}

	raw := rawBytes(p)
	switch {
	case p.ClassType == ber.ClassUniversal && p.Tag == ber.TagBoolean:
		n.Kind = kindBool
		n.Bool = len(raw) > 0 && raw[0] != 0x00
	case p.ClassType == ber.ClassUniversal && (p.Tag == ber.TagInteger || p.Tag == ber.TagEnumerated):
		n.Kind = kindInt
		n.Int = decodeBerInt(raw)
	case p.ClassType == ber.ClassUniversal && p.Tag == ber.TagNULL:
		n.Kind = kindNull
	default:
		if isPrintableUTF8(raw) {
			n.Kind = kindString
			n.Str = string(raw)
		} else {
			n.Kind = kindElided
			n.Raw = append([]byte(nil), raw...)
		}
	}
	return n
}

// encodeTree is decodeTree's inverse: it rebuilds a *ber.Packet ready for
// Bytes(). elided leaves are restored from elided, keyed by the path string
// fromPrintable stashed in n.Str (see parseLeafLine); a node decoded
// straight from decodeTree (never round-tripped through text) instead
// carries its original bytes directly in n.Raw.
func encodeTree(n *node, elided map[string][]byte) *ber.Packet {
	if n.TagType == ber.TypeConstructed {
		p := ber.Encode(n.Class, n.TagType, n.Tag, nil, "")
		for _, c := range n.Children {
			p.AppendChild(encodeTree(c, elided))
		}
		return p
	}

	switch n.Kind {
	case kindBool:
		return ber.NewBoolean(n.Class, n.TagType, n.Tag, n.Bool, "")
	case kindInt:
		return ber.NewInteger(n.Class, n.TagType, n.Tag, n.Int, "")
	case kindNull:
		return ber.Encode(n.Class, n.TagType, n.Tag, nil, "")
	case kindString:
		return rawPacket(n.Class, n.TagType, n.Tag, []byte(n.Str))
	default: // kindElided
		raw := n.Raw
		if raw == nil && elided != nil {
			raw = elided[n.Str]
		}
		return rawPacket(n.Class, n.TagType, n.Tag, raw)
	}
}

// rawPacket builds a primitive packet directly from content bytes, bypassing
// ber.Encode's type switch (which only knows how to marshal a handful of Go
// types). Every BER primitive's wire content is just length-prefixed bytes
// under the tag/class header that Bytes() writes from Identifier, so setting
// Data/Value directly is sufficient to round-trip arbitrary content.
func rawPacket(class ber.Class, tagType ber.Type, tag ber.Tag, content []byte) *ber.Packet {
	p := ber.Encode(class, tagType, tag, nil, "")
	p.Data.Write(content)
	p.Value = content
	return p
}

func rawBytes(p *ber.Packet) []byte {
	if p.Data != nil {
		return p.Data.Bytes()
	}
	if b, ok := p.Value.([]byte); ok {
		return b
	}
	return nil
}

// decodeBerInt decodes a big-endian two's-complement integer, BER's
// encoding for INTEGER and ENUMERATED content.
func decodeBerInt(raw []byte) int64 {
	if len(raw) == 0 {
		return 0
	}
	if len(raw) > 8 {
		raw = raw[len(raw)-8:]
	}
	buf := make([]byte, 8)
	neg := raw[0]&0x80 != 0
	if neg {
		for i := range buf {
			buf[i] = 0xff
		}
	}
	copy(buf[8-len(raw):], raw)
	v := int64(binary.BigEndian.Uint64(buf))
	return v
}

// isPrintableUTF8 reports whether raw round-trips cleanly through the
// printable form: valid UTF-8 with no control characters other than the
// whitespace an operator might plausibly type in an editor. Empty content
// counts as printable (an empty string). Anything else (binary OCTET STRING
// content) is elided to null and kept verbatim in unprintable_state instead.
func isPrintableUTF8(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	if !utf8.Valid(raw) {
		return false
	}
	for _, r := range string(raw) {
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
