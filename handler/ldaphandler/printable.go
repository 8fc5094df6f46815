// Copyright (c) 2024 The alsanna authors. MIT License.

package ldaphandler

import (
	"fmt"
	"strconv"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/dulaku/alsanna/console"
)

// toPrintable renders a decoded node tree as alsanna's three-visual-column
// mangled form: left column = this slot's BER tag metadata
// (what an editor needs to know to preserve the wire type), middle column =
// the index and content, right column = a human label for the value's
// kind. Columns are '|'-separated; the left column is padded to one common
// width, the widest tag code clamped into [minWidth, maxWidth], so the
// left/middle boundary lines up on every line. The middle and right columns
// are not padded or truncated, so a line's total length is not bounded by
// maxWidth. The LDAP encoder's exact visual layout is explicitly out
// of scope beyond the printable/unprintable round-trip contract,
// so this is a self-consistent rendering rather than a byte-for-byte
// reproduction of any reference implementation.
//
// Grounded on original_source/handlers/ldap/__init__.py's recursive
// dict-mangling walk and alsanna/console's PadLeft/PadRight/PadCenter,
// which exist specifically to support this alignment.
func toPrintable(n *node, minWidth, maxWidth int) (string, map[string][]byte) {
	elided := map[string][]byte{}
	var lines []string
	renderNode(n, nil, -1, 0, &lines, elided)

	left := make([]string, len(lines))
	mid := make([]string, len(lines))
	right := make([]string, len(lines))
	width := 0
	for i, raw := range lines {
		parts := strings.SplitN(raw, "\x00", 3)
		left[i], mid[i], right[i] = parts[0], parts[1], parts[2]
		if w := len(left[i]); w > width {
			width = w
		}
	}
	if width < minWidth {
		width = minWidth
	}
	if width > maxWidth {
		width = maxWidth
	}

	var sb strings.Builder
	for i := range lines {
		sb.WriteString(console.PadRight(left[i], width, " "))
		sb.WriteString(" | ")
		sb.WriteString(mid[i])
		sb.WriteString(" | ")
		sb.WriteString(right[i])
		sb.WriteByte('\n')
	}
	return sb.String(), elided
}

// renderNode appends one or more lines (container open/children/close, or a
// single leaf line) for n, whose position is idx within its parent (-1 for
// the root). path is the sequence of indices from the root, used as the
// unprintable_state key for elided leaves.
func renderNode(n *node, path []int, idx int, depth int, lines *[]string, elided map[string][]byte) {
	indent := strings.Repeat("  ", depth)
	label := fmt.Sprintf("[%d]", idx)
	if idx < 0 {
		label = "[root]"
	}

	if n.TagType == ber.TypeConstructed {
		kindLabel := "SEQUENCE"
		if n.Class != ber.ClassUniversal {
			kindLabel = "CONSTRUCTED"
		} else if n.Tag == ber.TagSet {
			kindLabel = "SET"
		}
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s {\x00%s", tagCode(n), indent, label, kindLabel))
		for i, c := range n.Children {
			renderNode(c, append(append([]int{}, path...), i), i, depth+1, lines, elided)
		}
		*lines = append(*lines, fmt.Sprintf("%s\x00%s}\x00%s", tagCode(n), indent, kindLabel))
		return
	}

	switch n.Kind {
	case kindBool:
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s %t\x00BOOLEAN", tagCode(n), indent, label, n.Bool))
	case kindInt:
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s %d\x00INTEGER", tagCode(n), indent, label, n.Int))
	case kindNull:
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s null\x00NULL", tagCode(n), indent, label))
	case kindString:
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s %s\x00STRING", tagCode(n), indent, label, strconv.Quote(n.Str)))
	default: // kindElided
		key := pathKey(path)
		elided[key] = n.Raw
		*lines = append(*lines, fmt.Sprintf("%s\x00%s %s null\x00ELIDED %s", tagCode(n), indent, label, key))
	}
}

func pathKey(path []int) string {
	strs := make([]string, len(path))
	for i, p := range path {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

// tagCode renders the left-column tag metadata, e.g. "U16C" (universal,
// tag 16/SEQUENCE, constructed) or "CTX0P" (context tag 0, primitive).
func tagCode(n *node) string {
	c := "U"
	switch n.Class {
	case ber.ClassApplication:
		c = "A"
	case ber.ClassContext:
		c = "CTX"
	case ber.ClassPrivate:
		c = "PRIV"
	}
	p := "P"
	if n.TagType == ber.TypeConstructed {
		p = "C"
	}
	return fmt.Sprintf("%s%d%s", c, int(n.Tag), p)
}

func parseTagCode(s string) (ber.Class, ber.Type, ber.Tag, error) {
	s = strings.TrimSpace(s)
	tagType := ber.TypePrimitive
	if strings.HasSuffix(s, "C") {
		tagType = ber.TypeConstructed
		s = s[:len(s)-1]
	} else if strings.HasSuffix(s, "P") {
		s = s[:len(s)-1]
	} else {
		return 0, 0, 0, fmt.Errorf("ldaphandler: tag code %q missing P/C suffix", s)
	}

	var class ber.Class
	var numPart string
	switch {
	case strings.HasPrefix(s, "CTX"):
		class, numPart = ber.ClassContext, s[3:]
	case strings.HasPrefix(s, "PRIV"):
		class, numPart = ber.ClassPrivate, s[4:]
	case strings.HasPrefix(s, "A"):
		class, numPart = ber.ClassApplication, s[1:]
	case strings.HasPrefix(s, "U"):
		class, numPart = ber.ClassUniversal, s[1:]
	default:
		return 0, 0, 0, fmt.Errorf("ldaphandler: unrecognized tag class in %q", s)
	}
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ldaphandler: invalid tag number in %q: %w", s, err)
	}
	return class, tagType, ber.Tag(n), nil
}

// fromPrintable is toPrintable's inverse: it re-parses the emitted
// left/mid/right columns back into a node tree, restoring elided leaves
// from the unprintable_state map by path.
func fromPrintable(text string, elided map[string][]byte) (*node, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var stack []*node
	var root *node

	for _, raw := range lines {
		raw = strings.TrimRight(raw, " \t")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		cols := strings.SplitN(raw, " | ", 3)
		if len(cols) != 3 {
			return nil, fmt.Errorf("ldaphandler: malformed line %q: expected 3 columns", raw)
		}
		class, tagType, tag, err := parseTagCode(cols[0])
		if err != nil {
			return nil, err
		}
		mid := strings.TrimSpace(cols[1])

		if strings.HasSuffix(mid, "{") {
			n := &node{Class: class, TagType: tagType, Tag: tag}
			if root == nil {
				root = n
			} else if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			continue
		}
		if mid == "}" {
			if len(stack) == 0 {
				return nil, fmt.Errorf("ldaphandler: unmatched '}' in printable text")
			}
			stack = stack[:len(stack)-1]
			continue
		}

		n, err := parseLeafLine(mid, strings.TrimSpace(cols[2]), class, tagType, tag, elided)
		if err != nil {
			return nil, err
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("ldaphandler: leaf %q outside any container", mid)
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, n)
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("ldaphandler: unterminated container in printable text")
	}
	if root == nil {
		return nil, fmt.Errorf("ldaphandler: empty printable text")
	}
	return root, nil
}

// parseLeafLine parses "[idx] <value>" plus its right-column type label
// into a leaf node.
func parseLeafLine(mid, typeLabel string, class ber.Class, tagType ber.Type, tag ber.Tag, elided map[string][]byte) (*node, error) {
	sp := strings.SplitN(mid, " ", 2)
	if len(sp) != 2 {
		return nil, fmt.Errorf("ldaphandler: malformed leaf %q", mid)
	}
	value := strings.TrimSpace(sp[1])

	switch {
	case typeLabel == "BOOLEAN":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("ldaphandler: invalid boolean %q: %w", value, err)
		}
		return &node{Class: class, TagType: tagType, Tag: tag, Kind: kindBool, Bool: b}, nil
	case typeLabel == "INTEGER":
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ldaphandler: invalid integer %q: %w", value, err)
		}
		return &node{Class: class, TagType: tagType, Tag: tag, Kind: kindInt, Int: i}, nil
	case typeLabel == "NULL":
		return &node{Class: class, TagType: tagType, Tag: tag, Kind: kindNull}, nil
	case typeLabel == "STRING":
		s, err := strconv.Unquote(value)
		if err != nil {
			return nil, fmt.Errorf("ldaphandler: invalid quoted string %q: %w", value, err)
		}
		return &node{Class: class, TagType: tagType, Tag: tag, Kind: kindString, Str: s}, nil
	case strings.HasPrefix(typeLabel, "ELIDED"):
		key := strings.TrimSpace(strings.TrimPrefix(typeLabel, "ELIDED"))
		// key absent from elided (e.g. the editor introduced a brand new
		// elided slot) restores to empty content rather than failing.
		return &node{Class: class, TagType: tagType, Tag: tag, Kind: kindElided, Str: key}, nil
	default:
		return nil, fmt.Errorf("ldaphandler: unknown value type label %q", typeLabel)
	}
}
