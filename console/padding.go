// Copyright (c) 2024 The alsanna authors. MIT License.

package console

import (
	"math"
	"unicode/utf8"
)

// padTimes repeats the given string n times and returns the concatenated result.
// Internal helper for padding operations.
func padTimes(str string, n int) (out string) {
	for i := 0; i < n; i++ {
		out += str
	}
	return
}

// PadLeft pads a string on the left (right-aligns the text).
// Uses UTF-8 rune counting to correctly handle multi-byte characters.
//
// Parameters:
//   - str: The string to pad
//   - len: The desired total length in runes (not bytes)
//   - pad: The padding string (typically " " or "0")
//
// Returns:
//   - Padded string with length 'len' runes
//
// UTF-8 Support: Correctly handles emojis, CJK characters, and multi-byte Unicode.
//
// Example:
//
//	PadLeft("text", 10, " ")      // Returns "      text"
//	PadLeft("5", 5, "0")          // Returns "00005"
//	PadLeft("你好", 10, " ")       // Returns "        你好" (correctly counts 2 runes)
func PadLeft(str string, len int, pad string) string {
	return padTimes(pad, len-utf8.RuneCountInString(str)) + str
}

// PadRight pads a string on the right (left-aligns the text).
// Uses UTF-8 rune counting to correctly handle multi-byte characters.
//
// Parameters:
//   - str: The string to pad
//   - len: The desired total length in runes (not bytes)
//   - pad: The padding string (typically " ")
//
// Returns:
//   - Padded string with length 'len' runes
//
// UTF-8 Support: Correctly handles emojis, CJK characters, and multi-byte Unicode.
//
// Example:
//
//	PadRight("text", 10, " ")     // Returns "text      "
//	PadRight("Name", 20, " ")     // Returns "Name                "
//	PadRight("🌍", 5, " ")         // Returns "🌍    " (correctly counts 1 rune)
func PadRight(str string, len int, pad string) string {
	return str + padTimes(pad, len-utf8.RuneCountInString(str))
}

// PadCenter centers a string with padding on both sides.
// Uses UTF-8 rune counting to correctly handle multi-byte characters.
// If padding cannot be distributed evenly, the right side gets one extra pad character.
//
// Parameters:
//   - str: The string to center
//   - len: The desired total length in runes (not bytes)
//   - pad: The padding string (typically " ", "=", or "-")
//
// Returns:
//   - Centered string with length 'len' runes
//
// UTF-8 Support: Correctly handles emojis, CJK characters, and multi-byte Unicode.
//
// Example:
//
//	PadCenter("text", 10, " ")    // Returns "   text   "
//	PadCenter("Title", 20, "=")   // Returns "=======Title========"
//	PadCenter("你好", 10, " ")     // Returns "    你好    " (correctly counts 2 runes)
func PadCenter(str string, len int, pad string) string {
	nbr := len - utf8.RuneCountInString(str)
	lft := int(math.Floor(float64(nbr) / 2))
	rgt := nbr - lft

	return padTimes(pad, lft) + str + padTimes(pad, rgt)
}
