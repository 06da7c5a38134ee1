// Package textutil holds small string helpers shared by the HTTP clients.
package textutil

import "unicode/utf8"

// Truncate returns b as a string of at most maxLen bytes plus "...", cut on a
// rune boundary. Used to keep upstream error bodies short in messages.
func Truncate(b []byte, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	if len(b) <= maxLen {
		return string(b)
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
