package domain

import "unicode"

const (
	maxBodyBytes    = 10000
	maxRuneRun      = 50
	maxCombiningRun = 15
)

// HazardousText reports whether a body is structurally dangerous regardless
// of its content: oversized, a single rune repeated beyond a fixed run
// length, a dense run of combining (zalgo) marks, or bidirectional-override
// control characters. Such messages bypass streak counting entirely.
func HazardousText(body string) bool {
	if len(body) > maxBodyBytes {
		return true
	}
	var (
		prev         rune
		runeRun      int
		combiningRun int
	)
	for _, r := range body {
		if r >= '\u202a' && r <= '\u202e' {
			return true
		}
		if r == prev {
			runeRun++
			if runeRun > maxRuneRun {
				return true
			}
		} else {
			prev = r
			runeRun = 1
		}
		if unicode.In(r, unicode.Mn, unicode.Me) {
			combiningRun++
			if combiningRun >= maxCombiningRun {
				return true
			}
		} else {
			combiningRun = 0
		}
	}
	return false
}
