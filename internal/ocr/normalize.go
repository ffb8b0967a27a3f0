package ocr

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`[\s\x{00A0}]+`)
	reBoxNoise = regexp.MustCompile(`^[_\-|=.]{3,}$`)
)

// NormalizeText collapses whitespace inside one detected line. Pure rule
// lines (underscores, dashes, pipes) become empty and are dropped by callers.
func NormalizeText(s string) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if reBoxNoise.MatchString(s) {
		return ""
	}
	return s
}
