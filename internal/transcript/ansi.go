package transcript

import (
	"log"
	"regexp"
	"strings"

	"github.com/sourcegraph/conc/panics"
)

// Emphasis classes produced by RenderControlCodes.
const (
	EmphasisPink  = "ansi-pink"
	EmphasisGreen = "ansi-green"
)

type emphasisRule struct {
	re    *regexp.Regexp
	class string
}

// Color markers are converted in this order. A marker's span ends at the
// next SGR sequence or at the end of the text, and never crosses a newline;
// a marker with no such end on its own line is only stripped.
var emphasisRules = []emphasisRule{
	{regexp.MustCompile(`\x1b\[95m(.*?)(\x1b\[[\d;]*m|$)`), EmphasisPink},
	{regexp.MustCompile(`\x1b\[92m(.*?)(\x1b\[[\d;]*m|$)`), EmphasisGreen},
}

var (
	// SGR escape sequences, with the ESC byte present.
	sgrSeq = regexp.MustCompile(`\x1b\[[\d;]*m`)
	// The same codes after a transport dropped the ESC byte.
	bareCodes = regexp.MustCompile(`\[(?:1|92|95|00|0)m`)
)

// RenderControlCodes turns color markers into emphasis spans and removes
// every other recognized control sequence. Output contains no recognized
// sequence, so applying it again is a no-op. It never panics; if rendering
// fails the text is only stripped.
func RenderControlCodes(s string) string {
	var (
		out     string
		catcher panics.Catcher
	)
	catcher.Try(func() {
		out = renderControlCodes(s)
	})
	if r := catcher.Recovered(); r != nil {
		log.Printf("[transcript] control code rendering failed, stripping: %v", r.Value)
		return StripControlCodes(s)
	}
	return out
}

func renderControlCodes(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}
	for _, rule := range emphasisRules {
		s = rule.re.ReplaceAllString(s, `<span class="`+rule.class+`">$1</span>`)
	}
	return StripControlCodes(s)
}

// StripControlCodes removes every recognized control sequence without
// converting anything. Removal repeats until nothing matches, so codes
// that were split around another code cannot survive.
func StripControlCodes(s string) string {
	for {
		next := bareCodes.ReplaceAllString(sgrSeq.ReplaceAllString(s, ""), "")
		if next == s {
			return s
		}
		s = next
	}
}
