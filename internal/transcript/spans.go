package transcript

import "regexp"

// Span is a run of rendered content. Class is empty for plain text.
type Span struct {
	Text  string
	Class string
}

var spanTag = regexp.MustCompile(`(?s)<span class="(` + EmphasisPink + `|` + EmphasisGreen + `)">(.*?)</span>`)

// Spans splits rendered message content into plain and emphasized runs so
// terminal front-ends can style them.
func Spans(content string) []Span {
	matches := spanTag.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		if content == "" {
			return nil
		}
		return []Span{{Text: content}}
	}

	var out []Span
	last := 0
	for _, m := range matches {
		if m[0] > last {
			out = append(out, Span{Text: content[last:m[0]]})
		}
		if m[4] < m[5] {
			out = append(out, Span{Text: content[m[4]:m[5]], Class: content[m[2]:m[3]]})
		}
		last = m[1]
	}
	if last < len(content) {
		out = append(out, Span{Text: content[last:]})
	}
	return out
}

// PlainText drops emphasis markup, leaving only the text.
func PlainText(content string) string {
	return spanTag.ReplaceAllString(content, "$2")
}
