package cliutil

import "strings"

// Wrap word-wraps s to a maximum width w. A w of 0 does no wrapping.
//
// Lines are actually wrapped five columns short of w, so a short trailing
// word is not forced onto a line by itself.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// WrapIndent word-wraps s to a maximum width w, indenting every line but
// the first by i columns. The caller is assumed to have indented the first
// line already. A w of 0 does no wrapping.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

func wrap(indent, width int, s string) string {
	if width == 0 {
		return s
	}
	limit := width - 5 - indent
	if limit < 1 {
		return s
	}

	pad := strings.Repeat(" ", indent)
	var out strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out.WriteString("\n")
			out.WriteString(pad)
		}
		for len(line) > limit {
			cut := strings.LastIndex(line[:limit+1], " ")
			if cut <= 0 {
				// A single overlong word; break after it instead
				// of inside it.
				cut = strings.Index(line, " ")
				if cut < 0 {
					break
				}
			}
			out.WriteString(strings.TrimRight(line[:cut], " "))
			out.WriteString("\n")
			out.WriteString(pad)
			line = strings.TrimLeft(line[cut:], " ")
		}
		out.WriteString(line)
	}
	return out.String()
}
