package format

import (
	"html/template"
	"regexp"
	"strings"
)

var (
	bulletLine    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
	emphasisLine  = regexp.MustCompile(`^\s*(?:!{1,3}|IMPORTANT|NOTE|CAUTION|WARNING|KEY FINDING)\s*:?\s*(.*)$`)
	paragraphGap  = regexp.MustCompile(`\n\s*\n`)
	parenthetical = regexp.MustCompile(`\([^()\n]*\)`)
	inlineBold    = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
)

// FormatContent renders section text as HTML. The text is escaped before any
// markup is added, so backend content can never inject tags.
func FormatContent(text string) template.HTML {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range paragraphGap.Split(text, -1) {
		writeParagraph(&b, para)
	}
	return template.HTML(b.String())
}

func writeParagraph(b *strings.Builder, para string) {
	var (
		items []string
		plain []string
	)
	flushItems := func() {
		if len(items) == 0 {
			return
		}
		b.WriteString("<ul>")
		for _, it := range items {
			b.WriteString("<li>" + it + "</li>")
		}
		b.WriteString("</ul>")
		items = nil
	}
	flushPlain := func() {
		if len(plain) == 0 {
			return
		}
		b.WriteString("<p>" + strings.Join(plain, "<br>") + "</p>")
		plain = nil
	}

	for _, line := range strings.Split(para, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := emphasisLine.FindStringSubmatch(line); m != nil && isEmphasis(line) {
			flushItems()
			flushPlain()
			b.WriteString(`<div class="highlight">` + inline(m[1]) + "</div>")
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			flushPlain()
			items = append(items, inline(m[1]))
			continue
		}
		flushItems()
		plain = append(plain, inline(strings.TrimSpace(line)))
	}
	flushItems()
	flushPlain()
}

// isEmphasis rejects ordinary words that merely start with a marker word,
// e.g. "Notes were taken" or "Importantly".
func isEmphasis(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "!") {
		return true
	}
	for _, w := range []string{"IMPORTANT", "NOTE", "CAUTION", "WARNING", "KEY FINDING"} {
		if !strings.HasPrefix(trimmed, w) {
			continue
		}
		rest := trimmed[len(w):]
		return rest == "" || rest[0] == ':' || rest[0] == ' '
	}
	return false
}

func inline(s string) string {
	s = template.HTMLEscapeString(s)
	s = inlineBold.ReplaceAllString(s, "<strong>$1</strong>")
	return parenthetical.ReplaceAllStringFunc(s, func(m string) string {
		return `<span class="note">` + m + "</span>"
	})
}
