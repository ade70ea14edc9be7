// Package format turns raw RAG answers into titled sections, a source list
// and a ready-to-embed HTML fragment.
package format

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/ammerola/medboard/internal/core/domain"
)

// Section is one titled block of a formatted response. Title is empty for
// the single unlabeled section of a response without headings.
type Section struct {
	Title   string        `json:"title"`
	Content template.HTML `json:"content"`
}

// Response is the formatted view of one answer
type Response struct {
	QueryType domain.QueryType `json:"query_type"`
	Title     string           `json:"title"`
	Icon      string           `json:"icon"`
	Sections  []Section        `json:"sections"`
	Sources   []string         `json:"sources"`
	HTML      template.HTML    `json:"html"`
}

// Source markers in the order they are tried.
var sourceMarkers = []string{"**References:**", "References:", "**References**:", "## Medical References", "Sources:"}

type label struct{ title, icon string }

var labels = map[domain.QueryType]label{
	domain.QueryDisease:   {"Disease Assessment", "fa-virus"},
	domain.QueryRecovery:  {"Recovery Plan", "fa-heart-pulse"},
	domain.QueryResources: {"Medical Resources", "fa-kit-medical"},
}

var defaultLabel = label{"Medical Analysis", "fa-notes-medical"}

// Title returns the display label and icon class for a query type
func Title(qt domain.QueryType) (string, string) {
	l, ok := labels[qt]
	if !ok {
		l = defaultLabel
	}
	return l.title, l.icon
}

// Format splits text into body and sources, sections the body on heading-like
// lines and renders each section's content.
func Format(text string, qt domain.QueryType) Response {
	body, sources := SplitSources(text)
	title, icon := Title(qt)

	resp := Response{
		QueryType: qt,
		Title:     title,
		Icon:      icon,
		Sections:  splitSections(body),
		Sources:   sources,
	}
	resp.HTML = render(resp)
	return resp
}

// SplitSources separates the reference block from the answer body. The first
// marker found wins; text without a marker has no sources.
func SplitSources(text string) (string, []string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, marker := range sourceMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		var sources []string
		for _, line := range strings.Split(text[idx+len(marker):], "\n") {
			if line = strings.TrimSpace(line); line != "" {
				sources = append(sources, line)
			}
		}
		return strings.TrimSpace(text[:idx]), sources
	}
	return strings.TrimSpace(text), nil
}

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	boldHeading     = regexp.MustCompile(`^\*\*([^*]+?)\*\*:?$`)
	colonHeading    = regexp.MustCompile(`^([A-Z][^:!]{1,58}):$`)
)

// headingTitle returns the section title if line looks like a heading.
func headingTitle(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return strings.Trim(m[1], "* "), true
	}
	if m := boldHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSuffix(strings.TrimSpace(m[1]), ":"), true
	}
	if m := colonHeading.FindStringSubmatch(line); m != nil && !isEmphasis(line) {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func splitSections(body string) []Section {
	if body == "" {
		return nil
	}

	type raw struct {
		title string
		lines []string
	}
	var (
		sections []raw
		found    bool
	)
	for _, line := range strings.Split(body, "\n") {
		if title, ok := headingTitle(line); ok {
			found = true
			sections = append(sections, raw{title: title})
			continue
		}
		if len(sections) == 0 {
			sections = append(sections, raw{})
		}
		last := len(sections) - 1
		sections[last].lines = append(sections[last].lines, line)
	}

	if !found {
		return []Section{{Content: FormatContent(body)}}
	}

	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		content := strings.TrimSpace(strings.Join(s.lines, "\n"))
		if s.title == "" && content == "" {
			continue
		}
		out = append(out, Section{Title: s.title, Content: FormatContent(content)})
	}
	return out
}

var responseTemplate = template.Must(template.New("response").Parse(`<div class="rag-response rag-{{.QueryType}}">
<h3 class="rag-title"><i class="fa-solid {{.Icon}}"></i> {{.Title}}</h3>
{{range .Sections}}<section class="rag-section">{{if .Title}}<h4>{{.Title}}</h4>{{end}}{{.Content}}</section>
{{end}}{{if .Sources}}<div class="rag-sources"><h4>References</h4><ol>{{range .Sources}}<li>{{.}}</li>{{end}}</ol></div>
{{end}}</div>`))

func render(resp Response) template.HTML {
	var buf bytes.Buffer
	if err := responseTemplate.Execute(&buf, resp); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(buf.String())
}
