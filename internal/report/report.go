package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

const digestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Georgia, serif; max-width: 720px; margin: 0 auto; color: #222;">
  <h1 style="border-bottom: 2px solid #444; padding-bottom: 8px;">Daily Paper Digest</h1>
  <p style="color: #666;">{{.Date}} &middot; {{.Total}} item{{if ne .Total 1}}s{{end}}</p>
{{if .Blogs}}
  <h2>From the blogs</h2>
{{range .Blogs}}
  <div style="margin-bottom: 20px;">
    <h3 style="margin-bottom: 4px;"><a href="{{.URL}}" style="color: #1a0dab;">{{.Title}}</a></h3>
    <p style="color: #666; margin: 2px 0;">{{.Meta}}</p>
    {{if .Summary}}<p style="margin: 6px 0;">{{.Summary}}</p>{{end}}
  </div>
{{end}}
{{end}}
{{if .Papers}}
  <h2>Papers</h2>
{{range .Papers}}
  <div style="margin-bottom: 24px;">
    <h3 style="margin-bottom: 4px;"><a href="{{.URL}}" style="color: #1a0dab;">{{.Title}}</a></h3>
    <p style="color: #666; margin: 2px 0;">{{.Meta}}</p>
    {{if .Reason}}<p style="margin: 6px 0;"><em>{{.Reason}}</em></p>{{end}}
    {{if .Summary}}<p style="margin: 6px 0;">{{.Summary}}</p>{{end}}
    {{if .Signals}}<p style="margin: 6px 0; color: #2a6041;">&#x1F4E1; {{.Signals}}</p>{{end}}
  </div>
{{end}}
{{end}}
  <p style="color: #999; font-size: 12px; margin-top: 32px;">Generated by paperfeeder.</p>
</body>
</html>`

const abstractLimit = 400

// HTMLRenderer renders the ranked list into an email-ready HTML digest.
// Blogs and papers get their own sections; list order is preserved within
// each.
type HTMLRenderer struct {
	tmpl *template.Template
}

var _ ports.ReportRenderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer parses the digest template once.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		tmpl: template.Must(template.New("digest").Parse(digestTemplate)),
	}
}

type digestData struct {
	Date   string
	Total  int
	Blogs  []entryData
	Papers []entryData
}

type entryData struct {
	Title   string
	URL     string
	Meta    string
	Reason  string
	Summary string
	Signals string
}

// Render produces the digest HTML.
func (r *HTMLRenderer) Render(items []domain.Item, date time.Time) (string, error) {
	data := digestData{
		Date:  date.Format("Monday, January 2, 2006"),
		Total: len(items),
	}

	for _, it := range items {
		entry := toEntry(it)
		if it.IsBlog {
			data.Blogs = append(data.Blogs, entry)
		} else {
			data.Papers = append(data.Papers, entry)
		}
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return sb.String(), nil
}

func toEntry(it domain.Item) entryData {
	entry := entryData{
		Title:   it.Title,
		URL:     it.URL,
		Reason:  it.FilterReason,
		Signals: it.ResearchNote,
	}

	entry.Summary = truncate(it.Abstract, abstractLimit)

	var meta []string
	if it.IsBlog {
		if it.BlogSource != "" {
			meta = append(meta, it.BlogSource)
		}
	} else {
		meta = append(meta, formatAuthors(it.Authors))
		if it.RelevanceScore > 0 {
			meta = append(meta, fmt.Sprintf("score %.1f", it.RelevanceScore))
		}
	}
	if !it.PublishedAt.IsZero() {
		meta = append(meta, it.PublishedAt.Format("2006-01-02"))
	}
	entry.Meta = strings.Join(meta, " | ")

	return entry
}

// truncate cuts after n characters, never mid-rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func formatAuthors(authors []domain.Author) string {
	if len(authors) == 0 {
		return "Unknown authors"
	}

	names := make([]string, 0, 3)
	for i, a := range authors {
		if i == 3 {
			break
		}
		names = append(names, a.Name)
	}
	out := strings.Join(names, ", ")
	if len(authors) > 3 {
		out += " et al."
	}
	return out
}
