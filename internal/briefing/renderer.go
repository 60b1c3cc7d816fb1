package briefing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Beez1/bounceinsights/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is the struct passed into the templates.
type templateData struct {
	Subject     string
	ImageURL    string
	Narrative   string
	Regions     []types.RegionContext
	ReferenceID string
}

// Renderer renders briefings with the embedded html/template and
// text/template files.
type Renderer struct {
	html *template.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	htmlContent, err := templateFS.ReadFile("templates/briefing.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read briefing.html: %w", err)
	}
	htmlTmpl, err := template.New("briefing").
		Funcs(template.FuncMap{"lines": splitLines}).
		Parse(string(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse briefing.html: %w", err)
	}

	txtContent, err := templateFS.ReadFile("templates/briefing.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read briefing.txt: %w", err)
	}
	txtTmpl, err := texttemplate.New("briefing").Parse(string(txtContent))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse briefing.txt: %w", err)
	}

	return &Renderer{html: htmlTmpl, text: txtTmpl}, nil
}

// Subject returns the subject line for a briefing dated date.
func Subject(date types.Date) string {
	return fmt.Sprintf("Your Earth & Space Briefing for %s", date)
}

// Render renders b into HTML and plaintext bodies.
func (r *Renderer) Render(b Briefing, referenceID string) (*RenderedEmail, error) {
	data := templateData{
		Subject:     Subject(b.Date),
		ImageURL:    b.ImageURL,
		Narrative:   b.Narrative,
		Regions:     b.Regions,
		ReferenceID: referenceID,
	}

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML for %q: %w", b.Recipient, err)
	}

	var txtBuf bytes.Buffer
	if err := r.text.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text for %q: %w", b.Recipient, err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
