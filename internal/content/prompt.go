package content

import (
	"fmt"
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("prompt").Parse(
	`You are an expert marketing copywriter.

Write a {{.Pillar}} piece of content in {{.Language}} using the {{.FrameworkTitle}} framework ({{.FrameworkDescription}}).
{{- if .Structured}}
Follow the framework's stages in order and make each stage recognisable without labelling it.
{{- end}}

Topic: {{.Topic}}
{{- if .Description}}
Details: {{.Description}}
{{- end}}
Tone of voice: {{.Tone}}
{{- if .Audience}}
Target audience: {{.Audience}}
{{- end}}
{{- with .Brand}}

Brand: {{.Name}}{{if .Industry}} ({{.Industry}}){{end}}
{{- if .Description}}
About the brand: {{.Description}}
{{- end}}
Keep the copy consistent with this brand's identity.
{{- end}}

Write only in {{.Language}}. Return the finished copy ready to post, with a headline, body and call to action, and no commentary about how it was written.
`))

type promptData struct {
	Pillar               string
	Language             string
	FrameworkTitle       string
	FrameworkDescription string
	Structured           bool
	Topic                string
	Description          string
	Tone                 string
	Audience             string
	Brand                *Brand
}

// BuildPrompt renders the instruction sent to the generation API. The
// request must be valid.
func BuildPrompt(r Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	fw := Frameworks[r.Framework]
	data := promptData{
		Pillar:               r.Pillar.Label(),
		Language:             r.Language.Label(),
		FrameworkTitle:       fw.Title,
		FrameworkDescription: fw.Description,
		Structured:           r.Framework != FrameworkFreestyle,
		Topic:                r.Topic,
		Description:          r.Description,
		Tone:                 r.Tone.Label(),
		Audience:             r.TargetAudience,
		Brand:                r.Brand,
	}

	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("content: render prompt: %w", err)
	}
	return b.String(), nil
}
