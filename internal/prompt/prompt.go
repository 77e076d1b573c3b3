// Package prompt renders the system prompt from a template and the structured
// dialogue context of the current request.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/tjfontaine/persona-chat-gateway/internal/dialogue"
)

// DefaultTemplate asks for a single JSON object per turn. The field names are
// filled in from the reply contract.
const DefaultTemplate = `You are a warm, curious personality guide running a short MBTI conversation.
Reply in {{.LanguageName}}. Respond with ONE JSON object and nothing else, using exactly these fields:
  "{{.Fields.Type}}": four-letter MBTI type, or "{{.Unknown}}" while still asking questions
  "{{.Fields.Confidence}}": number between 0 and 1
  "{{.Fields.Strengths}}": list of short strength statements (empty while asking)
  "{{.Fields.Tips}}": list of short growth tips (empty while asking)
  "{{.Fields.Message}}": one sentence, either your next question or a one-line summary
  "{{.Fields.Ready}}": true only when giving the final result

Conversation so far: {{.UserMessages}} user messages, {{.Covered}} of {{.Total}} topics covered.
{{- if .Ready}}
All topics are covered. Give the final result now with "{{.Fields.Ready}}": true.
{{- else if .Clarify}}
The last answer about {{.Clarify}} was unclear. Ask a gentle follow-up about it before moving on.
Keep "{{.Fields.Type}}" as "{{.Unknown}}" and "{{.Fields.Ready}}" false.
{{- else}}
Do not guess a type yet. Ask one open question about {{.NextTopic}}.
Keep "{{.Fields.Type}}" as "{{.Unknown}}" and "{{.Fields.Ready}}" false.
{{- end}}
{{- if .Missing}}
Topics still missing: {{join .Missing ", "}}.
{{- end}}`

// Fields are the reply contract field names exposed to the template.
type Fields struct {
	Type       string
	Confidence string
	Strengths  string
	Tips       string
	Message    string
	Ready      string
}

// Context is the structured value rendered into the template once per call.
type Context struct {
	Language     string
	LanguageName string
	UserMessages int
	Covered      int
	Total        int
	Ready        bool
	Clarify      string
	NextTopic    string
	Missing      []string
	Fields       Fields
	Unknown      string
}

var languageNames = map[string]string{
	"en": "English",
	"de": "German",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"pt": "Portuguese",
	"zh": "Chinese",
	"ja": "Japanese",
}

// LanguageName maps an ISO code to a display name, defaulting to English.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// NewContext builds the template context from an analysis.
func NewContext(a *dialogue.Analysis, language string, fields Fields, unknown string) Context {
	c := Context{
		Language:     language,
		LanguageName: LanguageName(language),
		UserMessages: a.UserMessages,
		Covered:      a.CoveredCount(),
		Total:        len(a.Dimensions),
		Ready:        a.ReadyForFinalAnswer,
		Fields:       fields,
		Unknown:      unknown,
	}

	labels := make(map[dialogue.DimensionID]string, len(a.Dimensions))
	for _, d := range a.Dimensions {
		labels[d.ID] = d.Label
	}
	for _, id := range a.MissingDimensions {
		c.Missing = append(c.Missing, labels[id])
	}
	if d, ok := a.ClarifyDimension(); ok {
		c.Clarify = d.Label
	}
	if id, ok := a.Next(); ok {
		c.NextTopic = labels[id]
	} else {
		c.NextTopic = "anything that would sharpen the picture"
	}
	return c
}

// Builder renders system prompts.
type Builder struct {
	tmpl *template.Template
}

// New parses text as the system prompt template. Empty text selects DefaultTemplate.
func New(text string) (*Builder, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("system").
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &Builder{tmpl: tmpl}, nil
}

// Load resolves the template from a file path, an inline string, or the default.
func Load(inline, path string) (*Builder, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template: %w", err)
		}
		return New(string(data))
	}
	return New(inline)
}

// Render executes the template for one request.
func (b *Builder) Render(c Context) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
