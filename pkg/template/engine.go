package template

import (
	"context"
	"regexp"
)

// placeholderRegex matches {{name}} tokens with word-character names.
var placeholderRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a channel- and language-scoped notification template.
type Template struct {
	Code     string
	Name     string
	Channel  string
	Language string
	Subject  string
	Body     string
	Active   bool
}

// Repository loads active templates by their natural key.
type Repository interface {
	// Template returns the active template matching (code, channel, language),
	// or ErrTemplateNotFound.
	Template(ctx context.Context, code, channel, language string) (*Template, error)
}

// Engine resolves templates from a repository and renders them.
type Engine struct {
	repo Repository
}

// NewEngine creates a template engine backed by the given repository.
func NewEngine(repo Repository) (*Engine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	return &Engine{repo: repo}, nil
}

// Render substitutes {{name}} placeholders in the template string.
// Unresolved placeholders are left verbatim; rendering never fails.
func Render(template string, placeholders map[string]string) string {
	if template == "" || len(placeholders) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		if value, ok := placeholders[key]; ok {
			return value
		}
		return match
	})
}

// RenderTemplate resolves the (code, channel, language) template and renders
// its subject and body. Returns ErrTemplateNotFound when no active template
// matches; the caller is expected to fall back to literal message fields.
func (e *Engine) RenderTemplate(ctx context.Context, code, channel, language string, placeholders map[string]string) (subject, body string, err error) {
	tmpl, err := e.repo.Template(ctx, code, channel, language)
	if err != nil {
		return "", "", err
	}

	return Render(tmpl.Subject, placeholders), Render(tmpl.Body, placeholders), nil
}
