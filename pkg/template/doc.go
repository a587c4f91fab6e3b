// Package template resolves and renders notification templates.
//
// Templates are identified by the composite key (code, channel, language)
// and carry a subject and a body with {{name}} placeholder tokens.
// Rendering is permissive: placeholders without a matching value are left
// verbatim so a missing variable degrades the message instead of aborting
// delivery.
//
// # Basic Usage
//
//	repo := template.NewMemoryRepository()
//	engine := template.NewEngine(repo)
//
//	subject, body, err := engine.RenderTemplate(ctx, "payment-received", "email", "en",
//		map[string]string{"amount": "100.00", "name": "Alice"})
//	if errors.Is(err, template.ErrTemplateNotFound) {
//		// No template registered - fall back to the literal title/message.
//	}
//
// There is no language fallback: a template missing for the requested
// language simply yields ErrTemplateNotFound and the caller uses the
// message's literal fields.
//
// Render substitutes placeholders into a raw string without a repository:
//
//	out := template.Render("Hello {{name}}!", map[string]string{"name": "Bob"})
package template
