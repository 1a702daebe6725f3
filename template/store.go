package template

import (
	"context"

	"github.com/xraph/membership/id"
)

// Store persists templates.
type Store interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, templateID id.TemplateID) (*Template, error)
	UpdateTemplate(ctx context.Context, t *Template) error
	// ListTemplates returns every template ordered by ID.
	ListTemplates(ctx context.Context) ([]*Template, error)
}
