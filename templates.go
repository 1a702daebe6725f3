package membership

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/template"
	"github.com/xraph/membership/types"
)

// TemplateInput describes a template to register. A nil ID is generated.
type TemplateInput struct {
	ID              id.TemplateID
	Name            string
	BaseBalance     int64
	MintPrice       int64
	DiscountPercent int
	IsVIP           bool
	MetadataRef     string
}

func validateTemplate(t *template.Template) error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return invalid("name", "must not be empty")
	case t.BaseBalance < 0:
		return invalid("base_balance", "must be >= 0, got %d", t.BaseBalance)
	case t.MintPrice < 0:
		return invalid("mint_price", "must be >= 0, got %d", t.MintPrice)
	case t.DiscountPercent < 0 || t.DiscountPercent > template.MaxDiscountPercent:
		return invalid("discount_percent", "must be within [0,%d], got %d", template.MaxDiscountPercent, t.DiscountPercent)
	}
	return nil
}

// CreateTemplate registers a new active membership template.
func (l *Ledger) CreateTemplate(ctx context.Context, in TemplateInput) (*template.Template, error) {
	var out *template.Template
	err := l.mutate(ctx, "create_template", func(t *txn) error {
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}

		tmpl := &template.Template{
			Entity:          types.NewEntity(t.now),
			ID:              in.ID,
			Name:            in.Name,
			BaseBalance:     in.BaseBalance,
			MintPrice:       in.MintPrice,
			DiscountPercent: in.DiscountPercent,
			IsVIP:           in.IsVIP,
			MetadataRef:     in.MetadataRef,
			Active:          true,
		}
		if tmpl.ID.IsNil() {
			tmpl.ID = id.NewTemplateID()
		} else if _, err := t.store.GetTemplate(t.ctx, tmpl.ID); err == nil {
			return ErrTemplateExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := validateTemplate(tmpl); err != nil {
			return err
		}

		if err := t.store.CreateTemplate(t.ctx, tmpl); err != nil {
			return err
		}
		out = tmpl
		return t.emit(notification.KindTemplateCreated, notification.TemplateChanged{TemplateID: tmpl.ID})
	})
	return out, err
}

// ModifyTemplate applies a partial update. Fields left nil are preserved.
func (l *Ledger) ModifyTemplate(ctx context.Context, templateID id.TemplateID, patch template.Patch) (*template.Template, error) {
	var out *template.Template
	err := l.mutate(ctx, "modify_template", func(t *txn) error {
		tmpl, err := t.store.GetTemplate(t.ctx, templateID)
		if err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}

		patch.Apply(tmpl)
		if err := validateTemplate(tmpl); err != nil {
			return err
		}
		tmpl.Touch(t.now)

		if err := t.store.UpdateTemplate(t.ctx, tmpl); err != nil {
			return err
		}
		out = tmpl
		return t.emit(notification.KindTemplateModified, notification.TemplateChanged{TemplateID: tmpl.ID})
	})
	return out, err
}

// DeactivateTemplate stops further mints from a template. Accounts already
// minted from it are unaffected.
func (l *Ledger) DeactivateTemplate(ctx context.Context, templateID id.TemplateID) error {
	return l.mutate(ctx, "deactivate_template", func(t *txn) error {
		tmpl, err := t.store.GetTemplate(t.ctx, templateID)
		if err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		if !tmpl.Active {
			return ErrTemplateInactive
		}

		tmpl.Active = false
		tmpl.Touch(t.now)
		if err := t.store.UpdateTemplate(t.ctx, tmpl); err != nil {
			return err
		}
		return t.emit(notification.KindTemplateDeactivated, notification.TemplateChanged{TemplateID: tmpl.ID})
	})
}

// GetTemplate retrieves a template by ID.
func (l *Ledger) GetTemplate(ctx context.Context, templateID id.TemplateID) (*template.Template, error) {
	return l.store.GetTemplate(ctx, templateID)
}

// ListTemplates returns every template ordered by ID.
func (l *Ledger) ListTemplates(ctx context.Context) ([]*template.Template, error) {
	return l.store.ListTemplates(ctx)
}
