package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/template"
)

func TestCreateTemplate(t *testing.T) {
	f := newFixture(t)

	tmpl, err := f.l.CreateTemplate(f.admin, membership.TemplateInput{
		Name:            "Platinum",
		BaseBalance:     5000,
		MintPrice:       250,
		DiscountPercent: 15,
		IsVIP:           true,
		MetadataRef:     "ipfs://platinum",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tmpl.ID.Prefix() != id.PrefixTemplate {
		t.Errorf("expected tmpl prefix, got %q", tmpl.ID.Prefix())
	}
	if !tmpl.Active {
		t.Error("new template should be active")
	}
	if !tmpl.CreatedAt.Equal(epoch) {
		t.Errorf("created at: got %v, want %v", tmpl.CreatedAt, epoch)
	}

	got, err := f.l.GetTemplate(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Platinum" || got.DiscountPercent != 15 || !got.IsVIP {
		t.Errorf("unexpected template: %+v", got)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   membership.TemplateInput
	}{
		{"empty name", membership.TemplateInput{Name: "  "}},
		{"negative balance", membership.TemplateInput{Name: "x", BaseBalance: -1}},
		{"negative price", membership.TemplateInput{Name: "x", MintPrice: -1}},
		{"discount below zero", membership.TemplateInput{Name: "x", DiscountPercent: -1}},
		{"discount above hundred", membership.TemplateInput{Name: "x", DiscountPercent: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.l.CreateTemplate(f.admin, tt.in)
			wantKind(t, err, membership.KindInvalidRange)

			list, err := f.l.ListTemplates(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 0 {
				t.Errorf("rejected template was stored: %d templates", len(list))
			}
		})
	}
}

func TestCreateTemplateDuplicateID(t *testing.T) {
	f := newFixture(t)
	tid := id.NewTemplateID()

	if _, err := f.l.CreateTemplate(f.admin, membership.TemplateInput{ID: tid, Name: "a"}); err != nil {
		t.Fatal(err)
	}
	_, err := f.l.CreateTemplate(f.admin, membership.TemplateInput{ID: tid, Name: "b"})
	wantErr(t, err, membership.ErrTemplateExists)
	wantKind(t, err, membership.KindInvalidRange)
}

func TestCreateTemplateRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.CreateTemplate(f.merchant, membership.TemplateInput{Name: "x"})
	wantKind(t, err, membership.KindUnauthorized)

	_, err = f.l.CreateTemplate(f.anon, membership.TemplateInput{Name: "x"})
	wantErr(t, err, membership.ErrNoCaller)
}

func TestModifyTemplate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(1000)

	name := "Gold Plus"
	discount := 20
	f.clock.Advance(time.Second)
	got, err := f.l.ModifyTemplate(f.admin, tmpl.ID, template.Patch{Name: &name, DiscountPercent: &discount})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if got.Name != name || got.DiscountPercent != discount {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.BaseBalance != 1000 || got.MintPrice != 100 {
		t.Errorf("unspecified fields changed: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("expected UpdatedAt to advance")
	}

	bad := 150
	_, err = f.l.ModifyTemplate(f.admin, tmpl.ID, template.Patch{DiscountPercent: &bad})
	wantKind(t, err, membership.KindInvalidRange)

	stored, _ := f.l.GetTemplate(context.Background(), tmpl.ID)
	if stored.DiscountPercent != discount {
		t.Errorf("rejected patch leaked: discount %d", stored.DiscountPercent)
	}

	_, err = f.l.ModifyTemplate(f.admin, id.NewTemplateID(), template.Patch{Name: &name})
	wantErr(t, err, membership.ErrTemplateNotFound)
}

func TestDeactivateTemplate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(1000)

	existing, err := f.l.MintFromTemplate(f.admin, tmpl.ID, aliceAddr)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.l.DeactivateTemplate(f.admin, tmpl.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	wantKind(t, f.l.DeactivateTemplate(f.admin, tmpl.ID), membership.KindInactive)

	_, err = f.l.MintFromTemplate(f.admin, tmpl.ID, bobAddr)
	wantKind(t, err, membership.KindInactive)

	acct, err := f.l.GetAccount(context.Background(), existing.ID)
	if err != nil {
		t.Fatalf("existing account lost: %v", err)
	}
	if acct.Balance != 1000 {
		t.Errorf("existing account changed: balance %d", acct.Balance)
	}
}

func TestListTemplatesOrdered(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.template(int64(i))
	}

	list, err := f.l.ListTemplates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 templates, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].ID.Compare(list[i].ID) >= 0 {
			t.Errorf("templates not ordered by id at %d", i)
		}
	}
}
