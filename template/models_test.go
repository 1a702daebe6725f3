package template_test

import (
	"testing"

	"github.com/xraph/membership/template"
)

func TestPatchApply(t *testing.T) {
	name := "Gold"
	discount := 25
	vip := true

	tmpl := &template.Template{
		Name:            "Silver",
		BaseBalance:     2000,
		MintPrice:       100,
		DiscountPercent: 10,
		MetadataRef:     "ipfs://silver",
	}

	patch := template.Patch{Name: &name, DiscountPercent: &discount, IsVIP: &vip}
	if patch.IsEmpty() {
		t.Fatal("patch with fields should not be empty")
	}
	patch.Apply(tmpl)

	if tmpl.Name != "Gold" {
		t.Errorf("Name: got %q, want %q", tmpl.Name, "Gold")
	}
	if tmpl.DiscountPercent != 25 {
		t.Errorf("DiscountPercent: got %d, want 25", tmpl.DiscountPercent)
	}
	if !tmpl.IsVIP {
		t.Error("IsVIP: got false, want true")
	}
	if tmpl.BaseBalance != 2000 || tmpl.MintPrice != 100 || tmpl.MetadataRef != "ipfs://silver" {
		t.Errorf("unspecified fields changed: %+v", tmpl)
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(template.Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
}
