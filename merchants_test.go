package membership_test

import (
	"context"
	"testing"

	"github.com/xraph/membership"
	"github.com/xraph/membership/notification"
)

func TestMerchantAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shop := "0xShop"

	wantKind(t, f.l.AuthorizeMerchant(f.alice, shop), membership.KindUnauthorized)
	wantKind(t, f.l.AuthorizeMerchant(f.admin, "  "), membership.KindInvalidRange)

	ok, err := f.l.IsAuthorizedMerchant(ctx, shop)
	if err != nil || ok {
		t.Fatalf("unknown merchant: %v, %v", ok, err)
	}

	before := len(f.pending())
	for i := 0; i < 2; i++ {
		if err := f.l.AuthorizeMerchant(f.admin, shop); err != nil {
			t.Fatalf("authorize %d: %v", i, err)
		}
	}
	if got := len(f.pending()) - before; got != 1 {
		t.Errorf("repeated authorization emitted %d notifications", got)
	}

	ok, _ = f.l.IsAuthorizedMerchant(ctx, "0xshop")
	if !ok {
		t.Error("expected normalized address to be authorized")
	}

	list, err := f.l.ListMerchants(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Address != merchantAddr || list[1].Address != "0xshop" {
		t.Errorf("merchants: %+v", list)
	}

	if err := f.l.RevokeMerchant(f.admin, shop); err != nil {
		t.Fatal(err)
	}
	if err := f.l.RevokeMerchant(f.admin, shop); err != nil {
		t.Fatal(err)
	}
	if err := f.l.RevokeMerchant(f.admin, "0xnobody"); err != nil {
		t.Fatal(err)
	}

	pending := f.pending()
	if got := pending[len(pending)-1]; got != notification.KindMerchantRevoked {
		t.Errorf("last notification: %s", got)
	}
	if got := len(pending) - before; got != 2 {
		t.Errorf("expected exactly one authorize and one revoke, got %d", got)
	}

	all, _ := f.l.ListMerchants(ctx, false)
	authorized, _ := f.l.ListMerchants(ctx, true)
	if len(all) != 2 || len(authorized) != 1 {
		t.Errorf("list after revoke: all %d, authorized %d", len(all), len(authorized))
	}
}
