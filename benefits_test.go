package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/id"
)

func TestAddBenefitBounds(t *testing.T) {
	tests := []struct {
		name  string
		typ   benefit.Type
		value int64
		days  int
		kind  membership.Kind
	}{
		{"allowance ok", benefit.TypeMerchantAllowance, 10000, 365, membership.KindNone},
		{"allowance value too high", benefit.TypeMerchantAllowance, 10001, 30, membership.KindInvalidRange},
		{"allowance zero days", benefit.TypeMerchantAllowance, 100, 0, membership.KindInvalidRange},
		{"yacht ok", benefit.TypeYachtEvent, 10, 180, membership.KindNone},
		{"yacht too many days", benefit.TypeYachtEvent, 1, 181, membership.KindInvalidRange},
		{"yacht value too high", benefit.TypeYachtEvent, 11, 30, membership.KindInvalidRange},
		{"discount ok", benefit.TypeDiscount, 100, 1, membership.KindNone},
		{"discount above hundred", benefit.TypeDiscount, 101, 30, membership.KindInvalidRange},
		{"discount zero", benefit.TypeDiscount, 0, 30, membership.KindInvalidRange},
		{"unknown type", benefit.Type("CASHBACK"), 1, 1, membership.KindInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acct := f.mint(aliceAddr, 0)

			b, err := f.l.AddBenefit(f.admin, acct.ID, tt.typ, tt.value, tt.days)
			wantKind(t, err, tt.kind)
			if tt.kind != membership.KindNone {
				return
			}
			if b.Index != 0 || b.RemainingValue != tt.value {
				t.Errorf("unexpected benefit: %+v", b)
			}
			want := epoch.Add(time.Duration(tt.days) * 24 * time.Hour)
			if !b.ExpiresAt.Equal(want) {
				t.Errorf("expiry: got %v, want %v", b.ExpiresAt, want)
			}
		})
	}
}

func TestAddBenefitAuthorization(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)

	_, err := f.l.AddBenefit(f.alice, acct.ID, benefit.TypeDiscount, 10, 30)
	wantKind(t, err, membership.KindUnauthorized)

	_, err = f.l.AddBenefit(f.admin, id.NewAccountID(), benefit.TypeDiscount, 10, 30)
	wantKind(t, err, membership.KindNotFound)
}

func TestMerchantAllowanceScenario(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)

	b, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeMerchantAllowance, 1000, 30)
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, 300)
	if err != nil {
		t.Fatalf("redeem 300: %v", err)
	}
	if res.RemainingValue != 700 || res.IsRedeemed {
		t.Errorf("after 300: %+v", res)
	}

	_, err = f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, 800)
	wantKind(t, err, membership.KindInsufficientAllowance)

	stored, err := f.l.GetBenefit(context.Background(), acct.ID, b.Index)
	if err != nil {
		t.Fatal(err)
	}
	if stored.RemainingValue != 700 {
		t.Errorf("failed redemption changed state: %d", stored.RemainingValue)
	}

	res, err = f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, 700)
	if err != nil {
		t.Fatalf("redeem 700: %v", err)
	}
	if res.RemainingValue != 0 || !res.IsRedeemed {
		t.Errorf("after 700: %+v", res)
	}

	_, err = f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, 1)
	wantKind(t, err, membership.KindAlreadyRedeemed)
}

func TestMerchantAllowanceConservation(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	b, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeMerchantAllowance, 500, 30)
	if err != nil {
		t.Fatal(err)
	}

	var redeemed int64
	for _, amount := range []int64{120, 0, 200, 300, 90, 91, 90, 1} {
		_, err := f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, amount)
		if err == nil {
			redeemed += amount
		}

		got, gerr := f.l.GetBenefit(context.Background(), acct.ID, b.Index)
		if gerr != nil {
			t.Fatal(gerr)
		}
		if redeemed > got.Value {
			t.Fatalf("redeemed %d exceeds value %d", redeemed, got.Value)
		}
		if got.RemainingValue != got.Value-redeemed {
			t.Fatalf("remaining %d, want %d", got.RemainingValue, got.Value-redeemed)
		}
	}
	if redeemed != 500 {
		t.Errorf("expected the allowance to be exhausted, redeemed %d", redeemed)
	}
}

func TestMerchantAllowanceRequiresMerchant(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	b, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeMerchantAllowance, 100, 30)
	if err != nil {
		t.Fatal(err)
	}

	for _, ctx := range []context.Context{f.alice, f.admin, f.bob} {
		_, err := f.l.RedeemBenefit(ctx, acct.ID, b.Index, 10)
		wantKind(t, err, membership.KindUnauthorized)
	}
}

func TestAtomicBenefitRedemption(t *testing.T) {
	for _, typ := range []benefit.Type{benefit.TypeYachtEvent, benefit.TypeDiscount} {
		t.Run(string(typ), func(t *testing.T) {
			f := newFixture(t)
			acct := f.mint(aliceAddr, 0)
			b, err := f.l.AddBenefit(f.admin, acct.ID, typ, 5, 30)
			if err != nil {
				t.Fatal(err)
			}

			_, err = f.l.RedeemBenefit(f.bob, acct.ID, b.Index, 1)
			wantKind(t, err, membership.KindUnauthorized)

			res, err := f.l.RedeemBenefit(f.alice, acct.ID, b.Index, 1)
			if err != nil {
				t.Fatalf("owner redeem: %v", err)
			}
			if res.RemainingValue != 0 || !res.IsRedeemed {
				t.Errorf("atomic redemption left value: %+v", res)
			}

			_, err = f.l.RedeemBenefit(f.alice, acct.ID, b.Index, 1)
			wantKind(t, err, membership.KindAlreadyRedeemed)
		})
	}
}

func TestRedeemBenefitForRejectsReusedSource(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	for range 2 {
		if _, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeYachtEvent, 1, 30); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.l.RedeemBenefitFor(f.admin, acct.ID, 0, 1, "visit-1"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := f.l.RedeemBenefitFor(f.admin, acct.ID, 1, 1, "visit-1")
	wantKind(t, err, membership.KindAlreadyRedeemed)

	b, err := f.l.GetBenefit(context.Background(), acct.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if b.RemainingValue != 1 || b.RedeemedFor != "" {
		t.Errorf("replayed source touched benefit 1: %+v", b)
	}

	if _, err := f.l.RedeemBenefitFor(f.admin, acct.ID, 1, 1, "visit-2"); err != nil {
		t.Fatalf("new source: %v", err)
	}
}

func TestRedeemExpiredBenefit(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	b, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeDiscount, 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(24 * time.Hour)
	if _, err := f.l.GetBenefit(context.Background(), acct.ID, b.Index); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Second)
	_, err = f.l.RedeemBenefit(f.alice, acct.ID, b.Index, 1)
	wantKind(t, err, membership.KindExpired)
}

func TestRedeemIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)

	_, err := f.l.RedeemBenefit(f.merchant, acct.ID, 0, 1)
	wantKind(t, err, membership.KindIndexOutOfRange)
	wantErr(t, err, membership.ErrNotFound)

	_, err = f.l.RedeemBenefit(f.merchant, id.NewAccountID(), 0, 1)
	wantKind(t, err, membership.KindNotFound)
}

func TestModifyBenefit(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	b, err := f.l.AddBenefit(f.admin, acct.ID, benefit.TypeMerchantAllowance, 100, 10)
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(48 * time.Hour)
	got, err := f.l.ModifyBenefit(f.admin, acct.ID, b.Index, 200, 5)
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if got.Value != 200 || got.RemainingValue != 200 {
		t.Errorf("unexpected values: %+v", got)
	}
	if want := epoch.Add(48*time.Hour + 5*24*time.Hour); !got.ExpiresAt.Equal(want) {
		t.Errorf("expiry not recomputed from now: got %v, want %v", got.ExpiresAt, want)
	}

	_, err = f.l.ModifyBenefit(f.admin, acct.ID, b.Index, 20000, 5)
	wantKind(t, err, membership.KindInvalidRange)

	_, err = f.l.ModifyBenefit(f.admin, acct.ID, 7, 10, 5)
	wantKind(t, err, membership.KindIndexOutOfRange)

	if _, err := f.l.RedeemBenefit(f.merchant, acct.ID, b.Index, 1); err != nil {
		t.Fatal(err)
	}
	_, err = f.l.ModifyBenefit(f.admin, acct.ID, b.Index, 300, 5)
	wantKind(t, err, membership.KindAlreadyRedeemed)
}

func TestBatchCheckValidity(t *testing.T) {
	f := newFixture(t)
	alice := f.mint(aliceAddr, 0)
	bob := f.mint(bobAddr, 0)

	if _, err := f.l.AddBenefit(f.admin, alice.ID, benefit.TypeDiscount, 10, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.AddBenefit(f.admin, alice.ID, benefit.TypeYachtEvent, 1, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.AddBenefit(f.admin, bob.ID, benefit.TypeYachtEvent, 1, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.RedeemBenefit(f.bob, bob.ID, 0, 1); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(25 * time.Hour)

	missing := id.NewAccountID()
	reports := f.l.BatchCheckValidity(context.Background(), []id.AccountID{alice.ID, bob.ID, missing})
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	a := reports[0].Benefits
	if len(a) != 2 || a[0].Valid || !a[0].Expired || !a[1].Valid {
		t.Errorf("alice report: %+v", a)
	}
	b := reports[1].Benefits
	if len(b) != 1 || b[0].Valid || !b[0].Redeemed {
		t.Errorf("bob report: %+v", b)
	}
	wantKind(t, reports[2].Err, membership.KindNotFound)

	valid, err := f.l.ValidBenefit(context.Background(), alice.ID, benefit.TypeYachtEvent)
	if err != nil || valid == nil || valid.Index != 1 {
		t.Errorf("valid benefit: %+v, %v", valid, err)
	}
}
