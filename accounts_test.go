package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/account"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

func TestMintFromTemplate(t *testing.T) {
	f := newFixture(t)
	tmpl := f.template(2000)

	t.Run("admin mints for owner", func(t *testing.T) {
		acct, err := f.l.MintFromTemplate(f.admin, tmpl.ID, " 0xAlice ")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if acct.Owner != aliceAddr {
			t.Errorf("owner not normalized: %q", acct.Owner)
		}
		if acct.Balance != 2000 {
			t.Errorf("balance: got %d, want 2000", acct.Balance)
		}
		if acct.TemplateID.String() != tmpl.ID.String() {
			t.Errorf("template id: got %s, want %s", acct.TemplateID, tmpl.ID)
		}
	})

	t.Run("owner mints for self", func(t *testing.T) {
		if _, err := f.l.MintFromTemplate(f.bob, tmpl.ID, bobAddr); err != nil {
			t.Fatalf("mint: %v", err)
		}
	})

	t.Run("stranger cannot mint for owner", func(t *testing.T) {
		_, err := f.l.MintFromTemplate(f.bob, tmpl.ID, aliceAddr)
		wantKind(t, err, membership.KindUnauthorized)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.l.MintFromTemplate(f.admin, id.NewTemplateID(), aliceAddr)
		wantErr(t, err, membership.ErrTemplateNotFound)
	})

	list, err := f.l.ListAccountsByOwner(context.Background(), aliceAddr)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 account for alice, got %d", len(list))
	}
}

func TestTopUpNative(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)

	if _, err := f.l.TopUp(f.alice, acct.ID, 500, membership.Native); err != nil {
		t.Fatalf("top up: %v", err)
	}
	if _, err := f.l.TopUp(f.bob, acct.ID, 250, ""); err != nil {
		t.Fatalf("third-party top up: %v", err)
	}
	if got := f.balance(acct); got != 750 {
		t.Errorf("balance: got %d, want 750", got)
	}

	for _, amount := range []int64{0, -5} {
		_, err := f.l.TopUp(f.alice, acct.ID, amount, membership.Native)
		wantKind(t, err, membership.KindInvalidAmount)
	}

	_, err := f.l.TopUp(f.alice, id.NewAccountID(), 10, membership.Native)
	wantErr(t, err, membership.ErrAccountNotFound)

	history, err := f.l.GetTransactionHistory(context.Background(), acct.ID, account.HistoryQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(history))
	}
	if history[1].Counterparty != bobAddr || history[1].BalanceAfter != 750 {
		t.Errorf("unexpected second transaction: %+v", history[1])
	}
}

func TestTopUpToken(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 0)
	usdc := types.MustCurrency("USDC")

	_, err := f.l.TopUp(f.alice, acct.ID, 100, usdc)
	wantKind(t, err, membership.KindUnsupportedCurrency)

	if err := f.l.RegisterCurrency(f.admin, usdc); err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, err := f.l.IsCurrencySupported(context.Background(), "usdc")
	if err != nil || !ok {
		t.Fatalf("expected usdc supported, got %v, %v", ok, err)
	}

	_, err = f.l.TopUp(f.alice, acct.ID, 100, usdc)
	wantKind(t, err, membership.KindInsufficientAllowance)

	if err := f.l.ApproveAllowance(f.alice, usdc, 150); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.l.TopUp(f.alice, acct.ID, 100, usdc); err != nil {
		t.Fatalf("top up: %v", err)
	}

	remaining, err := f.l.Allowance(context.Background(), aliceAddr, usdc)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 50 {
		t.Errorf("allowance: got %d, want 50", remaining)
	}

	_, err = f.l.TopUp(f.alice, acct.ID, 60, usdc)
	wantKind(t, err, membership.KindInsufficientAllowance)
	if got := f.balance(acct); got != 100 {
		t.Errorf("balance: got %d, want 100", got)
	}

	if err := f.l.UnregisterCurrency(f.admin, usdc); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	_, err = f.l.TopUp(f.alice, acct.ID, 10, usdc)
	wantKind(t, err, membership.KindUnsupportedCurrency)

	wantKind(t, f.l.RegisterCurrency(f.alice, usdc), membership.KindUnauthorized)
	wantKind(t, f.l.RegisterCurrency(f.admin, membership.Native), membership.KindInvalidRange)
	wantKind(t, f.l.ApproveAllowance(f.alice, membership.Native, 1), membership.KindInvalidRange)
}

func TestProcessPayment(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 1000)

	tx, err := f.l.ProcessPayment(f.merchant, acct.ID, 400, "coffee")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if tx.Type != account.TxPayment || tx.Counterparty != merchantAddr || tx.Metadata != "coffee" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if tx.BalanceAfter != 600 || f.balance(acct) != 600 {
		t.Errorf("balance after payment: %d", f.balance(acct))
	}

	_, err = f.l.ProcessPayment(f.alice, acct.ID, 1, "")
	wantKind(t, err, membership.KindUnauthorized)

	_, err = f.l.ProcessPayment(f.merchant, acct.ID, 0, "")
	wantKind(t, err, membership.KindInvalidAmount)

	if err := f.l.RevokeMerchant(f.admin, merchantAddr); err != nil {
		t.Fatal(err)
	}
	_, err = f.l.ProcessPayment(f.merchant, acct.ID, 1, "")
	wantKind(t, err, membership.KindUnauthorized)
}

func TestBalanceNeverNegative(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 100)

	ops := []struct {
		topUp  bool
		amount int64
	}{
		{false, 60}, {false, 60}, {true, 30}, {false, 70}, {false, 1},
		{true, 5}, {false, 6}, {false, 5}, {false, 1},
	}

	expected := int64(100)
	for i, op := range ops {
		before := f.balance(acct)
		var err error
		if op.topUp {
			_, err = f.l.TopUp(f.alice, acct.ID, op.amount, membership.Native)
		} else {
			_, err = f.l.ProcessPayment(f.merchant, acct.ID, op.amount, "")
		}

		switch {
		case op.topUp:
			expected += op.amount
		case op.amount > before:
			wantKind(t, err, membership.KindInsufficientBalance)
		default:
			expected -= op.amount
		}
		if !op.topUp && op.amount <= before && err != nil {
			t.Fatalf("op %d: unexpected error %v", i, err)
		}

		got := f.balance(acct)
		if got < 0 {
			t.Fatalf("op %d: negative balance %d", i, got)
		}
		if got != expected {
			t.Fatalf("op %d: balance %d, want %d", i, got, expected)
		}
	}
}

func TestTransactionHistoryQuery(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 1000)

	steps := []func() error{
		func() error { _, err := f.l.TopUp(f.alice, acct.ID, 10, membership.Native); return err },
		func() error { _, err := f.l.ProcessPayment(f.merchant, acct.ID, 20, "a"); return err },
		func() error { _, err := f.l.TopUp(f.alice, acct.ID, 30, membership.Native); return err },
		func() error { _, err := f.l.ProcessPayment(f.merchant, acct.ID, 40, "b"); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		f.clock.Advance(time.Hour)
	}

	ctx := context.Background()
	tests := []struct {
		name    string
		query   account.HistoryQuery
		amounts []int64
	}{
		{"all", account.HistoryQuery{}, []int64{10, 20, 30, 40}},
		{"payments", account.HistoryQuery{Type: account.TxPayment}, []int64{20, 40}},
		{"since", account.HistoryQuery{Since: epoch.Add(2 * time.Hour)}, []int64{30, 40}},
		{"until", account.HistoryQuery{Until: epoch.Add(time.Hour)}, []int64{10, 20}},
		{"limit offset", account.HistoryQuery{Limit: 2, Offset: 1}, []int64{20, 30}},
		{"offset past end", account.HistoryQuery{Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := f.l.GetTransactionHistory(ctx, acct.ID, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if len(txs) != len(tt.amounts) {
				t.Fatalf("expected %d transactions, got %d", len(tt.amounts), len(txs))
			}
			for i, tx := range txs {
				if tx.Amount != tt.amounts[i] {
					t.Errorf("tx %d: amount %d, want %d", i, tx.Amount, tt.amounts[i])
				}
			}
		})
	}

	stats, err := f.l.TransactionStats(ctx, acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 4 || stats.TotalTopUp != 40 || stats.TotalPayment != 60 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ByMerchant[merchantAddr] != 60 {
		t.Errorf("by merchant: %v", stats.ByMerchant)
	}

	_, err = f.l.GetTransactionHistory(ctx, id.NewAccountID(), account.HistoryQuery{})
	wantErr(t, err, membership.ErrAccountNotFound)
}

func TestPaymentScenario(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 2000)

	if _, err := f.l.TopUp(f.alice, acct.ID, 500, membership.Native); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(acct); got != 2500 {
		t.Fatalf("balance after top-up: %d", got)
	}
	if _, err := f.l.ProcessPayment(f.merchant, acct.ID, 2500, "all in"); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(acct); got != 0 {
		t.Fatalf("balance after payment: %d", got)
	}
	_, err := f.l.ProcessPayment(f.merchant, acct.ID, 1, "")
	wantKind(t, err, membership.KindInsufficientBalance)
}
