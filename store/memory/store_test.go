package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/membership"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/store"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/store/storetest"
	"github.com/xraph/membership/template"
	"github.com/xraph/membership/types"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	tpl := &template.Template{Entity: types.NewEntity(storetest.Epoch), ID: id.NewTemplateID(), Name: "gold", Active: true}
	if err := s.CreateTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	tpl.Name = "mutated after create"

	got, err := s.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "gold" {
		t.Errorf("store aliased the caller's value: %q", got.Name)
	}
	got.Name = "mutated after get"

	again, _ := s.GetTemplate(ctx, tpl.ID)
	if again.Name != "gold" {
		t.Errorf("store handed out its own value: %q", again.Name)
	}
}

func TestAtomicHonoursCancelledContext(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Atomic(ctx, func(tx store.Store) error {
		called = true
		return tx.PutMerchant(ctx, &merchant.Merchant{Address: "0xshop", Authorized: true})
	})
	if err == nil || called {
		t.Fatalf("expected the cancelled context to stop the transaction, err=%v called=%v", err, called)
	}
}

func TestAtomicRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected the panic to propagate, got %v", r)
			}
		}()
		_ = s.Atomic(ctx, func(tx store.Store) error {
			if err := tx.PutMerchant(ctx, &merchant.Merchant{Address: "0xshop", Authorized: true}); err != nil {
				t.Fatal(err)
			}
			panic("boom")
		})
	}()

	_, err := s.GetMerchant(ctx, "0xshop")
	if !errors.Is(err, membership.ErrMerchantNotFound) {
		t.Errorf("write survived the panic: err=%v", err)
	}

	// The lock must be released so later transactions can run.
	if err := s.Atomic(ctx, func(tx store.Store) error {
		return tx.PutMerchant(ctx, &merchant.Merchant{Address: "0xcafe", Authorized: true})
	}); err != nil {
		t.Fatalf("atomic after panic: %v", err)
	}
}
