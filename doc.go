// Package membership provides a membership entitlement ledger for Go
// applications.
//
// The ledger tracks stored value on membership accounts minted from tiered
// templates, time-limited benefit grants, and capacity-constrained event
// bookings. It is designed as a library, not a service: embed it in the
// process that authenticates callers and exposes whatever transport you
// need. It provides:
//
//   - Templates that seed new accounts with a base balance
//   - Top-ups in the native unit or registered tokens drawn from an approved allowance
//   - Merchant-authorized payments with an append-only transaction log
//   - Benefits (merchant allowances, yacht events, discounts) with per-type bounds
//   - Events with capacity, a cancellation window and admin check-in
//   - A transactional notification outbox delivered in commit order to plugins
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/membership"
//	    "github.com/xraph/membership/store/memory"
//	)
//
//	l := membership.New(memory.New(),
//	    membership.WithAdmins("0xadmin"),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	admin := membership.WithCaller(ctx, "0xadmin")
//	tmpl, err := l.CreateTemplate(admin, membership.TemplateInput{
//	    Name:        "Gold",
//	    BaseBalance: 1000,
//	})
//
//	acct, err := l.MintFromTemplate(admin, tmpl.ID, "0xalice")
//
// # Callers and capabilities
//
// Every operation takes the caller's identity from the context
// (WithCaller). Admin identities are configured on the engine; merchants
// are authorized by an admin at runtime; owners are whoever an account was
// minted for. Operations resolve their targets first, then check the
// caller, then apply their own rules.
//
// # Atomicity
//
// Mutating operations run one at a time. Each runs inside a store
// transaction and either applies completely or returns an error with no
// effect. Rejections are sentinel errors; KindOf maps any error to the
// name of its kind.
//
// # Notifications
//
// Each successful mutation appends notifications to an outbox in the same
// transaction. A background relay delivers them to plugins in sequence
// order, retrying with backoff; delivery is at-least-once, so consumers
// should deduplicate on the notification ID.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	tmpl_01h2xcejqtf2nbrexx3vqjhp41  // Template ID
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	evt_01h455vb4pex5vsknk084sn02q   // Event ID
package membership
