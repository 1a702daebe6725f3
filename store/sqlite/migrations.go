package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the membership store (SQLite).
var Migrations = migrate.NewGroup("membership")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_membership_templates",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_templates (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    base_balance     INTEGER NOT NULL DEFAULT 0,
    mint_price       INTEGER NOT NULL DEFAULT 0,
    discount_percent INTEGER NOT NULL DEFAULT 0,
    is_vip           INTEGER NOT NULL DEFAULT 0,
    metadata_ref     TEXT NOT NULL DEFAULT '',
    active           INTEGER NOT NULL DEFAULT 1,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS membership_merchants (
    address    TEXT PRIMARY KEY,
    authorized INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_merchants; DROP TABLE IF EXISTS membership_templates`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_membership_accounts",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_accounts (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    balance     INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    template_id TEXT NOT NULL REFERENCES membership_templates (id),
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_membership_accounts_owner ON membership_accounts (owner);

CREATE TABLE IF NOT EXISTS membership_transactions (
    id            TEXT PRIMARY KEY,
    account_id    TEXT NOT NULL REFERENCES membership_accounts (id),
    seq           INTEGER NOT NULL,
    type          TEXT NOT NULL,
    amount        INTEGER NOT NULL,
    currency      TEXT NOT NULL,
    counterparty  TEXT NOT NULL DEFAULT '',
    metadata      TEXT NOT NULL DEFAULT '',
    balance_after INTEGER NOT NULL,
    occurred_at   INTEGER NOT NULL,
    UNIQUE (account_id, seq)
);

CREATE TABLE IF NOT EXISTS membership_allowances (
    owner    TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount   INTEGER NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (owner, currency)
);

CREATE TABLE IF NOT EXISTS membership_currencies (
    currency      TEXT PRIMARY KEY,
    registered_at INTEGER NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_currencies; DROP TABLE IF EXISTS membership_allowances; DROP TABLE IF EXISTS membership_transactions; DROP TABLE IF EXISTS membership_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_membership_benefits",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_benefits (
    id              TEXT PRIMARY KEY,
    account_id      TEXT NOT NULL REFERENCES membership_accounts (id),
    idx             INTEGER NOT NULL,
    type            TEXT NOT NULL,
    value           INTEGER NOT NULL,
    remaining_value INTEGER NOT NULL CHECK (remaining_value >= 0),
    expires_at      INTEGER NOT NULL,
    redeemed_for    TEXT NOT NULL DEFAULT '',
    granted_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    UNIQUE (account_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_membership_benefits_redeemed_for
    ON membership_benefits (account_id, redeemed_for) WHERE redeemed_for <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_benefits`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_membership_events",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_events (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    location         TEXT NOT NULL DEFAULT '',
    scheduled_at     INTEGER NOT NULL,
    max_capacity     INTEGER NOT NULL,
    booked_count     INTEGER NOT NULL DEFAULT 0,
    checked_in_count INTEGER NOT NULL DEFAULT 0,
    price            INTEGER NOT NULL DEFAULT 0,
    event_type       TEXT NOT NULL DEFAULT '',
    active           INTEGER NOT NULL DEFAULT 1,
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL,
    CHECK (booked_count >= 0 AND booked_count <= max_capacity)
);

CREATE INDEX IF NOT EXISTS idx_membership_events_schedule ON membership_events (active, scheduled_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_membership_bookings",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_bookings (
    pos             INTEGER PRIMARY KEY AUTOINCREMENT,
    id              TEXT NOT NULL UNIQUE,
    account_id      TEXT NOT NULL REFERENCES membership_accounts (id),
    event_id        TEXT NOT NULL REFERENCES membership_events (id),
    entrance_number INTEGER NOT NULL,
    state           TEXT NOT NULL,
    price_paid      INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    UNIQUE (account_id, event_id, entrance_number)
);

CREATE INDEX IF NOT EXISTS idx_membership_bookings_event ON membership_bookings (event_id);

CREATE TABLE IF NOT EXISTS membership_pairs (
    account_id    TEXT NOT NULL,
    event_id      TEXT NOT NULL,
    allowance     INTEGER NOT NULL,
    active        INTEGER NOT NULL,
    next_entrance INTEGER NOT NULL,
    cancellations INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    PRIMARY KEY (account_id, event_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_pairs; DROP TABLE IF EXISTS membership_bookings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_membership_notifications",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS membership_notifications (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL UNIQUE,
    kind         TEXT NOT NULL,
    occurred_at  INTEGER NOT NULL,
    data         BLOB NOT NULL,
    delivered_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_membership_notifications_pending
    ON membership_notifications (seq) WHERE delivered_at IS NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS membership_notifications`)
				return err
			},
		},
	)
}
