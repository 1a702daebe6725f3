package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the membership store.
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
    base_balance     BIGINT NOT NULL DEFAULT 0,
    mint_price       BIGINT NOT NULL DEFAULT 0,
    discount_percent INT NOT NULL DEFAULT 0,
    is_vip           BOOLEAN NOT NULL DEFAULT FALSE,
    metadata_ref     TEXT NOT NULL DEFAULT '',
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS membership_merchants (
    address    TEXT PRIMARY KEY,
    authorized BOOLEAN NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    balance     BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    template_id TEXT NOT NULL REFERENCES membership_templates (id),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_membership_accounts_owner ON membership_accounts (owner);

CREATE TABLE IF NOT EXISTS membership_transactions (
    id            TEXT PRIMARY KEY,
    account_id    TEXT NOT NULL REFERENCES membership_accounts (id),
    seq           BIGINT NOT NULL,
    type          TEXT NOT NULL,
    amount        BIGINT NOT NULL,
    currency      TEXT NOT NULL,
    counterparty  TEXT NOT NULL DEFAULT '',
    metadata      TEXT NOT NULL DEFAULT '',
    balance_after BIGINT NOT NULL,
    occurred_at   TIMESTAMPTZ NOT NULL,
    UNIQUE (account_id, seq)
);

CREATE TABLE IF NOT EXISTS membership_allowances (
    owner    TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount   BIGINT NOT NULL CHECK (amount >= 0),
    PRIMARY KEY (owner, currency)
);

CREATE TABLE IF NOT EXISTS membership_currencies (
    currency      TEXT PRIMARY KEY,
    registered_at TIMESTAMPTZ NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS membership_currencies;
DROP TABLE IF EXISTS membership_allowances;
DROP TABLE IF EXISTS membership_transactions;
DROP TABLE IF EXISTS membership_accounts;
`)
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
    idx             INT NOT NULL,
    type            TEXT NOT NULL,
    value           BIGINT NOT NULL,
    remaining_value BIGINT NOT NULL CHECK (remaining_value >= 0),
    redeemed_for    TEXT NOT NULL DEFAULT '',
    expires_at      TIMESTAMPTZ NOT NULL,
    granted_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
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
    scheduled_at     TIMESTAMPTZ NOT NULL,
    max_capacity     INT NOT NULL,
    booked_count     INT NOT NULL DEFAULT 0,
    checked_in_count INT NOT NULL DEFAULT 0,
    price            BIGINT NOT NULL DEFAULT 0,
    event_type       TEXT NOT NULL DEFAULT '',
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
    pos             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    account_id      TEXT NOT NULL REFERENCES membership_accounts (id),
    event_id        TEXT NOT NULL REFERENCES membership_events (id),
    entrance_number INT NOT NULL,
    state           TEXT NOT NULL,
    price_paid      BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (account_id, event_id, entrance_number)
);

CREATE INDEX IF NOT EXISTS idx_membership_bookings_event ON membership_bookings (event_id);

CREATE TABLE IF NOT EXISTS membership_pairs (
    account_id    TEXT NOT NULL,
    event_id      TEXT NOT NULL,
    allowance     INT NOT NULL,
    active        INT NOT NULL,
    next_entrance INT NOT NULL,
    cancellations INT NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
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
    seq          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    kind         TEXT NOT NULL,
    occurred_at  TIMESTAMPTZ NOT NULL,
    data         JSONB NOT NULL,
    delivered_at TIMESTAMPTZ
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
