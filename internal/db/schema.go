package db

import (
	"context"
	"fmt"
	"strings"
)

// schema is the full database schema. {{id}}, {{time}} and {{blob}} are
// replaced with dialect-specific column types.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            {{id}},
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    created_at    {{time}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    {{time}}
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at {{time}} NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS owners (
    id         {{id}},
    name       TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('location', 'technician')),
    created_at {{time}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at {{time}}
);

CREATE TABLE IF NOT EXISTS definitions (
    id          {{id}},
    kind        TEXT NOT NULL CHECK (kind IN ('device', 'material')),
    name        TEXT NOT NULL,
    category    TEXT,
    unit        TEXT NOT NULL DEFAULT 'pcs',
    description TEXT,
    image       {{blob}},
    image_mime  TEXT,
    created_at  {{time}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  {{time}} NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at  {{time}}
);

CREATE TABLE IF NOT EXISTS proposals (
    id            TEXT PRIMARY KEY,
    scope_type    TEXT NOT NULL CHECK (scope_type IN ('location', 'technician')),
    from_owner_id BIGINT NOT NULL REFERENCES owners(id),
    to_owner_id   BIGINT NOT NULL REFERENCES owners(id),
    status        TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled')),
    notes         TEXT,
    created_by    BIGINT NOT NULL,
    created_at    {{time}} NOT NULL,
    settled_by    BIGINT,
    settled_at    {{time}},
    settle_notes  TEXT,
    CHECK (from_owner_id <> to_owner_id)
);

CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);

CREATE TABLE IF NOT EXISTS items (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL CHECK (kind IN ('device', 'material')),
    definition_id BIGINT NOT NULL REFERENCES definitions(id),
    serial        TEXT,
    quantity      INTEGER NOT NULL CHECK (quantity >= 0),
    location_id   BIGINT REFERENCES owners(id),
    holder_id     BIGINT REFERENCES owners(id),
    status        TEXT NOT NULL CHECK (status IN ('available', 'assigned', 'collected_from_client', 'returned', 'returned_to_operator')),
    reserved      BOOLEAN NOT NULL DEFAULT FALSE,
    reserved_by   TEXT REFERENCES proposals(id),
    name          TEXT NOT NULL,
    category      TEXT,
    unit          TEXT NOT NULL,
    created_at    {{time}} NOT NULL,
    updated_at    {{time}} NOT NULL,
    CHECK ((location_id IS NULL) <> (holder_id IS NULL)),
    CHECK ((kind = 'device' AND serial IS NOT NULL AND quantity = 1) OR (kind = 'material' AND serial IS NULL)),
    CHECK (reserved = (reserved_by IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_serial_live
    ON items(serial) WHERE kind = 'device' AND status <> 'returned_to_operator';

CREATE INDEX IF NOT EXISTS idx_items_definition ON items(definition_id, location_id, holder_id);

CREATE INDEX IF NOT EXISTS idx_items_reserved_by ON items(reserved_by);

CREATE TABLE IF NOT EXISTS proposal_lines (
    proposal_id       TEXT NOT NULL REFERENCES proposals(id),
    position          INTEGER NOT NULL,
    item_kind         TEXT NOT NULL CHECK (item_kind IN ('device', 'material')),
    quantity          INTEGER NOT NULL CHECK (quantity > 0),
    source_item_id    TEXT REFERENCES items(id),
    definition_id     BIGINT NOT NULL REFERENCES definitions(id),
    name_snapshot     TEXT NOT NULL,
    serial_snapshot   TEXT,
    category_snapshot TEXT,
    unit_snapshot     TEXT NOT NULL,
    PRIMARY KEY (proposal_id, position)
);

CREATE TABLE IF NOT EXISTS ledger (
    id                  {{id}},
    item_id             TEXT NOT NULL REFERENCES items(id),
    counterpart_item_id TEXT REFERENCES items(id),
    action              TEXT NOT NULL CHECK (action IN ('received', 'issued', 'returned', 'collected_from_client', 'returned_to_operator', 'transfer_proposed', 'transfer_confirmed', 'transfer_rejected', 'transfer_cancelled')),
    actor_id            BIGINT NOT NULL,
    from_owner_id       BIGINT REFERENCES owners(id),
    to_owner_id         BIGINT REFERENCES owners(id),
    proposal_id         TEXT REFERENCES proposals(id),
    quantity_delta      INTEGER NOT NULL DEFAULT 0,
    notes               TEXT,
    created_at          {{time}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_item ON ledger(item_id);

CREATE INDEX IF NOT EXISTS idx_ledger_counterpart ON ledger(counterpart_item_id);
`

// sqliteGuards make the ledger append-only at the storage level.
const sqliteGuards = `
CREATE TRIGGER IF NOT EXISTS ledger_no_update BEFORE UPDATE ON ledger
BEGIN
    SELECT RAISE(ABORT, 'ledger is append-only');
END;

CREATE TRIGGER IF NOT EXISTS ledger_no_delete BEFORE DELETE ON ledger
BEGIN
    SELECT RAISE(ABORT, 'ledger is append-only');
END;
`

var columnTypes = map[Dialect]*strings.Replacer{
	DialectSQLite: strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY",
		"{{time}}", "DATETIME",
		"{{blob}}", "BLOB",
	),
	DialectPostgres: strings.NewReplacer(
		"{{id}}", "BIGSERIAL PRIMARY KEY",
		"{{time}}", "TIMESTAMPTZ",
		"{{blob}}", "BYTEA",
	),
}

// Schema returns the schema DDL for the dialect.
func Schema(d Dialect) string {
	r, ok := columnTypes[d]
	if !ok {
		r = columnTypes[DialectSQLite]
	}
	ddl := r.Replace(schema)
	if d != DialectPostgres {
		ddl += sqliteGuards
	}
	return ddl
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(d *DB) error {
	if _, err := d.DB.ExecContext(context.Background(), Schema(d.dialect)); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
