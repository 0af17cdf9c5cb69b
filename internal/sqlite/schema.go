package sqlite

// Schema DDL. Every statement is idempotent so an existing database is
// opened in place.
const (
	createSchemes = `CREATE TABLE IF NOT EXISTS schemes (
    scheme_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createAttributes = `CREATE TABLE IF NOT EXISTS attributes (
    scheme_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    type_spec TEXT NOT NULL,
    default_value TEXT,
    identifier INTEGER NOT NULL DEFAULT 0,
    meta TEXT,
    PRIMARY KEY (scheme_id, name),
    FOREIGN KEY (scheme_id) REFERENCES schemes(scheme_id) ON DELETE CASCADE
);`

	createEntries = `CREATE TABLE IF NOT EXISTS entries (
    scheme_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    entry_values TEXT NOT NULL,
    PRIMARY KEY (scheme_id, ordinal),
    FOREIGN KEY (scheme_id) REFERENCES schemes(scheme_id) ON DELETE CASCADE
);`
)

// Index DDL.
const (
	idxAttributesOrdinal = `CREATE INDEX IF NOT EXISTS idx_attributes_ordinal ON attributes(scheme_id, ordinal);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSchemes,
	createAttributes,
	createEntries,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxAttributesOrdinal,
}
