package store

// schemaStatements bootstrap the database. Every statement is idempotent so
// EnsureSchema can run on each start, including against databases created by
// older releases that lack the later columns.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trait_categories (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    display_order INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE IF NOT EXISTS trait_definitions (
    id SERIAL PRIMARY KEY,
    key TEXT NOT NULL UNIQUE,
    display_name TEXT,
    value_type TEXT,
    default_value JSONB NOT NULL DEFAULT 'null',
    constraints JSONB NOT NULL DEFAULT '{}',
    dependencies JSONB NOT NULL DEFAULT '[]',
    conflicts JSONB NOT NULL DEFAULT '[]'
);`,
	`CREATE TABLE IF NOT EXISTS trait_options (
    id SERIAL PRIMARY KEY,
    definition_key TEXT NOT NULL,
    value JSONB NOT NULL,
    region TEXT NOT NULL DEFAULT '',
    vendor TEXT NOT NULL DEFAULT '',
    device_class TEXT NOT NULL DEFAULT '',
    os TEXT NOT NULL DEFAULT ''
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS trait_options_natural_key
    ON trait_options (definition_key, md5(value::text), region, vendor, device_class, os);`,
	`CREATE TABLE IF NOT EXISTS trait_presets (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    items JSONB NOT NULL DEFAULT '{}'
);`,
	`CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    data JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	`CREATE TABLE IF NOT EXISTS browsers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    profile_id TEXT,
    proxy JSONB NOT NULL DEFAULT 'null',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,

	// Columns added after the first release.
	`ALTER TABLE trait_definitions ADD COLUMN IF NOT EXISTS category TEXT;`,
	`ALTER TABLE trait_options ADD COLUMN IF NOT EXISTS weight DOUBLE PRECISION;`,
	`ALTER TABLE profiles ADD COLUMN IF NOT EXISTS source_hash TEXT NOT NULL DEFAULT '';`,
	`ALTER TABLE profiles ADD COLUMN IF NOT EXISTS generator_version TEXT NOT NULL DEFAULT '';`,
	`ALTER TABLE profiles ADD COLUMN IF NOT EXISTS degraded BOOLEAN NOT NULL DEFAULT false;`,

	// Backfill rows written before those columns existed.
	`UPDATE trait_definitions SET category = 'General' WHERE category IS NULL OR category = '';`,
	`UPDATE trait_definitions SET value_type = 'string' WHERE value_type IS NULL OR value_type = '';`,
	`UPDATE trait_definitions SET display_name = key WHERE display_name IS NULL OR display_name = '';`,
	`UPDATE trait_options SET weight = 1 WHERE weight IS NULL OR weight <= 0;`,
	`UPDATE trait_categories SET display_order = id WHERE display_order = 0;`,
}
