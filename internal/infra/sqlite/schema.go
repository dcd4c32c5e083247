package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Decimal amounts are stored as TEXT to avoid float drift; timestamps as
// RFC3339 TEXT.
func Migrations() []string {
	return []string{
		// Account balances and credit lines
		`CREATE TABLE IF NOT EXISTS accounts (
			id             TEXT PRIMARY KEY,
			balance        TEXT NOT NULL DEFAULT '0',
			credit_limit   TEXT NOT NULL DEFAULT '0',
			credit_balance TEXT NOT NULL DEFAULT '0',
			updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Underwriting periods, one open period per account
		`CREATE TABLE IF NOT EXISTS credit_periods (
			account_id        TEXT PRIMARY KEY,
			issued_at         TEXT NOT NULL,
			period_expiration TEXT NOT NULL,
			grace_seconds     INTEGER NOT NULL DEFAULT 0,
			paused            INTEGER NOT NULL DEFAULT 0
		)`,

		// Segmented reserve, one row per collateral denomination
		`CREATE TABLE IF NOT EXISTS reserve_accounts (
			asset_id           TEXT PRIMARY KEY,
			primary_balance    TEXT NOT NULL DEFAULT '0',
			peripheral_balance TEXT NOT NULL DEFAULT '0',
			excess_balance     TEXT NOT NULL DEFAULT '0',
			updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Fee schedule and accumulator (single row, id=1)
		`CREATE TABLE IF NOT EXISTS fee_config (
			id              INTEGER PRIMARY KEY CHECK (id = 1),
			target_fee_rate INTEGER NOT NULL DEFAULT 0,
			collected_fees  TEXT NOT NULL DEFAULT '0',
			paused          INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS member_fee_rates (
			account_id TEXT PRIMARY KEY,
			rate_ppm   INTEGER NOT NULL
		)`,

		// Ledger totals (single row, id=1)
		`CREATE TABLE IF NOT EXISTS ledger_totals (
			id                TEXT PRIMARY KEY CHECK (id = '1'),
			total_supply      TEXT NOT NULL DEFAULT '0',
			outstanding_debt  TEXT NOT NULL DEFAULT '0'
		)`,

		// Membership roster (role grants live in config, not here)
		`CREATE TABLE IF NOT EXISTS members (
			id         TEXT PRIMARY KEY,
			granted_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// External collateral balances per depositor
		`CREATE TABLE IF NOT EXISTS collateral (
			account_id TEXT PRIMARY KEY,
			balance    TEXT NOT NULL DEFAULT '0',
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Append-only credit journal
		`CREATE TABLE IF NOT EXISTS credit_journal (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			from_account TEXT,
			to_account   TEXT,
			amount       TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_kind ON credit_journal(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_from ON credit_journal(from_account)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_to ON credit_journal(to_account)`,
	}
}
