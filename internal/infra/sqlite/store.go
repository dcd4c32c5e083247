package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crediton-network/crediton/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

// UpsertAccount inserts or updates an account row.
func (db *DB) UpsertAccount(a domain.Account) error {
	_, err := db.db.Exec(`
		INSERT INTO accounts (id, balance, credit_limit, credit_balance, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			balance        = excluded.balance,
			credit_limit   = excluded.credit_limit,
			credit_balance = excluded.credit_balance,
			updated_at     = datetime('now')
	`, string(a.ID), a.Balance.String(), a.CreditLimit.String(), a.CreditBalance.String())
	return err
}

// GetAccount retrieves an account row, nil if absent.
func (db *DB) GetAccount(id domain.AccountID) (*domain.Account, error) {
	var balance, limit, credit string
	err := db.db.QueryRow(`
		SELECT balance, credit_limit, credit_balance FROM accounts WHERE id = ?
	`, string(id)).Scan(&balance, &limit, &credit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := domain.NewAccount(id)
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if a.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, err
	}
	if a.CreditBalance, err = decimal.NewFromString(credit); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAccounts returns every stored account.
func (db *DB) ListAccounts() ([]domain.Account, error) {
	rows, err := db.db.Query(`
		SELECT id, balance, credit_limit, credit_balance FROM accounts ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		var id, balance, limit, credit string
		if err := rows.Scan(&id, &balance, &limit, &credit); err != nil {
			return nil, err
		}
		a := domain.NewAccount(domain.AccountID(id))
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, err
		}
		if a.CreditLimit, err = decimal.NewFromString(limit); err != nil {
			return nil, err
		}
		if a.CreditBalance, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// ─── Credit Period Operations ───────────────────────────────────────────────

// UpsertCreditPeriod inserts or updates a period row.
func (db *DB) UpsertCreditPeriod(p domain.CreditPeriod) error {
	paused := 0
	if p.Paused {
		paused = 1
	}
	_, err := db.db.Exec(`
		INSERT INTO credit_periods (account_id, issued_at, period_expiration, grace_seconds, paused)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			issued_at         = excluded.issued_at,
			period_expiration = excluded.period_expiration,
			grace_seconds     = excluded.grace_seconds,
			paused            = excluded.paused
	`, string(p.AccountID), p.IssuedAt.Format(time.RFC3339), p.PeriodExpiration.Format(time.RFC3339),
		int64(p.GraceLength/time.Second), paused)
	return err
}

// DeleteCreditPeriod removes a period row (renewal or default).
func (db *DB) DeleteCreditPeriod(id domain.AccountID) error {
	_, err := db.db.Exec(`DELETE FROM credit_periods WHERE account_id = ?`, string(id))
	return err
}

// ListCreditPeriods returns every stored period.
func (db *DB) ListCreditPeriods() ([]domain.CreditPeriod, error) {
	rows, err := db.db.Query(`
		SELECT account_id, issued_at, period_expiration, grace_seconds, paused
		FROM credit_periods ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CreditPeriod
	for rows.Next() {
		var id, issuedStr, expStr string
		var graceSecs int64
		var paused int
		if err := rows.Scan(&id, &issuedStr, &expStr, &graceSecs, &paused); err != nil {
			return nil, err
		}
		issued, err := time.Parse(time.RFC3339, issuedStr)
		if err != nil {
			return nil, err
		}
		exp, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.CreditPeriod{
			AccountID:        domain.AccountID(id),
			IssuedAt:         issued,
			PeriodExpiration: exp,
			GraceLength:      time.Duration(graceSecs) * time.Second,
			Paused:           paused == 1,
		})
	}
	return result, rows.Err()
}

// ─── Reserve Operations ─────────────────────────────────────────────────────

// UpsertReserveAccount inserts or updates a reserve row.
func (db *DB) UpsertReserveAccount(r domain.ReserveAccount) error {
	_, err := db.db.Exec(`
		INSERT INTO reserve_accounts (asset_id, primary_balance, peripheral_balance, excess_balance, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(asset_id) DO UPDATE SET
			primary_balance    = excluded.primary_balance,
			peripheral_balance = excluded.peripheral_balance,
			excess_balance     = excluded.excess_balance,
			updated_at         = datetime('now')
	`, r.AssetID, r.Primary.String(), r.Peripheral.String(), r.Excess.String())
	return err
}

// GetReserveAccount retrieves a reserve row, nil if absent.
func (db *DB) GetReserveAccount(assetID string) (*domain.ReserveAccount, error) {
	var primary, peripheral, excess string
	err := db.db.QueryRow(`
		SELECT primary_balance, peripheral_balance, excess_balance
		FROM reserve_accounts WHERE asset_id = ?
	`, assetID).Scan(&primary, &peripheral, &excess)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := domain.NewReserveAccount(assetID)
	if r.Primary, err = decimal.NewFromString(primary); err != nil {
		return nil, err
	}
	if r.Peripheral, err = decimal.NewFromString(peripheral); err != nil {
		return nil, err
	}
	if r.Excess, err = decimal.NewFromString(excess); err != nil {
		return nil, err
	}
	return r, nil
}

// ─── Fee Config Operations ──────────────────────────────────────────────────

// SaveFeeConfig persists the fee schedule and accumulator.
func (db *DB) SaveFeeConfig(cfg domain.FeeConfig) error {
	paused := 0
	if cfg.Paused {
		paused = 1
	}
	if _, err := db.db.Exec(`
		INSERT INTO fee_config (id, target_fee_rate, collected_fees, paused)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_fee_rate = excluded.target_fee_rate,
			collected_fees  = excluded.collected_fees,
			paused          = excluded.paused
	`, cfg.TargetFeeRate, cfg.CollectedFees.String(), paused); err != nil {
		return err
	}
	if _, err := db.db.Exec(`DELETE FROM member_fee_rates`); err != nil {
		return err
	}
	for id, rate := range cfg.MemberRates {
		if _, err := db.db.Exec(`
			INSERT INTO member_fee_rates (account_id, rate_ppm) VALUES (?, ?)
		`, string(id), rate); err != nil {
			return err
		}
	}
	return nil
}

// LoadFeeConfig retrieves the fee schedule, nil if never saved.
func (db *DB) LoadFeeConfig() (*domain.FeeConfig, error) {
	var rate int64
	var collected string
	var paused int
	err := db.db.QueryRow(`
		SELECT target_fee_rate, collected_fees, paused FROM fee_config WHERE id = 1
	`).Scan(&rate, &collected, &paused)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := domain.NewFeeConfig(rate)
	if cfg.CollectedFees, err = decimal.NewFromString(collected); err != nil {
		return nil, err
	}
	cfg.Paused = paused == 1

	rows, err := db.db.Query(`SELECT account_id, rate_ppm FROM member_fee_rates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var ppm int64
		if err := rows.Scan(&id, &ppm); err != nil {
			return nil, err
		}
		cfg.MemberRates[domain.AccountID(id)] = ppm
	}
	return cfg, rows.Err()
}

// ─── Ledger Totals ──────────────────────────────────────────────────────────

// SaveTotals persists the circulating supply and outstanding debt.
func (db *DB) SaveTotals(supply, debt decimal.Decimal) error {
	_, err := db.db.Exec(`
		INSERT INTO ledger_totals (id, total_supply, outstanding_debt)
		VALUES ('1', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_supply     = excluded.total_supply,
			outstanding_debt = excluded.outstanding_debt
	`, supply.String(), debt.String())
	return err
}

// LoadTotals retrieves the persisted totals; zeros if never saved.
func (db *DB) LoadTotals() (supply, debt decimal.Decimal, err error) {
	var supplyStr, debtStr string
	err = db.db.QueryRow(`
		SELECT total_supply, outstanding_debt FROM ledger_totals WHERE id = '1'
	`).Scan(&supplyStr, &debtStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if supply, err = decimal.NewFromString(supplyStr); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if debt, err = decimal.NewFromString(debtStr); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return supply, debt, nil
}

// ─── Membership Operations ──────────────────────────────────────────────────

// GrantMember records a membership grant. Idempotent.
func (db *DB) GrantMember(id domain.AccountID) error {
	_, err := db.db.Exec(`
		INSERT INTO members (id) VALUES (?) ON CONFLICT(id) DO NOTHING
	`, string(id))
	return err
}

// RevokeMember removes a membership grant.
func (db *DB) RevokeMember(id domain.AccountID) error {
	_, err := db.db.Exec(`DELETE FROM members WHERE id = ?`, string(id))
	return err
}

// ListMembers returns every current member id.
func (db *DB) ListMembers() ([]domain.AccountID, error) {
	rows, err := db.db.Query(`SELECT id FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AccountID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, domain.AccountID(id))
	}
	return out, rows.Err()
}

// ─── Collateral Operations ──────────────────────────────────────────────────

// SetCollateral stores an external collateral balance.
func (db *DB) SetCollateral(id domain.AccountID, balance decimal.Decimal) error {
	_, err := db.db.Exec(`
		INSERT INTO collateral (account_id, balance, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(account_id) DO UPDATE SET
			balance    = excluded.balance,
			updated_at = datetime('now')
	`, string(id), balance.String())
	return err
}

// ListCollateral returns every stored collateral balance.
func (db *DB) ListCollateral() (map[domain.AccountID]decimal.Decimal, error) {
	rows, err := db.db.Query(`SELECT account_id, balance FROM collateral`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[domain.AccountID]decimal.Decimal)
	for rows.Next() {
		var id, balance string
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, err
		}
		out[domain.AccountID(id)] = d
	}
	return out, rows.Err()
}

// ─── Journal Operations ─────────────────────────────────────────────────────

// Append writes one immutable journal row. Satisfies the ledger's Journal
// interface; the journal is advisory, so a failed write never blocks a
// balance mutation.
func (db *DB) Append(kind domain.JournalKind, from, to domain.AccountID, amount decimal.Decimal) {
	db.AppendJournal(domain.JournalEntry{
		ID:     uuid.NewString(),
		Kind:   kind,
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now(),
	})
}

// AppendJournal writes a fully-formed journal entry.
func (db *DB) AppendJournal(e domain.JournalEntry) error {
	_, err := db.db.Exec(`
		INSERT INTO credit_journal (id, kind, from_account, to_account, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), string(e.From), string(e.To), e.Amount.String(), e.At.Format(time.RFC3339))
	return err
}

// JournalFor returns the most recent journal entries touching an account.
func (db *DB) JournalFor(id domain.AccountID, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.Query(`
		SELECT id, kind, from_account, to_account, amount, created_at
		FROM credit_journal
		WHERE from_account = ? OR to_account = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(id), string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJournal(rows)
}

// JournalByKind returns the most recent journal entries of one kind.
func (db *DB) JournalByKind(kind domain.JournalKind, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.Query(`
		SELECT id, kind, from_account, to_account, amount, created_at
		FROM credit_journal WHERE kind = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJournal(rows)
}

func scanJournal(rows *sql.Rows) ([]domain.JournalEntry, error) {
	var result []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var kind, from, to, amount, created string
		if err := rows.Scan(&e.ID, &kind, &from, &to, &amount, &created); err != nil {
			return nil, err
		}
		e.Kind = domain.JournalKind(kind)
		e.From = domain.AccountID(from)
		e.To = domain.AccountID(to)
		var err error
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
