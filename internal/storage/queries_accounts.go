package storage

import (
	"context"
	"database/sql"

	"conti/internal/core"
)

// Accounts

const accountColumns = `id, user_id, name, description, account_type, institution, currency,
    opening_balance_cents, active, created_at`

func scanAccount(row scanner) (core.Account, error) {
	var a core.Account
	var typ, created string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &typ, &a.Institution, &a.Currency,
		&a.OpeningBalance.Cents, &a.Active, &created); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Description, string(a.Type), a.Institution, a.Currency,
		a.OpeningBalance.Cents, a.Active, formatTime(a.CreatedAt))
	return err
}

func (q *Queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	return scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND id = ?`, userID, id))
}

func (q *Queries) ListAccounts(ctx context.Context, userID string, includeArchived bool) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE user_id = ? AND (active = 1 OR ?) ORDER BY name, id`, userID, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) SetAccountActive(ctx context.Context, userID, id string, active bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE accounts SET active = ? WHERE user_id = ? AND id = ?`, active, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) LedgerTotals(ctx context.Context, userID string) (map[string]LedgerTotal, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT account_id, SUM(amount_cents), COUNT(*) FROM transactions
WHERE user_id = ? AND account_id IS NOT NULL AND status <> ?
GROUP BY account_id`, userID, string(core.TxCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]LedgerTotal)
	for rows.Next() {
		var id string
		var t LedgerTotal
		if err := rows.Scan(&id, &t.Cents, &t.Entries); err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, rows.Err()
}

// Goals

const goalColumns = `id, user_id, name, description, goal_type, target_cents, contributed_cents, currency,
    COALESCE(account_id, ''), COALESCE(target_date, ''), status, created_at`

func scanGoal(row scanner) (core.Goal, error) {
	var g core.Goal
	var typ, target, status, created string
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &typ, &g.Target.Cents, &g.Contributed.Cents,
		&g.Currency, &g.AccountID, &target, &status, &created); err != nil {
		return core.Goal{}, err
	}
	g.Type = core.GoalType(typ)
	if target != "" {
		d := parseDate(target)
		g.TargetDate = &d
	}
	g.Status = core.GoalStatus(status)
	g.CreatedAt = parseTime(created)
	return g, nil
}

func targetDate(g core.Goal) sql.NullString {
	if g.TargetDate == nil {
		return sql.NullString{}
	}
	return nullable(g.TargetDate.String())
}

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO goals
    (id, user_id, name, description, goal_type, target_cents, contributed_cents, currency, account_id,
     target_date, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Description, string(g.Type), g.Target.Cents, g.Contributed.Cents, g.Currency,
		nullable(g.AccountID), targetDate(g), string(g.Status), formatTime(g.CreatedAt))
	return err
}

func (q *Queries) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	return scanGoal(q.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND id = ?`, userID, id))
}

func (q *Queries) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals
WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE goals SET contributed_cents = ?, status = ? WHERE user_id = ? AND id = ?`,
		g.Contributed.Cents, string(g.Status), g.UserID, g.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
