package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"conti/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL of the repository, bound to a connection or transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

// timeLayout has a fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseDate(s string) core.Date {
	d, _ := core.ParseDate(s)
	return d
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Groups

const createGroup = `INSERT INTO expense_groups (id, name, description, group_type, owner_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateGroup(ctx context.Context, g core.Group) error {
	_, err := q.db.ExecContext(ctx, createGroup, g.ID, g.Name, g.Description, string(g.Type), g.OwnerID, formatTime(g.CreatedAt))
	return err
}

const groupColumns = `g.id, g.name, g.description, g.group_type, g.owner_id, g.created_at`

func scanGroup(row scanner) (core.Group, error) {
	var g core.Group
	var typ, created string
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &typ, &g.OwnerID, &created); err != nil {
		return core.Group{}, err
	}
	g.Type = core.GroupType(typ)
	g.CreatedAt = parseTime(created)
	return g, nil
}

func (q *Queries) GetGroup(ctx context.Context, id string) (core.Group, error) {
	return scanGroup(q.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM expense_groups g WHERE g.id = ?`, id))
}

const listGroupsForUser = `SELECT ` + groupColumns + `
FROM expense_groups g
JOIN group_members m ON m.group_id = g.id
WHERE m.user_id = ?
ORDER BY g.created_at DESC, g.id`

func (q *Queries) ListGroupsForUser(ctx context.Context, userID string) ([]core.Group, error) {
	rows, err := q.db.QueryContext(ctx, listGroupsForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Members

const upsertMember = `INSERT INTO group_members (group_id, user_id, name, role, joined_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (group_id, user_id) DO UPDATE SET role = excluded.role,
    name = CASE WHEN excluded.name = '' THEN group_members.name ELSE excluded.name END`

func (q *Queries) UpsertMember(ctx context.Context, m core.Member) error {
	_, err := q.db.ExecContext(ctx, upsertMember, m.GroupID, m.UserID, m.Name, string(m.Role), formatTime(m.JoinedAt))
	return err
}

func (q *Queries) DeleteMember(ctx context.Context, groupID, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const memberColumns = `group_id, user_id, name, role, joined_at`

func scanMember(row scanner) (core.Member, error) {
	var m core.Member
	var role, joined string
	if err := row.Scan(&m.GroupID, &m.UserID, &m.Name, &role, &joined); err != nil {
		return core.Member{}, err
	}
	m.Role = core.Role(role)
	m.JoinedAt = parseTime(joined)
	return m, nil
}

func (q *Queries) GetMember(ctx context.Context, groupID, userID string) (core.Member, error) {
	return scanMember(q.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID))
}

func (q *Queries) ListMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Expenses

const createExpense = `INSERT INTO group_expenses
    (id, group_id, paid_by, title, description, total_cents, currency, split_method, expense_date, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, e core.GroupExpense) error {
	_, err := q.db.ExecContext(ctx, createExpense, e.ID, e.GroupID, e.PaidBy, e.Title, e.Description,
		e.Total.Cents, e.Currency, e.Method, e.Date.String(), string(e.Status), formatTime(e.CreatedAt))
	return err
}

const createShare = `INSERT INTO expense_shares (expense_id, user_id, amount_cents, paid_cents, payment_date)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateShare(ctx context.Context, s core.Share) error {
	var paidAt sql.NullString
	if s.PaymentDate != nil {
		paidAt = nullable(formatTime(*s.PaymentDate))
	}
	_, err := q.db.ExecContext(ctx, createShare, s.ExpenseID, s.UserID, s.Amount.Cents, s.Paid.Cents, paidAt)
	return err
}

const expenseColumns = `id, group_id, paid_by, title, description, total_cents, currency, split_method,
    expense_date, status, created_at`

func scanExpense(row scanner) (core.GroupExpense, error) {
	var e core.GroupExpense
	var date, status, created string
	if err := row.Scan(&e.ID, &e.GroupID, &e.PaidBy, &e.Title, &e.Description, &e.Total.Cents,
		&e.Currency, &e.Method, &date, &status, &created); err != nil {
		return core.GroupExpense{}, err
	}
	e.Date = parseDate(date)
	e.Status = core.ExpenseStatus(status)
	e.CreatedAt = parseTime(created)
	return e, nil
}

func (q *Queries) GetExpense(ctx context.Context, groupID, id string) (core.GroupExpense, error) {
	return scanExpense(q.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM group_expenses WHERE group_id = ? AND id = ?`, groupID, id))
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...any) ([]core.GroupExpense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.GroupExpense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func expenseWhere(eq ExpenseQuery) (string, []any) {
	clauses := []string{"group_id = ?"}
	args := []any{eq.GroupID}
	if eq.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(eq.Status))
	}
	if eq.PaidBy != "" {
		clauses = append(clauses, "paid_by = ?")
		args = append(args, eq.PaidBy)
	}
	if eq.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		like := "%" + eq.Search + "%"
		args = append(args, like, like)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (q *Queries) ListExpenses(ctx context.Context, eq ExpenseQuery) ([]core.GroupExpense, error) {
	where, args := expenseWhere(eq)
	query := `SELECT ` + expenseColumns + ` FROM group_expenses` + where +
		` ORDER BY expense_date DESC, created_at DESC, id LIMIT ? OFFSET ?`
	return q.queryExpenses(ctx, query, append(args, limitOrAll(eq.Limit), eq.Offset)...)
}

func (q *Queries) CountExpenses(ctx context.Context, eq ExpenseQuery) (int, error) {
	where, args := expenseWhere(eq)
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_expenses`+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) AllGroupExpenses(ctx context.Context, groupID string) ([]core.GroupExpense, error) {
	return q.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM group_expenses WHERE group_id = ?
ORDER BY expense_date, created_at, id`, groupID)
}

func (q *Queries) PendingProjection(ctx context.Context, limit int) ([]core.GroupExpense, error) {
	return q.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM group_expenses
WHERE projected_status <> status ORDER BY created_at, id LIMIT ?`, limitOrAll(limit))
}

func (q *Queries) SetExpenseStatus(ctx context.Context, groupID, id string, status core.ExpenseStatus) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE group_expenses SET status = ? WHERE group_id = ? AND id = ?`,
		string(status), groupID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) MarkProjected(ctx context.Context, id string, status core.ExpenseStatus) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE group_expenses SET projected_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Shares

const shareColumns = `expense_id, user_id, amount_cents, paid_cents, payment_date`

func scanShare(row scanner) (core.Share, error) {
	var s core.Share
	var paidAt sql.NullString
	if err := row.Scan(&s.ExpenseID, &s.UserID, &s.Amount.Cents, &s.Paid.Cents, &paidAt); err != nil {
		return core.Share{}, err
	}
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		s.PaymentDate = &t
	}
	return s, nil
}

func (q *Queries) ListShares(ctx context.Context, expenseID string) ([]core.Share, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = ? ORDER BY rowid`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) GetShare(ctx context.Context, expenseID, userID string) (core.Share, error) {
	return scanShare(q.db.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = ? AND user_id = ?`, expenseID, userID))
}

func (q *Queries) AddPayment(ctx context.Context, expenseID, userID string, cents int64, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE expense_shares SET paid_cents = paid_cents + ?, payment_date = ?
WHERE expense_id = ? AND user_id = ?`, cents, formatTime(at), expenseID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Transactions

const insertTransaction = `INTO transactions
    (id, user_id, amount_cents, tx_type, description, category, tx_date, currency, status, verified, group_expense_id,
     account_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func txArgs(tx core.Transaction) []any {
	return []any{tx.ID, tx.UserID, tx.Amount.Cents, string(tx.Type), tx.Description, tx.Category,
		tx.Date.String(), tx.Currency, string(tx.Status), tx.Verified, nullable(tx.GroupExpenseID),
		nullable(tx.AccountID), formatTime(tx.CreatedAt)}
}

func (q *Queries) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := q.db.ExecContext(ctx, `INSERT `+insertTransaction, txArgs(tx)...)
	return err
}

// InsertShareTransaction ignores the row when the share already has one.
func (q *Queries) InsertShareTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT OR IGNORE `+insertTransaction, txArgs(tx)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetStatusByExpense(ctx context.Context, expenseID string, status core.TransactionStatus) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE group_expense_id = ? AND status <> ?`,
		string(status), expenseID, string(status))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const txColumns = `t.id, t.user_id, t.amount_cents, t.tx_type, t.description, t.category, t.tx_date, t.currency,
    t.status, t.verified, COALESCE(t.group_expense_id, ''), COALESCE(t.account_id, ''), t.created_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var tx core.Transaction
	var typ, date, status, created string
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Amount.Cents, &typ, &tx.Description, &tx.Category, &date,
		&tx.Currency, &status, &tx.Verified, &tx.GroupExpenseID, &tx.AccountID, &created); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.Date = parseDate(date)
	tx.Status = core.TransactionStatus(status)
	tx.CreatedAt = parseTime(created)
	return tx, nil
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions t WHERE t.user_id = ? AND t.id = ?`, userID, id))
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func transactionWhere(tq TransactionQuery) (string, string, []any) {
	from := ` FROM transactions t`
	clauses := []string{"t.user_id = ?"}
	args := []any{tq.UserID}
	if tq.GroupID != "" {
		from += ` JOIN group_expenses e ON e.id = t.group_expense_id`
		clauses = append(clauses, "e.group_id = ?")
		args = append(args, tq.GroupID)
	}
	if tq.AccountID != "" {
		clauses = append(clauses, "t.account_id = ?")
		args = append(args, tq.AccountID)
	}
	if tq.Type != "" {
		clauses = append(clauses, "t.tx_type = ?")
		args = append(args, string(tq.Type))
	}
	if tq.Category != "" {
		clauses = append(clauses, "t.category = ?")
		args = append(args, tq.Category)
	}
	if tq.Status != "" {
		clauses = append(clauses, "t.status = ?")
		args = append(args, string(tq.Status))
	}
	if tq.Verified != nil {
		clauses = append(clauses, "t.verified = ?")
		args = append(args, *tq.Verified)
	}
	if tq.DateFrom != nil {
		clauses = append(clauses, "t.tx_date >= ?")
		args = append(args, tq.DateFrom.Format(time.DateOnly))
	}
	if tq.DateTo != nil {
		clauses = append(clauses, "t.tx_date <= ?")
		args = append(args, tq.DateTo.Format(time.DateOnly))
	}
	if tq.MinAmountCents != nil {
		clauses = append(clauses, "ABS(t.amount_cents) >= ?")
		args = append(args, *tq.MinAmountCents)
	}
	if tq.Search != "" {
		clauses = append(clauses, "(t.description LIKE ? OR t.category LIKE ?)")
		like := "%" + tq.Search + "%"
		args = append(args, like, like)
	}
	return from, " WHERE " + strings.Join(clauses, " AND "), args
}

func (q *Queries) ListTransactions(ctx context.Context, tq TransactionQuery) ([]core.Transaction, error) {
	from, where, args := transactionWhere(tq)
	query := `SELECT ` + txColumns + from + where + ` ORDER BY t.tx_date DESC, t.created_at DESC, t.id LIMIT ? OFFSET ?`
	return q.queryTransactions(ctx, query, append(args, limitOrAll(tq.Limit), tq.Offset)...)
}

func (q *Queries) CountTransactions(ctx context.Context, tq TransactionQuery) (int, error) {
	from, where, args := transactionWhere(tq)
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&n)
	return n, err
}

func (q *Queries) SetVerified(ctx context.Context, userID, id string, verified bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE transactions SET verified = ? WHERE user_id = ? AND id = ?`, verified, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) PendingMirror(ctx context.Context, limit int) ([]core.Transaction, error) {
	return q.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions t
WHERE t.sheets_ref = '' ORDER BY t.created_at, t.id LIMIT ?`, limitOrAll(limit))
}

func (q *Queries) MarkMirrored(ctx context.Context, id, ref string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE transactions SET sheets_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// limitOrAll maps a zero limit to SQLite's "no limit".
func limitOrAll(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// Recurring templates

const recurringColumns = `id, user_id, name, amount_cents, tx_type, description, category, currency, frequency,
    interval_count, start_date, COALESCE(end_date, ''), max_executions, next_execution, executions, active, created_at`

func scanRecurring(row scanner) (core.RecurringTemplate, error) {
	var r core.RecurringTemplate
	var typ, freq, start, end, next, created string
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Amount.Cents, &typ, &r.Description, &r.Category, &r.Currency,
		&freq, &r.Interval, &start, &end, &r.MaxExecutions, &next, &r.Executions, &r.Active, &created); err != nil {
		return core.RecurringTemplate{}, err
	}
	r.Type = core.TransactionType(typ)
	r.Frequency = core.Frequency(freq)
	r.StartDate = parseDate(start)
	if end != "" {
		d := parseDate(end)
		r.EndDate = &d
	}
	r.NextExecution = parseDate(next)
	r.CreatedAt = parseTime(created)
	return r, nil
}

func endDate(r core.RecurringTemplate) sql.NullString {
	if r.EndDate == nil {
		return sql.NullString{}
	}
	return nullable(r.EndDate.String())
}

func (q *Queries) CreateRecurring(ctx context.Context, r core.RecurringTemplate) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO recurring_templates
    (id, user_id, name, amount_cents, tx_type, description, category, currency, frequency, interval_count,
     start_date, end_date, max_executions, next_execution, executions, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Amount.Cents, string(r.Type), r.Description, r.Category, r.Currency,
		string(r.Frequency), r.Interval, r.StartDate.String(), endDate(r), r.MaxExecutions,
		r.NextExecution.String(), r.Executions, r.Active, formatTime(r.CreatedAt))
	return err
}

func (q *Queries) GetRecurring(ctx context.Context, userID, id string) (core.RecurringTemplate, error) {
	return scanRecurring(q.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_templates WHERE user_id = ? AND id = ?`, userID, id))
}

func (q *Queries) queryRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTemplate, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.RecurringTemplate
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) ListRecurring(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	return q.queryRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_templates
WHERE user_id = ? ORDER BY created_at, id`, userID)
}

func (q *Queries) SetRecurringActive(ctx context.Context, userID, id string, active bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE recurring_templates SET active = ? WHERE user_id = ? AND id = ?`, active, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DueRecurring relies on next_execution being a fixed-width ISO date.
func (q *Queries) DueRecurring(ctx context.Context, day core.Date, limit int) ([]core.RecurringTemplate, error) {
	return q.queryRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_templates
WHERE active = 1 AND next_execution <> '' AND next_execution <= ?
ORDER BY next_execution, id LIMIT ?`, day.String(), limitOrAll(limit))
}

// AdvanceRecurring saves the execution state of r if its next execution is
// still expectedNext.
func (q *Queries) AdvanceRecurring(ctx context.Context, r core.RecurringTemplate, expectedNext core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE recurring_templates
SET next_execution = ?, executions = ?, active = ?
WHERE id = ? AND next_execution = ?`,
		r.NextExecution.String(), r.Executions, r.Active, r.ID, expectedNext.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
