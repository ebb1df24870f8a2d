package http

import (
	"time"

	"conti/internal/core"
	"conti/internal/query"
	"conti/internal/services"
	"conti/internal/split"
)

// Request bodies. Amounts travel as decimal strings ("12.50" or "12,50").
type (
	createGroupRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		OwnerName   string `json:"owner_name"`
	}

	memberRequest struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Role   string `json:"role"`
	}

	participantRequest struct {
		ID    string  `json:"id"`
		Value *string `json:"value,omitempty"`
	}

	splitRequest struct {
		Total        string               `json:"total"`
		Method       string               `json:"method"`
		Participants []participantRequest `json:"participants"`
		RemainderTo  string               `json:"remainder_to"`
	}

	createExpenseRequest struct {
		PaidBy       string               `json:"paid_by"`
		Title        string               `json:"title"`
		Description  string               `json:"description"`
		Total        string               `json:"total"`
		Currency     string               `json:"currency"`
		Date         string               `json:"date"`
		Method       string               `json:"method"`
		Participants []participantRequest `json:"participants"`
	}

	paymentRequest struct {
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
	}

	transactionRequest struct {
		Amount      string `json:"amount"`
		Type        string `json:"type"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		Currency    string `json:"currency"`
		Status      string `json:"status"`
		Verified    bool   `json:"verified"`
		AccountID   string `json:"account_id"`
	}

	verifyRequest struct {
		Verified bool `json:"verified"`
	}

	recurringRequest struct {
		Name          string `json:"name"`
		Amount        string `json:"amount"`
		Type          string `json:"type"`
		Description   string `json:"description"`
		Category      string `json:"category"`
		Currency      string `json:"currency"`
		Frequency     string `json:"frequency"`
		Interval      int    `json:"interval"`
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		MaxExecutions int    `json:"max_executions"`
	}

	activeRequest struct {
		Active *bool `json:"active"`
	}

	accountRequest struct {
		Name           string `json:"name"`
		Description    string `json:"description"`
		Type           string `json:"type"`
		Institution    string `json:"institution"`
		Currency       string `json:"currency"`
		OpeningBalance string `json:"opening_balance"`
	}

	reconcileRequest struct {
		Balance string `json:"balance"`
	}

	transferRequest struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Amount      string `json:"amount"`
		Description string `json:"description"`
		Date        string `json:"date"`
	}

	goalRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Target      string `json:"target"`
		Currency    string `json:"currency"`
		AccountID   string `json:"account_id"`
		TargetDate  string `json:"target_date"`
	}

	contributionRequest struct {
		Amount string `json:"amount"`
	}

	statusRequest struct {
		Status string `json:"status"`
	}
)

// Response bodies.
type (
	moneyJSON struct {
		Amount   string `json:"amount"`
		Cents    int64  `json:"cents"`
		Display  string `json:"display"`
		Currency string `json:"currency"`
	}

	groupJSON struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Type        string    `json:"type"`
		OwnerID     string    `json:"owner_id"`
		CreatedAt   time.Time `json:"created_at"`
	}

	memberJSON struct {
		UserID   string    `json:"user_id"`
		Name     string    `json:"name"`
		Role     string    `json:"role"`
		JoinedAt time.Time `json:"joined_at"`
	}

	shareJSON struct {
		UserID      string     `json:"user_id"`
		Amount      moneyJSON  `json:"amount"`
		Paid        moneyJSON  `json:"paid"`
		Remaining   moneyJSON  `json:"remaining"`
		Settled     bool       `json:"settled"`
		PaymentDate *time.Time `json:"payment_date,omitempty"`
	}

	expenseJSON struct {
		ID          string      `json:"id"`
		GroupID     string      `json:"group_id"`
		PaidBy      string      `json:"paid_by"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		Total       moneyJSON   `json:"total"`
		Method      string      `json:"method"`
		Date        string      `json:"date"`
		Status      string      `json:"status"`
		CreatedAt   time.Time   `json:"created_at"`
		Shares      []shareJSON `json:"shares"`
	}

	settlementJSON struct {
		Expense        expenseJSON `json:"expense"`
		TotalPaid      moneyJSON   `json:"total_paid"`
		TotalRemaining moneyJSON   `json:"total_remaining"`
		SettledShares  int         `json:"settled_shares"`
		Percent        float64     `json:"percent"`
		FullySettled   bool        `json:"fully_settled"`
	}

	statusTotalJSON struct {
		Count int       `json:"count"`
		Total moneyJSON `json:"total"`
	}

	summaryJSON struct {
		GroupID  string                     `json:"group_id"`
		Count    int                        `json:"count"`
		Total    moneyJSON                  `json:"total"`
		ByStatus map[string]statusTotalJSON `json:"by_status"`
	}

	balanceJSON struct {
		UserID string    `json:"user_id"`
		Name   string    `json:"name,omitempty"`
		Net    moneyJSON `json:"net"`
	}

	transferJSON struct {
		From   string    `json:"from"`
		To     string    `json:"to"`
		Amount moneyJSON `json:"amount"`
	}

	groupBalanceJSON struct {
		Group groupJSON `json:"group"`
		Net   moneyJSON `json:"net"`
	}

	overallJSON struct {
		UserID string             `json:"user_id"`
		Net    moneyJSON          `json:"net"`
		Groups []groupBalanceJSON `json:"groups"`
	}

	transactionJSON struct {
		ID             string    `json:"id"`
		Amount         moneyJSON `json:"amount"`
		Type           string    `json:"type"`
		Description    string    `json:"description"`
		Category       string    `json:"category"`
		Date           string    `json:"date"`
		Status         string    `json:"status"`
		Verified       bool      `json:"verified"`
		GroupExpenseID string    `json:"group_expense_id,omitempty"`
		AccountID      string    `json:"account_id,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
	}

	recurringJSON struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Amount        moneyJSON `json:"amount"`
		Type          string    `json:"type"`
		Description   string    `json:"description"`
		Category      string    `json:"category"`
		Frequency     string    `json:"frequency"`
		Interval      int       `json:"interval"`
		StartDate     string    `json:"start_date"`
		EndDate       string    `json:"end_date,omitempty"`
		MaxExecutions int       `json:"max_executions,omitempty"`
		NextExecution string    `json:"next_execution,omitempty"`
		Executions    int       `json:"executions"`
		Active        bool      `json:"active"`
		CreatedAt     time.Time `json:"created_at"`
	}

	accountJSON struct {
		ID             string    `json:"id"`
		Name           string    `json:"name"`
		Description    string    `json:"description,omitempty"`
		Type           string    `json:"type"`
		Institution    string    `json:"institution,omitempty"`
		OpeningBalance moneyJSON `json:"opening_balance"`
		Balance        moneyJSON `json:"balance"`
		Entries        int       `json:"entries"`
		Active         bool      `json:"active"`
		CreatedAt      time.Time `json:"created_at"`
	}

	accountTypeTotalJSON struct {
		Type     string    `json:"type"`
		Accounts int       `json:"accounts"`
		Balance  moneyJSON `json:"balance"`
	}

	reconcileJSON struct {
		Account    accountJSON      `json:"account"`
		Adjustment *transactionJSON `json:"adjustment"`
	}

	accountTransferJSON struct {
		Out transactionJSON `json:"out"`
		In  transactionJSON `json:"in"`
	}

	goalJSON struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Type        string    `json:"type"`
		Target      moneyJSON `json:"target"`
		Current     moneyJSON `json:"current"`
		Remaining   moneyJSON `json:"remaining"`
		Percent     string    `json:"percent"`
		AccountID   string    `json:"account_id,omitempty"`
		TargetDate  string    `json:"target_date,omitempty"`
		Status      string    `json:"status"`
		CreatedAt   time.Time `json:"created_at"`
	}

	goalSummaryJSON struct {
		Total           int    `json:"total"`
		Active          int    `json:"active"`
		Completed       int    `json:"completed"`
		Paused          int    `json:"paused"`
		TargetCents     int64  `json:"target_cents"`
		CurrentCents    int64  `json:"current_cents"`
		AverageProgress string `json:"average_progress"`
	}

	splitShareJSON struct {
		ParticipantID string    `json:"participant_id"`
		Amount        moneyJSON `json:"amount"`
	}

	splitJSON struct {
		Method string           `json:"method"`
		Total  moneyJSON        `json:"total"`
		Shares []splitShareJSON `json:"shares"`
	}

	pageJSON struct {
		Page       int    `json:"page"`
		PageSize   int    `json:"page_size"`
		TotalCount int    `json:"total_count"`
		TotalPages int    `json:"total_pages"`
		Query      string `json:"query"`
	}

	clientConfigJSON struct {
		PageSizes        []int    `json:"page_sizes"`
		DefaultPageSize  int      `json:"default_page_size"`
		SearchDebounceMS int64    `json:"search_debounce_ms"`
		DefaultCurrency  string   `json:"default_currency"`
		Currencies       []string `json:"currencies"`
	}

	listJSON[T any] struct {
		Items []T      `json:"items"`
		Page  pageJSON `json:"page"`
	}
)

// presenter renders domain values with one currency table.
type presenter struct {
	currencies *core.CurrencyTable
}

func (p presenter) money(m core.Money, currency string) moneyJSON {
	if currency == "" {
		currency = p.currencies.Default()
	}
	return moneyJSON{
		Amount:   m.String(),
		Cents:    m.Cents,
		Display:  p.currencies.Format(m, currency),
		Currency: currency,
	}
}

func (p presenter) group(g core.Group) groupJSON {
	return groupJSON{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Type:        string(g.Type),
		OwnerID:     g.OwnerID,
		CreatedAt:   g.CreatedAt,
	}
}

func (p presenter) member(m core.Member) memberJSON {
	return memberJSON{UserID: m.UserID, Name: m.Name, Role: string(m.Role), JoinedAt: m.JoinedAt}
}

func (p presenter) share(sh core.Share, currency string) shareJSON {
	return shareJSON{
		UserID:      sh.UserID,
		Amount:      p.money(sh.Amount, currency),
		Paid:        p.money(sh.Paid, currency),
		Remaining:   p.money(sh.Remaining(), currency),
		Settled:     sh.IsSettled(),
		PaymentDate: sh.PaymentDate,
	}
}

func (p presenter) expense(e core.GroupExpense) expenseJSON {
	out := expenseJSON{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PaidBy:      e.PaidBy,
		Title:       e.Title,
		Description: e.Description,
		Total:       p.money(e.Total, e.Currency),
		Method:      e.Method,
		Date:        e.Date.String(),
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
		Shares:      make([]shareJSON, 0, len(e.Shares)),
	}
	for _, sh := range e.Shares {
		out.Shares = append(out.Shares, p.share(sh, e.Currency))
	}
	return out
}

func (p presenter) settlement(st core.SettlementStatus) settlementJSON {
	cur := st.Expense.Currency
	return settlementJSON{
		Expense:        p.expense(st.Expense),
		TotalPaid:      p.money(st.TotalPaid, cur),
		TotalRemaining: p.money(st.TotalRemaining, cur),
		SettledShares:  st.SettledShares,
		Percent:        st.Percent,
		FullySettled:   st.FullySettled,
	}
}

func (p presenter) summary(s core.ExpenseSummary) summaryJSON {
	out := summaryJSON{
		GroupID:  s.GroupID,
		Count:    s.Count,
		Total:    p.money(s.Total, s.Currency),
		ByStatus: make(map[string]statusTotalJSON, len(s.ByStatus)),
	}
	for status, t := range s.ByStatus {
		out.ByStatus[string(status)] = statusTotalJSON{Count: t.Count, Total: p.money(t.Total, s.Currency)}
	}
	return out
}

func (p presenter) balances(bs []core.Balance, currency string) []balanceJSON {
	out := make([]balanceJSON, 0, len(bs))
	for _, b := range bs {
		out = append(out, balanceJSON{UserID: b.UserID, Name: b.Name, Net: p.money(b.Net, currency)})
	}
	return out
}

func (p presenter) transfers(ts []split.Transfer, currency string) []transferJSON {
	out := make([]transferJSON, 0, len(ts))
	for _, t := range ts {
		out = append(out, transferJSON{From: t.From, To: t.To, Amount: p.money(t.Amount, currency)})
	}
	return out
}

func (p presenter) overall(o services.OverallBalance) overallJSON {
	out := overallJSON{UserID: o.UserID, Net: p.money(o.Net, ""), Groups: make([]groupBalanceJSON, 0, len(o.Groups))}
	for _, g := range o.Groups {
		out.Groups = append(out.Groups, groupBalanceJSON{Group: p.group(g.Group), Net: p.money(g.Net, "")})
	}
	return out
}

func (p presenter) transaction(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:             tx.ID,
		Amount:         p.money(tx.Amount, tx.Currency),
		Type:           string(tx.Type),
		Description:    tx.Description,
		Category:       tx.Category,
		Date:           tx.Date.String(),
		Status:         string(tx.Status),
		Verified:       tx.Verified,
		GroupExpenseID: tx.GroupExpenseID,
		AccountID:      tx.AccountID,
		CreatedAt:      tx.CreatedAt,
	}
}

func (p presenter) account(a core.AccountBalance) accountJSON {
	return accountJSON{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		Type:           string(a.Type),
		Institution:    a.Institution,
		OpeningBalance: p.money(a.OpeningBalance, a.Currency),
		Balance:        p.money(a.Balance, a.Currency),
		Entries:        a.Entries,
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
	}
}

func (p presenter) accountTypeTotal(t services.AccountTypeTotal) accountTypeTotalJSON {
	return accountTypeTotalJSON{Type: string(t.Type), Accounts: t.Accounts, Balance: p.money(t.Balance, t.Currency)}
}

func (p presenter) goal(g core.GoalProgress) goalJSON {
	out := goalJSON{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Type:        string(g.Type),
		Target:      p.money(g.Target, g.Currency),
		Current:     p.money(g.Current, g.Currency),
		Remaining:   p.money(g.Remaining, g.Currency),
		Percent:     g.Percent.StringFixed(2),
		AccountID:   g.AccountID,
		Status:      string(g.Status),
		CreatedAt:   g.CreatedAt,
	}
	if g.TargetDate != nil {
		out.TargetDate = g.TargetDate.String()
	}
	return out
}

func (p presenter) recurring(r core.RecurringTemplate) recurringJSON {
	out := recurringJSON{
		ID:            r.ID,
		Name:          r.Name,
		Amount:        p.money(r.Amount, r.Currency),
		Type:          string(r.Type),
		Description:   r.Description,
		Category:      r.Category,
		Frequency:     string(r.Frequency),
		Interval:      r.Interval,
		StartDate:     r.StartDate.String(),
		MaxExecutions: r.MaxExecutions,
		Executions:    r.Executions,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}
	if r.EndDate != nil {
		out.EndDate = r.EndDate.String()
	}
	if !r.Finished() {
		out.NextExecution = r.NextExecution.String()
	}
	return out
}

func (p presenter) split(r split.Result, currency string) splitJSON {
	out := splitJSON{Method: string(r.Method), Total: p.money(r.Total, currency), Shares: make([]splitShareJSON, 0, len(r.Shares))}
	for _, s := range r.Shares {
		out.Shares = append(out.Shares, splitShareJSON{ParticipantID: s.ParticipantID, Amount: p.money(s.Amount, currency)})
	}
	return out
}

func pageOf(c *query.Composer) pageJSON {
	return pageJSON{
		Page:       c.Page(),
		PageSize:   c.PageSize(),
		TotalCount: c.TotalCount(),
		TotalPages: c.TotalPages(),
		Query:      c.Encode(),
	}
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
