package core

// StatusTotal aggregates the expenses of a group with one status.
type StatusTotal struct {
	Count int
	Total Money
}

// ExpenseSummary is the per-status breakdown of a group's expenses.
type ExpenseSummary struct {
	GroupID  string
	Count    int
	Total    Money
	ByStatus map[ExpenseStatus]StatusTotal
	Currency string
}

// ShareStatus is the settlement view of one share.
type ShareStatus struct {
	UserID    string
	Amount    Money
	Paid      Money
	Remaining Money
	Settled   bool
}

// SettlementStatus describes how far an expense has been paid back.
type SettlementStatus struct {
	Expense        GroupExpense
	Shares         []ShareStatus
	TotalPaid      Money
	TotalRemaining Money
	SettledShares  int
	Percent        float64
	FullySettled   bool
}

// Balance is a member's net position in a group: positive means the group owes them.
type Balance struct {
	UserID string
	Name   string
	Net    Money
}
