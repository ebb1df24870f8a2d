// Package sheets defines the spreadsheet mirror of the personal ledger.
package sheets

import (
	"context"

	"conti/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends one ledger entry to the mirror and returns a
	// reference to the written row.
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)

// Header is the column layout of the mirror sheet.
var Header = []string{"Date", "User", "Description", "Category", "Type", "Amount", "Currency", "Status", "Verified", "Group expense", "ID"}

// Row renders tx in Header order. Amounts are plain decimals so the sheet
// can sum them.
func Row(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		tx.UserID,
		tx.Description,
		tx.Category,
		string(tx.Type),
		tx.Amount.String(),
		tx.Currency,
		string(tx.Status),
		tx.Verified,
		tx.GroupExpenseID,
		tx.ID,
	}
}
