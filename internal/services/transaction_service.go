package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

// TransactionService manages a user's personal ledger.
type TransactionService struct {
	store      LedgerStore
	currencies *core.CurrencyTable
	now        func() time.Time
}

func NewTransactionService(store LedgerStore, currencies *core.CurrencyTable) *TransactionService {
	if currencies == nil {
		currencies = core.DefaultCurrencyTable("")
	}
	return &TransactionService{store: store, currencies: currencies, now: time.Now}
}

type TransactionInput struct {
	Amount      decimal.Decimal
	Type        core.TransactionType
	Description string
	Category    string
	Date        core.Date
	Currency    string
	Status      core.TransactionStatus
	Verified    bool
	AccountID   string
}

// signed applies the ledger sign convention: expenses are negative, income
// positive, transfers keep the sign they were given.
func signed(m core.Money, t core.TransactionType) core.Money {
	abs := m
	if abs.Cents < 0 {
		abs = abs.Neg()
	}
	switch t {
	case core.TxExpense:
		return abs.Neg()
	case core.TxIncome:
		return abs
	default:
		return m
	}
}

// Create records a manual ledger entry. An entry booked to an account takes
// the account's currency and must not name a different one.
func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	if in.Type == "" {
		in.Type = core.TxExpense
	}
	if in.Status == "" {
		in.Status = core.TxCompleted
	}
	if in.Date.IsZero() {
		y, m, d := s.now().Date()
		in.Date = core.NewDate(y, int(m), d)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	accountID := strings.TrimSpace(in.AccountID)
	if accountID != "" {
		a, err := bookable(ctx, s.store, userID, accountID)
		if err != nil {
			return core.Transaction{}, err
		}
		if currency == "" {
			currency = a.Currency
		}
		if currency != a.Currency {
			return core.Transaction{}, inputErr("currency", ErrCurrencyMismatch)
		}
	}
	if currency == "" {
		currency = s.currencies.Default()
	}
	if !s.currencies.Known(currency) {
		return core.Transaction{}, inputErr("currency", ErrUnknownCurrency)
	}

	tx := core.Transaction{
		ID:          core.NewID(),
		UserID:      userID,
		Amount:      signed(core.MoneyFromDecimal(in.Amount), in.Type),
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Date:        in.Date,
		Currency:    currency,
		Status:      in.Status,
		Verified:    in.Verified,
		AccountID:   accountID,
		CreatedAt:   s.now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, inputErr(transactionField(err), err)
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction created",
		"component", "ledger",
		"transaction_id", tx.ID,
		"user_id", userID,
		"amount_cents", tx.Amount.Cents)
	return tx, nil
}

func transactionField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "description"):
		return "description"
	case strings.Contains(msg, "amount"):
		return "amount"
	case strings.Contains(msg, "transaction type"):
		return "type"
	case strings.Contains(msg, "status"):
		return "status"
	default:
		return "date"
	}
}

// List returns one page of the ledger selected by composer API parameters.
func (s *TransactionService) List(ctx context.Context, userID string, params map[string]string) ([]core.Transaction, int, error) {
	q, err := TransactionQueryFromParams(userID, params)
	if err != nil {
		return nil, 0, err
	}
	txs, total, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, total, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// SetVerified flags an entry as checked against a statement, or clears it.
func (s *TransactionService) SetVerified(ctx context.Context, userID, id string, verified bool) (core.Transaction, error) {
	tx, err := s.store.SetVerified(ctx, userID, id, verified)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("verify transaction: %w", err)
	}
	return tx, nil
}
