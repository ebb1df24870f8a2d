package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
	"conti/internal/storage"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds in the source account")
	ErrSameAccount       = errors.New("source and destination are the same account")
	ErrCurrencyMismatch  = errors.New("accounts use different currencies")
)

// AccountService manages a user's accounts. Balances are derived from the
// ledger, never stored.
type AccountService struct {
	store      LedgerStore
	currencies *core.CurrencyTable
	now        func() time.Time
}

func NewAccountService(store LedgerStore, currencies *core.CurrencyTable) *AccountService {
	if currencies == nil {
		currencies = core.DefaultCurrencyTable("")
	}
	return &AccountService{store: store, currencies: currencies, now: time.Now}
}

type AccountInput struct {
	Name           string
	Description    string
	Type           core.AccountType
	Institution    string
	Currency       string
	OpeningBalance decimal.Decimal
}

func (s *AccountService) today() core.Date {
	y, m, d := s.now().Date()
	return core.NewDate(y, int(m), d)
}

func (s *AccountService) Create(ctx context.Context, userID string, in AccountInput) (core.AccountBalance, error) {
	if in.Type == "" {
		in.Type = core.AccountChecking
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currencies.Default()
	}
	if !s.currencies.Known(currency) {
		return core.AccountBalance{}, inputErr("currency", ErrUnknownCurrency)
	}
	a := core.Account{
		ID:             core.NewID(),
		UserID:         userID,
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Type:           core.AccountType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Institution:    strings.TrimSpace(in.Institution),
		Currency:       currency,
		OpeningBalance: core.MoneyFromDecimal(in.OpeningBalance),
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}
	if err := a.Validate(); err != nil {
		if errors.Is(err, core.ErrInvalidAccountType) {
			return core.AccountBalance{}, inputErr("type", err)
		}
		return core.AccountBalance{}, inputErr("name", err)
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.AccountBalance{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created",
		"component", "accounts",
		"account_id", a.ID,
		"user_id", userID,
		"account_type", a.Type)
	return core.AccountBalance{Account: a, Balance: a.OpeningBalance}, nil
}

func withTotal(a core.Account, t storage.LedgerTotal) core.AccountBalance {
	return core.AccountBalance{Account: a, Balance: a.OpeningBalance.Add(core.Money{Cents: t.Cents}), Entries: t.Entries}
}

// List returns the accounts of a user with their balances.
func (s *AccountService) List(ctx context.Context, userID string, includeArchived bool) ([]core.AccountBalance, error) {
	accounts, err := s.store.ListAccounts(ctx, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	totals, err := s.store.LedgerTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, withTotal(a, totals[a.ID]))
	}
	return out, nil
}

func (s *AccountService) Get(ctx context.Context, userID, id string) (core.AccountBalance, error) {
	a, err := s.store.GetAccount(ctx, userID, id)
	if err != nil {
		return core.AccountBalance{}, err
	}
	totals, err := s.store.LedgerTotals(ctx, userID)
	if err != nil {
		return core.AccountBalance{}, fmt.Errorf("get account balance: %w", err)
	}
	return withTotal(a, totals[id]), nil
}

// bookable returns the account a new entry may be booked to: it must belong
// to the user and not be archived.
func bookable(ctx context.Context, store storage.AccountStore, userID, id string) (core.Account, error) {
	a, err := store.GetAccount(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, inputErr("account_id", err)
	}
	if err != nil {
		return core.Account{}, err
	}
	if !a.Active {
		return core.Account{}, inputErr("account_id", core.ErrAccountArchived)
	}
	return a, nil
}

// Archive hides an account from the default listing. Only an account with
// a zero balance can be archived.
func (s *AccountService) Archive(ctx context.Context, userID, id string) (core.AccountBalance, error) {
	ab, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.AccountBalance{}, err
	}
	if !ab.Balance.IsZero() {
		return core.AccountBalance{}, fmt.Errorf("archive %s: %w: %w", id, core.ErrNonZeroBalance, core.ErrConflict)
	}
	if !ab.Active {
		return ab, nil
	}
	a, err := s.store.SetAccountActive(ctx, userID, id, false)
	if err != nil {
		return core.AccountBalance{}, fmt.Errorf("archive account: %w", err)
	}
	ab.Account = a
	return ab, nil
}

func (s *AccountService) Restore(ctx context.Context, userID, id string) (core.AccountBalance, error) {
	if _, err := s.store.SetAccountActive(ctx, userID, id, true); err != nil {
		return core.AccountBalance{}, err
	}
	return s.Get(ctx, userID, id)
}

// Reconcile books the difference between the tracked balance and the actual
// one as an income or expense entry. It returns a nil entry when the account
// already matches.
func (s *AccountService) Reconcile(ctx context.Context, userID, id string, actual decimal.Decimal) (core.AccountBalance, *core.Transaction, error) {
	if _, err := bookable(ctx, s.store, userID, id); err != nil {
		return core.AccountBalance{}, nil, err
	}
	ab, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.AccountBalance{}, nil, err
	}
	diff := core.MoneyFromDecimal(actual).Sub(ab.Balance)
	if diff.IsZero() {
		return ab, nil, nil
	}
	typ := core.TxIncome
	if diff.Cents < 0 {
		typ = core.TxExpense
	}
	tx := core.Transaction{
		ID:          core.NewID(),
		UserID:      userID,
		Amount:      diff,
		Type:        typ,
		Description: "Account reconciliation - " + ab.Name,
		Category:    "reconciliation",
		Date:        s.today(),
		Currency:    ab.Currency,
		Status:      core.TxCompleted,
		AccountID:   id,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.AccountBalance{}, nil, fmt.Errorf("create reconciliation entry: %w", err)
	}
	slog.InfoContext(ctx, "Account reconciled",
		"component", "accounts",
		"account_id", id,
		"user_id", userID,
		"difference_cents", diff.Cents)
	ab.Balance = ab.Balance.Add(diff)
	ab.Entries++
	return ab, &tx, nil
}

type TransferInput struct {
	From        string
	To          string
	Amount      decimal.Decimal
	Description string
	Date        core.Date
}

// Transfer moves money between two accounts of the same currency, booking
// one outgoing and one incoming transfer entry. Credit and loan accounts may
// go below zero; other accounts may not.
func (s *AccountService) Transfer(ctx context.Context, userID string, in TransferInput) (core.Transaction, core.Transaction, error) {
	amount := core.MoneyFromDecimal(in.Amount)
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, core.Transaction{}, inputErr("amount", err)
	}
	if in.From == in.To {
		return core.Transaction{}, core.Transaction{}, inputErr("to", ErrSameAccount)
	}
	from, err := bookable(ctx, s.store, userID, in.From)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, renameField(err, "from")
	}
	to, err := bookable(ctx, s.store, userID, in.To)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, renameField(err, "to")
	}
	if from.Currency != to.Currency {
		return core.Transaction{}, core.Transaction{}, inputErr("to", ErrCurrencyMismatch)
	}
	if !slices.Contains([]core.AccountType{core.AccountCredit, core.AccountLoan}, from.Type) {
		balance, err := s.Get(ctx, userID, from.ID)
		if err != nil {
			return core.Transaction{}, core.Transaction{}, err
		}
		if balance.Balance.Cents < amount.Cents {
			return core.Transaction{}, core.Transaction{}, inputErr("amount", ErrInsufficientFunds)
		}
	}
	date := in.Date
	if date.IsZero() {
		date = s.today()
	}
	label := strings.TrimSpace(in.Description)
	if label == "" {
		label = "Transfer"
	}

	leg := func(account core.Account, m core.Money, description string) core.Transaction {
		return core.Transaction{
			ID:          core.NewID(),
			UserID:      userID,
			Amount:      m,
			Type:        core.TxTransfer,
			Description: description,
			Category:    "transfer",
			Date:        date,
			Currency:    account.Currency,
			Status:      core.TxCompleted,
			AccountID:   account.ID,
			CreatedAt:   s.now().UTC(),
		}
	}
	out := leg(from, amount.Neg(), label+" - to "+to.Name)
	inbound := leg(to, amount, label+" - from "+from.Name)
	if err := s.store.CreateTransfer(ctx, out, inbound); err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("create transfer: %w", err)
	}
	slog.InfoContext(ctx, "Transfer booked",
		"component", "accounts",
		"user_id", userID,
		"from_account", from.ID,
		"to_account", to.ID,
		"amount_cents", amount.Cents)
	return out, inbound, nil
}

// renameField reports an account lookup failure against field.
func renameField(err error, field string) error {
	var ie *InputError
	if errors.As(err, &ie) {
		return inputErr(field, ie.Err)
	}
	return err
}

// AccountTypeTotal sums the balances of one account type in one currency.
type AccountTypeTotal struct {
	Type     core.AccountType
	Currency string
	Accounts int
	Balance  core.Money
}

// Summary totals the active accounts of a user by type and currency, in
// type then currency order.
func (s *AccountService) Summary(ctx context.Context, userID string) ([]AccountTypeTotal, error) {
	accounts, err := s.List(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	var out []AccountTypeTotal
	for _, a := range accounts {
		i := slices.IndexFunc(out, func(t AccountTypeTotal) bool { return t.Type == a.Type && t.Currency == a.Currency })
		if i < 0 {
			out = append(out, AccountTypeTotal{Type: a.Type, Currency: a.Currency})
			i = len(out) - 1
		}
		out[i].Accounts++
		out[i].Balance = out[i].Balance.Add(a.Balance)
	}
	slices.SortFunc(out, func(a, b AccountTypeTotal) int {
		if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
			return c
		}
		return strings.Compare(a.Currency, b.Currency)
	})
	return out, nil
}
