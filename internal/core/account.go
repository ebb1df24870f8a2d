package core

import (
	"errors"
	"strings"
	"time"
)

// AccountType is the kind of money container an account models.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
	AccountCash       AccountType = "cash"
	AccountOther      AccountType = "other"
)

var (
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountArchived    = errors.New("account is archived")
	ErrNonZeroBalance     = errors.New("account balance is not zero")
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountInvestment, AccountLoan, AccountCash, AccountOther:
		return true
	}
	return false
}

// Account is where a user's ledger entries are booked. Its balance is not
// stored: it is the opening balance plus the sum of the entries booked to it.
type Account struct {
	ID             string
	UserID         string
	Name           string
	Description    string
	Type           AccountType
	Institution    string
	Currency       string
	OpeningBalance Money // may be negative for credit and loan accounts
	Active         bool
	CreatedAt      time.Time
}

func (a Account) Validate() error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 255 {
		return errors.New("name too long (max 255 characters)")
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

// AccountBalance is an account with its computed balance.
type AccountBalance struct {
	Account
	Balance Money
	Entries int
}
