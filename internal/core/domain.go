package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OneToOne    GroupType = "one-to-one"
	MultiPerson GroupType = "multi-person"

	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	ExpenseActive    ExpenseStatus = "active"
	ExpenseSettled   ExpenseStatus = "settled"
	ExpenseCancelled ExpenseStatus = "cancelled"

	TxExpense  TransactionType = "expense"
	TxIncome   TransactionType = "income"
	TxTransfer TransactionType = "transfer"

	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxCancelled TransactionStatus = "cancelled"
)

type (
	GroupType         string
	Role              string
	ExpenseStatus     string
	TransactionType   string
	TransactionStatus string

	Date struct {
		time.Time
	}

	Group struct {
		ID          string
		Name        string
		Description string
		Type        GroupType
		OwnerID     string
		CreatedAt   time.Time
	}

	Member struct {
		GroupID  string
		UserID   string
		Name     string
		Role     Role
		JoinedAt time.Time
	}

	GroupExpense struct {
		ID          string
		GroupID     string
		PaidBy      string
		Title       string
		Description string
		Total       Money
		Currency    string
		Method      string // split method used to build Shares
		Date        Date
		Status      ExpenseStatus
		CreatedAt   time.Time
		Shares      []Share
	}

	Share struct {
		ExpenseID   string
		UserID      string
		Amount      Money
		Paid        Money
		PaymentDate *time.Time
	}

	Transaction struct {
		ID             string
		UserID         string
		Amount         Money // negative for outflows
		Type           TransactionType
		Description    string
		Category       string
		Date           Date
		Currency       string
		Status         TransactionStatus
		Verified       bool
		GroupExpenseID string // empty for manual entries
		AccountID      string // empty when not booked to an account
		CreatedAt      time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidGroupType = errors.New("invalid group type")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidTxType    = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as 2006-01-02, or "" when zero.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (t GroupType) Valid() bool { return t == OneToOne || t == MultiPerson }
func (r Role) Valid() bool      { return r == RoleAdmin || r == RoleMember }

func (s ExpenseStatus) Valid() bool {
	return s == ExpenseActive || s == ExpenseSettled || s == ExpenseCancelled
}

func (t TransactionType) Valid() bool {
	return t == TxExpense || t == TxIncome || t == TxTransfer
}

func (s TransactionStatus) Valid() bool {
	return s == TxPending || s == TxCompleted || s == TxCancelled
}

func (g Group) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 255 {
		return errors.New("name too long (max 255 characters)")
	}
	if !g.Type.Valid() {
		return ErrInvalidGroupType
	}
	if strings.TrimSpace(g.OwnerID) == "" {
		return errors.New("owner required")
	}
	return nil
}

func (e GroupExpense) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > 255 {
		return errors.New("title too long (max 255 characters)")
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Remaining is what the share owner still owes.
func (s Share) Remaining() Money {
	r := s.Amount.Sub(s.Paid)
	if r.Cents < 0 {
		return Money{}
	}
	return r
}

// IsSettled reports whether the share is fully paid.
func (s Share) IsSettled() bool {
	return s.Paid.Cents >= s.Amount.Cents
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidTxType
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
