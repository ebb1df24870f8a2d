// Package services holds the use cases of conti: groups, shared expenses,
// balances and the personal ledger they project into.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/core"
	"conti/internal/split"
	"conti/internal/storage"
)

const (
	balanceCacheSize = 256
	balanceCacheTTL  = 5 * time.Minute
)

// GroupService orchestrates groups and their shared expenses. Expenses are
// stored first; ledger projection happens through the Publisher when one is
// configured and inline otherwise.
type GroupService struct {
	store      storage.Store
	projector  *LedgerProjector
	publisher  Publisher
	balances   *cache.Loader[[]core.Balance]
	currencies *core.CurrencyTable
	now        func() time.Time

	// serializes read-check-write of share payments
	payMu sync.Mutex
}

type Options struct {
	Publisher  Publisher
	Cache      cache.Cache[[]core.Balance]
	Currencies *core.CurrencyTable
	Now        func() time.Time
}

func NewGroupService(store storage.Store, projector *LedgerProjector, opts Options) *GroupService {
	if opts.Cache == nil {
		opts.Cache = cache.NewLRU[[]core.Balance](balanceCacheSize, balanceCacheTTL)
	}
	if opts.Currencies == nil {
		opts.Currencies = core.DefaultCurrencyTable("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if projector == nil {
		projector = NewLedgerProjector(store)
	}
	return &GroupService{
		store:      store,
		projector:  projector,
		publisher:  opts.Publisher,
		balances:   cache.NewLoader(opts.Cache),
		currencies: opts.Currencies,
		now:        opts.Now,
	}
}

func balanceKey(groupID string) string { return "balances:" + groupID }

func (s *GroupService) invalidate(groupID string) {
	s.balances.Invalidate(balanceKey(groupID))
}

// access loads the group and the caller's membership. Non-members get
// core.ErrForbidden.
func (s *GroupService) access(ctx context.Context, groupID, userID string) (core.Group, core.Member, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return core.Group{}, core.Member{}, err
	}
	m, err := s.store.GetMember(ctx, groupID, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Group{}, core.Member{}, fmt.Errorf("user %s in group %s: %w", userID, groupID, core.ErrForbidden)
	}
	if err != nil {
		return core.Group{}, core.Member{}, err
	}
	return g, m, nil
}

type CreateGroupInput struct {
	Name        string
	Description string
	Type        core.GroupType
	OwnerID     string
	OwnerName   string
}

// CreateGroup stores a group with its owner as the first admin.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (core.Group, error) {
	if in.Type == "" {
		in.Type = core.MultiPerson
	}
	now := s.now().UTC()
	g := core.Group{
		ID:          core.NewID(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		OwnerID:     in.OwnerID,
		CreatedAt:   now,
	}
	if err := g.Validate(); err != nil {
		return core.Group{}, inputErr(groupField(err), err)
	}
	owner := core.Member{GroupID: g.ID, UserID: in.OwnerID, Name: in.OwnerName, Role: core.RoleAdmin, JoinedAt: now}
	if err := s.store.CreateGroup(ctx, g, owner); err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	slog.InfoContext(ctx, "Group created", "component", "group", "group_id", g.ID, "user_id", g.OwnerID)
	return g, nil
}

func groupField(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidGroupType):
		return "group_type"
	case strings.Contains(err.Error(), "owner"):
		return "owner_id"
	default:
		return "name"
	}
}

func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]core.Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (s *GroupService) GetGroup(ctx context.Context, callerID, groupID string) (core.Group, error) {
	g, _, err := s.access(ctx, groupID, callerID)
	return g, err
}

func (s *GroupService) Members(ctx context.Context, callerID, groupID string) ([]core.Member, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

type MemberInput struct {
	UserID string
	Name   string
	Role   core.Role
}

// AddMember adds a user to the group, or changes the role of an existing
// member. Any member may call it.
func (s *GroupService) AddMember(ctx context.Context, callerID, groupID string, in MemberInput) (core.Member, error) {
	g, _, err := s.access(ctx, groupID, callerID)
	if err != nil {
		return core.Member{}, err
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return core.Member{}, inputErr("user_id", ErrRequired)
	}
	if in.Role == "" {
		in.Role = core.RoleMember
	}
	if !in.Role.Valid() {
		return core.Member{}, inputErr("role", core.ErrInvalidRole)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return core.Member{}, fmt.Errorf("list members: %w", err)
	}
	existing := slices.ContainsFunc(members, func(m core.Member) bool { return m.UserID == in.UserID })
	if !existing && g.Type == core.OneToOne && len(members) >= 2 {
		return core.Member{}, inputErr("user_id", ErrGroupFull)
	}

	m := core.Member{GroupID: groupID, UserID: in.UserID, Name: strings.TrimSpace(in.Name), Role: in.Role, JoinedAt: s.now().UTC()}
	if err := s.store.UpsertMember(ctx, m); err != nil {
		return core.Member{}, fmt.Errorf("upsert member: %w", err)
	}
	s.invalidate(groupID)
	return s.store.GetMember(ctx, groupID, in.UserID)
}

// RemoveMember is reserved to the group owner, who cannot remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, callerID, groupID, userID string) error {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID != callerID {
		return fmt.Errorf("only the owner removes members: %w", core.ErrForbidden)
	}
	if userID == g.OwnerID {
		return inputErr("user_id", ErrOwnerRemoval)
	}
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.invalidate(groupID)
	return nil
}

type CreateExpenseInput struct {
	PaidBy       string
	Title        string
	Description  string
	Total        decimal.Decimal
	Currency     string
	Date         core.Date
	Method       split.Method
	Participants []split.Participant
}

// CreateExpense splits the total among the participants and stores the
// expense with its shares. The payer receives any rounding remainder and
// their own share starts out paid. An equal split without participants
// covers every member.
func (s *GroupService) CreateExpense(ctx context.Context, callerID, groupID string, in CreateExpenseInput) (core.GroupExpense, error) {
	_, _, err := s.access(ctx, groupID, callerID)
	if err != nil {
		return core.GroupExpense{}, err
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return core.GroupExpense{}, fmt.Errorf("list members: %w", err)
	}
	isMember := func(id string) bool {
		return slices.ContainsFunc(members, func(m core.Member) bool { return m.UserID == id })
	}

	if in.PaidBy == "" {
		in.PaidBy = callerID
	}
	if !isMember(in.PaidBy) {
		return core.GroupExpense{}, inputErr("paid_by", ErrNotMember)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currencies.Default()
	}
	if !s.currencies.Known(currency) {
		return core.GroupExpense{}, inputErr("currency", ErrUnknownCurrency)
	}
	if in.Method == "" {
		in.Method = split.Equal
	}
	if in.Date.IsZero() {
		y, m, d := s.now().Date()
		in.Date = core.NewDate(y, int(m), d)
	}
	participants := in.Participants
	if len(participants) == 0 && in.Method == split.Equal {
		for _, m := range members {
			participants = append(participants, split.Participant{ID: m.UserID})
		}
	}
	remainderTo := ""
	for i, p := range participants {
		if p.ID != "" && !isMember(p.ID) {
			return core.GroupExpense{}, inputErr(fmt.Sprintf("participants[%d].id", i), ErrNotMember)
		}
		if p.ID == in.PaidBy {
			remainderTo = p.ID
		}
	}

	res, err := split.Compute(split.Input{
		Total:        in.Total,
		Method:       in.Method,
		Participants: participants,
		RemainderTo:  remainderTo,
	})
	if err != nil {
		return core.GroupExpense{}, err
	}

	e := core.GroupExpense{
		ID:          core.NewID(),
		GroupID:     groupID,
		PaidBy:      in.PaidBy,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Total:       res.Total,
		Currency:    currency,
		Method:      string(res.Method),
		Date:        in.Date,
		Status:      core.ExpenseActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.GroupExpense{}, inputErr(expenseField(err), err)
	}
	for _, sh := range res.Shares {
		share := core.Share{ExpenseID: e.ID, UserID: sh.ParticipantID, Amount: sh.Amount}
		if sh.ParticipantID == e.PaidBy {
			paidAt := e.CreatedAt
			share.Paid = sh.Amount
			share.PaymentDate = &paidAt
		}
		e.Shares = append(e.Shares, share)
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.GroupExpense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate(groupID)
	s.announce(ctx, amqp.ExpenseCreated, e)
	return e, nil
}

func expenseField(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyTitle), strings.Contains(err.Error(), "title"):
		return "title"
	case errors.Is(err, core.ErrInvalidAmount):
		return "total"
	case errors.Is(err, core.ErrInvalidStatus):
		return "status"
	default:
		return "date"
	}
}

// announce hands a lifecycle change to the worker, or projects it inline
// when no publisher is configured. Failures never fail the caller: the
// worker's reconcile pass picks up whatever was missed.
func (s *GroupService) announce(ctx context.Context, kind amqp.EventKind, e core.GroupExpense) {
	if s.publisher == nil {
		if err := s.projector.Project(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Inline ledger projection failed", "component", "ledger", "expense_id", e.ID, "error", err)
		}
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(kind, e.GroupID, e.ID)); err != nil {
		slog.WarnContext(ctx, "Failed to publish expense event, left to reconcile",
			"component", "amqp",
			"event", kind,
			"expense_id", e.ID,
			"error", err)
	}
}

func (s *GroupService) ListExpenses(ctx context.Context, callerID string, q storage.ExpenseQuery) ([]core.GroupExpense, int, error) {
	if _, _, err := s.access(ctx, q.GroupID, callerID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.store.ListExpenses(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	return list, total, nil
}

// ExpenseDetail returns the settlement status of one expense.
func (s *GroupService) ExpenseDetail(ctx context.Context, callerID, groupID, expenseID string) (core.SettlementStatus, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return core.SettlementStatus{}, err
	}
	e, err := s.store.GetExpense(ctx, groupID, expenseID)
	if err != nil {
		return core.SettlementStatus{}, err
	}
	return Settlement(e), nil
}

// Settle marks an active expense settled. Settling twice is a no-op;
// cancelled expenses cannot be settled.
func (s *GroupService) Settle(ctx context.Context, callerID, groupID, expenseID string) (core.GroupExpense, error) {
	return s.transition(ctx, callerID, groupID, expenseID, core.ExpenseSettled, amqp.ExpenseSettled)
}

// Cancel marks an active expense cancelled and voids its ledger entries.
func (s *GroupService) Cancel(ctx context.Context, callerID, groupID, expenseID string) (core.GroupExpense, error) {
	return s.transition(ctx, callerID, groupID, expenseID, core.ExpenseCancelled, amqp.ExpenseCancelled)
}

func (s *GroupService) transition(ctx context.Context, callerID, groupID, expenseID string, to core.ExpenseStatus, kind amqp.EventKind) (core.GroupExpense, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return core.GroupExpense{}, err
	}
	e, err := s.store.GetExpense(ctx, groupID, expenseID)
	if err != nil {
		return core.GroupExpense{}, err
	}
	if e.Status == to {
		return e, nil
	}
	if e.Status != core.ExpenseActive {
		return core.GroupExpense{}, fmt.Errorf("expense is %s: %w", e.Status, core.ErrConflict)
	}
	if err := s.store.SetExpenseStatus(ctx, groupID, expenseID, to); err != nil {
		return core.GroupExpense{}, fmt.Errorf("set expense status: %w", err)
	}
	e.Status = to
	s.invalidate(groupID)
	slog.InfoContext(ctx, "Group expense status changed", "component", "group", "expense_id", e.ID, "status", to)
	s.announce(ctx, kind, e)
	return e, nil
}

type PaymentInput struct {
	UserID string
	Amount decimal.Decimal
}

// RecordPayment adds a repayment to one share of an active expense. The
// expense becomes settled once every share is paid.
func (s *GroupService) RecordPayment(ctx context.Context, callerID, groupID, expenseID string, in PaymentInput) (core.Share, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return core.Share{}, err
	}
	if in.UserID == "" {
		in.UserID = callerID
	}
	amount := core.MoneyFromDecimal(in.Amount)
	if err := amount.Validate(); err != nil {
		return core.Share{}, inputErr("amount", err)
	}

	s.payMu.Lock()
	defer s.payMu.Unlock()

	e, err := s.store.GetExpense(ctx, groupID, expenseID)
	if err != nil {
		return core.Share{}, err
	}
	if e.Status != core.ExpenseActive {
		return core.Share{}, fmt.Errorf("expense is %s: %w", e.Status, core.ErrConflict)
	}
	if in.UserID == e.PaidBy {
		return core.Share{}, inputErr("user_id", ErrPayerPayment)
	}
	i := slices.IndexFunc(e.Shares, func(sh core.Share) bool { return sh.UserID == in.UserID })
	if i < 0 {
		return core.Share{}, inputErr("user_id", ErrNoShare)
	}
	if amount.Cents > e.Shares[i].Remaining().Cents {
		return core.Share{}, inputErr("amount", ErrOverpayment)
	}

	share, err := s.store.AddPayment(ctx, expenseID, in.UserID, amount, s.now().UTC())
	if err != nil {
		return core.Share{}, fmt.Errorf("record payment: %w", err)
	}
	s.invalidate(groupID)
	slog.InfoContext(ctx, "Share payment recorded",
		"component", "group",
		"expense_id", expenseID,
		"user_id", in.UserID,
		"amount_cents", amount.Cents)

	e.Shares[i] = share
	if Settlement(e).FullySettled {
		if err := s.store.SetExpenseStatus(ctx, groupID, expenseID, core.ExpenseSettled); err != nil {
			return share, fmt.Errorf("settle paid expense: %w", err)
		}
		e.Status = core.ExpenseSettled
		s.invalidate(groupID)
		s.announce(ctx, amqp.ExpenseSettled, e)
	}
	return share, nil
}

func (s *GroupService) Summary(ctx context.Context, callerID, groupID string) (core.ExpenseSummary, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return core.ExpenseSummary{}, err
	}
	expenses, err := s.store.AllGroupExpenses(ctx, groupID)
	if err != nil {
		return core.ExpenseSummary{}, fmt.Errorf("load expenses: %w", err)
	}
	return Summarize(groupID, s.currencies.Default(), expenses), nil
}

// Balances returns every member's net position in the group.
func (s *GroupService) Balances(ctx context.Context, callerID, groupID string) ([]core.Balance, error) {
	if _, _, err := s.access(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.groupBalances(ctx, groupID)
}

func (s *GroupService) groupBalances(ctx context.Context, groupID string) ([]core.Balance, error) {
	b, err := s.balances.Get(ctx, balanceKey(groupID), func(ctx context.Context) ([]core.Balance, error) {
		members, err := s.store.ListMembers(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		expenses, err := s.store.AllGroupExpenses(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("load expenses: %w", err)
		}
		return ComputeBalances(members, expenses), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(b), nil
}

// SettleUp proposes the transfers that bring every balance to zero.
func (s *GroupService) SettleUp(ctx context.Context, callerID, groupID string) ([]split.Transfer, error) {
	b, err := s.Balances(ctx, callerID, groupID)
	if err != nil {
		return nil, err
	}
	return split.SettleUp(b), nil
}

type GroupBalance struct {
	Group core.Group
	Net   core.Money
}

type OverallBalance struct {
	UserID string
	Net    core.Money
	Groups []GroupBalance
}

// OverallBalance adds up the caller's net balance over all their groups.
func (s *GroupService) OverallBalance(ctx context.Context, userID string) (OverallBalance, error) {
	groups, err := s.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return OverallBalance{}, fmt.Errorf("list groups: %w", err)
	}
	out := OverallBalance{UserID: userID}
	for _, g := range groups {
		balances, err := s.groupBalances(ctx, g.ID)
		if err != nil {
			return OverallBalance{}, err
		}
		var net core.Money
		for _, b := range balances {
			if b.UserID == userID {
				net = b.Net
				break
			}
		}
		out.Net = out.Net.Add(net)
		out.Groups = append(out.Groups, GroupBalance{Group: g, Net: net})
	}
	return out, nil
}
