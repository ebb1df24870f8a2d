package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conti/internal/core"
	"conti/internal/storage"
	"conti/internal/storage/memory"
)

type ledgerFixture struct {
	store    *memory.Store
	accounts *AccountService
	txs      *TransactionService
}

func newLedgerFixture() *ledgerFixture {
	store := memory.New()
	f := &ledgerFixture{
		store:    store,
		accounts: NewAccountService(store, nil),
		txs:      NewTransactionService(store, nil),
	}
	f.accounts.now = func() time.Time { return fixedNow }
	f.txs.now = func() time.Time { return fixedNow }
	return f
}

func (f *ledgerFixture) account(t *testing.T, in AccountInput) core.AccountBalance {
	t.Helper()
	a, err := f.accounts.Create(context.Background(), "bob", in)
	if err != nil {
		t.Fatalf("create account %s: %v", in.Name, err)
	}
	return a
}

func (f *ledgerFixture) book(t *testing.T, accountID, amount string, typ core.TransactionType) core.Transaction {
	t.Helper()
	tx, err := f.txs.Create(context.Background(), "bob", TransactionInput{
		Amount: dec(amount), Type: typ, Description: "entry", AccountID: accountID,
	})
	if err != nil {
		t.Fatalf("book %s on %s: %v", amount, accountID, err)
	}
	return tx
}

func TestAccountBalanceFollowsLedger(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	checking := f.account(t, AccountInput{Name: " Checking ", OpeningBalance: dec("100")})
	if checking.Name != "Checking" || checking.Type != core.AccountChecking || checking.Currency != "USD" || checking.Balance.Cents != 10000 {
		t.Fatalf("created = %+v", checking)
	}

	f.book(t, checking.ID, "2500", core.TxIncome)
	f.book(t, checking.ID, "40.25", core.TxExpense)
	if _, err := f.txs.Create(ctx, "bob", TransactionInput{Amount: dec("9"), Description: "unbooked"}); err != nil {
		t.Fatal(err)
	}
	cancelled, err := f.txs.Create(ctx, "bob", TransactionInput{
		Amount: dec("999"), Description: "void", AccountID: checking.ID, Status: core.TxCancelled,
	})
	if err != nil || cancelled.AccountID != checking.ID {
		t.Fatalf("cancelled entry = %+v, %v", cancelled, err)
	}

	got, err := f.accounts.Get(ctx, "bob", checking.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Balance.Cents != 255975 || got.Entries != 2 {
		t.Fatalf("balance = %d over %d entries, want 255975 over 2", got.Balance.Cents, got.Entries)
	}

	list, _, err := f.txs.List(ctx, "bob", map[string]string{FilterAccount: checking.ID})
	if err != nil || len(list) != 3 {
		t.Fatalf("list by account = %d entries, %v", len(list), err)
	}
}

func TestTransactionAccountChecks(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	eur := f.account(t, AccountInput{Name: "Euro", Currency: "eur"})

	tx := f.book(t, eur.ID, "10", core.TxExpense)
	if tx.Currency != "EUR" {
		t.Fatalf("entry currency = %s, want the account's", tx.Currency)
	}
	_, err := f.txs.Create(ctx, "bob", TransactionInput{Amount: dec("1"), Description: "x", AccountID: eur.ID, Currency: "USD"})
	assertInputErr(t, err, "currency", ErrCurrencyMismatch)
	_, err = f.txs.Create(ctx, "alice", TransactionInput{Amount: dec("1"), Description: "x", AccountID: eur.ID})
	assertInputErr(t, err, "account_id", core.ErrNotFound)

	if _, err := f.store.SetAccountActive(ctx, "bob", eur.ID, false); err != nil {
		t.Fatal(err)
	}
	_, err = f.txs.Create(ctx, "bob", TransactionInput{Amount: dec("1"), Description: "x", AccountID: eur.ID})
	assertInputErr(t, err, "account_id", core.ErrAccountArchived)
}

func TestCreateAccountRejections(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	_, err := f.accounts.Create(ctx, "bob", AccountInput{Name: " "})
	assertInputErr(t, err, "name", core.ErrEmptyName)
	_, err = f.accounts.Create(ctx, "bob", AccountInput{Name: "Jar", Type: "jar"})
	assertInputErr(t, err, "type", core.ErrInvalidAccountType)
	_, err = f.accounts.Create(ctx, "bob", AccountInput{Name: "Jar", Currency: "XYZ"})
	assertInputErr(t, err, "currency", ErrUnknownCurrency)
}

func TestArchiveNeedsZeroBalance(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	cash := f.account(t, AccountInput{Name: "Cash", Type: core.AccountCash, OpeningBalance: dec("20")})

	if _, err := f.accounts.Archive(ctx, "bob", cash.ID); !errors.Is(err, core.ErrNonZeroBalance) || !errors.Is(err, core.ErrConflict) {
		t.Fatalf("archive with balance: %v", err)
	}
	f.book(t, cash.ID, "20", core.TxExpense)
	archived, err := f.accounts.Archive(ctx, "bob", cash.ID)
	if err != nil || archived.Active {
		t.Fatalf("archive = %+v, %v", archived, err)
	}
	if list, _ := f.accounts.List(ctx, "bob", false); len(list) != 0 {
		t.Fatalf("archived account still listed: %+v", list)
	}
	restored, err := f.accounts.Restore(ctx, "bob", cash.ID)
	if err != nil || !restored.Active {
		t.Fatalf("restore = %+v, %v", restored, err)
	}
}

func TestReconcileBooksDifference(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	checking := f.account(t, AccountInput{Name: "Checking", OpeningBalance: dec("100")})

	ab, tx, err := f.accounts.Reconcile(ctx, "bob", checking.ID, dec("87.50"))
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.Amount.Cents != -1250 || tx.Type != core.TxExpense || tx.AccountID != checking.ID {
		t.Fatalf("adjustment = %+v", tx)
	}
	if ab.Balance.Cents != 8750 {
		t.Fatalf("balance after reconcile = %d", ab.Balance.Cents)
	}
	stored, _ := f.accounts.Get(ctx, "bob", checking.ID)
	if stored.Balance.Cents != 8750 {
		t.Fatalf("stored balance = %d", stored.Balance.Cents)
	}
	if _, tx, err = f.accounts.Reconcile(ctx, "bob", checking.ID, dec("87.5")); err != nil || tx != nil {
		t.Fatalf("matching reconcile booked %+v, %v", tx, err)
	}
}

func TestTransfer(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	checking := f.account(t, AccountInput{Name: "Checking", OpeningBalance: dec("50")})
	savings := f.account(t, AccountInput{Name: "Savings", Type: core.AccountSavings})
	card := f.account(t, AccountInput{Name: "Card", Type: core.AccountCredit})
	euro := f.account(t, AccountInput{Name: "Euro", Currency: "EUR"})

	out, in, err := f.accounts.Transfer(ctx, "bob", TransferInput{From: checking.ID, To: savings.ID, Amount: dec("30")})
	if err != nil {
		t.Fatal(err)
	}
	if out.Amount.Cents != -3000 || in.Amount.Cents != 3000 || out.Type != core.TxTransfer || out.Description != "Transfer - to Savings" {
		t.Fatalf("legs = %+v / %+v", out, in)
	}

	_, _, err = f.accounts.Transfer(ctx, "bob", TransferInput{From: checking.ID, To: savings.ID, Amount: dec("20.01")})
	assertInputErr(t, err, "amount", ErrInsufficientFunds)
	if _, _, err = f.accounts.Transfer(ctx, "bob", TransferInput{From: card.ID, To: savings.ID, Amount: dec("100")}); err != nil {
		t.Fatalf("credit account may go negative: %v", err)
	}
	_, _, err = f.accounts.Transfer(ctx, "bob", TransferInput{From: checking.ID, To: euro.ID, Amount: dec("1")})
	assertInputErr(t, err, "to", ErrCurrencyMismatch)
	_, _, err = f.accounts.Transfer(ctx, "bob", TransferInput{From: checking.ID, To: checking.ID, Amount: dec("1")})
	assertInputErr(t, err, "to", ErrSameAccount)
	_, _, err = f.accounts.Transfer(ctx, "bob", TransferInput{From: "missing", To: savings.ID, Amount: dec("1")})
	assertInputErr(t, err, "from", core.ErrNotFound)

	summary, err := f.accounts.Summary(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	want := []AccountTypeTotal{
		{Type: core.AccountChecking, Currency: "EUR", Accounts: 1},
		{Type: core.AccountChecking, Currency: "USD", Accounts: 1, Balance: core.Money{Cents: 2000}},
		{Type: core.AccountCredit, Currency: "USD", Accounts: 1, Balance: core.Money{Cents: -10000}},
		{Type: core.AccountSavings, Currency: "USD", Accounts: 1, Balance: core.Money{Cents: 13000}},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
}

type failingTransferStore struct {
	*memory.Store
}

func (failingTransferStore) CreateTransfer(context.Context, core.Transaction, core.Transaction) error {
	return errors.New("disk full")
}

var _ storage.AccountStore = failingTransferStore{}

func TestTransferStoreFailure(t *testing.T) {
	store := memory.New()
	svc := NewAccountService(failingTransferStore{store}, nil)
	ctx := context.Background()
	a, _ := svc.Create(ctx, "bob", AccountInput{Name: "A", OpeningBalance: dec("10")})
	b, _ := svc.Create(ctx, "bob", AccountInput{Name: "B"})
	if _, _, err := svc.Transfer(ctx, "bob", TransferInput{From: a.ID, To: b.ID, Amount: dec("1")}); err == nil {
		t.Fatal("expected the store error")
	}
	if totals, _ := store.LedgerTotals(ctx, "bob"); len(totals) != 0 {
		t.Fatalf("failed transfer left entries: %+v", totals)
	}
}
