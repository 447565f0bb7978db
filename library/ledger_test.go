package library

import (
	"errors"
	"testing"
	"time"
)

// Book with one copy: the first loan succeeds and takes the copy, the
// second fails as unavailable.
func TestIssueLoanSingleCopy(t *testing.T) {
	f := newFixture(t)
	loan, err := f.ledger.Issue("L1", "U1", "B2", base.Add(14*day), "", base)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if loan.Status != LoanActive || !loan.LoanDate.Equal(base) {
		t.Fatalf("unexpected loan: %+v", loan)
	}
	b, _ := f.catalog.Book("B2")
	if b.AvailableCopies != 0 {
		t.Fatalf("available: want 0, got %d", b.AvailableCopies)
	}
	if _, err := f.ledger.Issue("L2", "U2", "B2", base.Add(14*day), "", base); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("second issue: want ErrUnavailable, got %v", err)
	}
	if _, err := f.ledger.Loan("L2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed issue left a loan behind")
	}
	u, _ := f.dir.User("U2")
	if u.BorrowedCount() != 0 || u.TotalLoans != 0 {
		t.Fatalf("failed issue touched the user: %+v", u)
	}
	checkCopies(t, f.catalog)
}

func TestIssueLoanErrors(t *testing.T) {
	f := newFixture(t)
	f.ledger.Issue("L1", "U1", "B1", time.Time{}, "", base)
	f.dir.Update("U2", UserUpdate{BorrowLimit: intPtr(1)})
	f.ledger.Issue("L2", "U2", "B1", time.Time{}, "", base)

	tests := []struct {
		name   string
		id     string
		userID string
		bookID string
		want   error
	}{
		{"duplicate id", "L1", "U1", "B2", ErrDuplicateID},
		{"unknown user", "L3", "U9", "B2", ErrNotFound},
		{"unknown book", "L3", "U1", "B9", ErrNotFound},
		{"limit reached", "L3", "U2", "B2", ErrBorrowLimit},
		{"missing id", "", "U1", "B2", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Issue(tt.id, tt.userID, tt.bookID, time.Time{}, "", base)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
	checkCopies(t, f.catalog)
}

func TestIssueLoanDefaultDue(t *testing.T) {
	f := newFixture(t)
	loan, err := f.ledger.Issue("L1", "U1", "B1", time.Time{}, "", base)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := base.AddDate(0, 0, 14); !loan.DueDate.Equal(want) {
		t.Fatalf("due: want %v, got %v", want, loan.DueDate)
	}
}

// A loan issued three days past due owes three days of fines.
func TestCalculateFineOverdue(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.Issue("L1", "U1", "B1", base.Add(-3*day), "", base); err != nil {
		t.Fatalf("issue: %v", err)
	}
	fine, err := f.ledger.CalculateFine("L1", base)
	if err != nil {
		t.Fatalf("fine: %v", err)
	}
	checkMoney(t, "fine", fine, "1.50")
	if _, err := f.ledger.CalculateFine("L9", base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown loan: got %v", err)
	}
}

func TestReturnLoan(t *testing.T) {
	f := newFixture(t)
	f.ledger.Issue("L1", "U1", "B1", base.Add(7*day), "", base)
	ok, err := f.ledger.Return("L1", base.Add(10*day))
	if err != nil || !ok {
		t.Fatalf("return: %v %v", ok, err)
	}
	loan, _ := f.ledger.Loan("L1")
	if loan.Status != LoanReturned {
		t.Fatalf("want RETURNED, got %s", loan.Status)
	}
	checkMoney(t, "fine", loan.FineAmount, "1.50")
	b, _ := f.catalog.Book("B1")
	if b.AvailableCopies != 2 || len(b.ActiveLoans) != 0 {
		t.Fatalf("copy not restored: %+v", b)
	}
	u, _ := f.dir.User("U1")
	if u.BorrowedCount() != 0 || u.TotalLoans != 1 {
		t.Fatalf("user counters: %+v", u)
	}

	ok, err = f.ledger.Return("L1", base.Add(11*day))
	if err != nil || ok {
		t.Fatalf("second return: want false, nil; got %v %v", ok, err)
	}
	again, _ := f.ledger.Loan("L1")
	if !again.FineAmount.Equal(money("1.50")) || !again.ReturnDate.Equal(*loan.ReturnDate) {
		t.Fatalf("second return changed the loan: %+v", again)
	}
	if _, err := f.ledger.Return("L9", base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown loan: got %v", err)
	}
	checkCopies(t, f.catalog)
}

// Marking an active loan lost freezes the replacement fine; a later return
// is a no-op.
func TestMarkLostLoan(t *testing.T) {
	f := newFixture(t)
	f.ledger.Issue("L1", "U1", "B1", base.Add(14*day), "", base)
	now := base.Add(2 * day)
	ok, err := f.ledger.MarkLost("L1", money("25.00"), now)
	if err != nil || !ok {
		t.Fatalf("mark lost: %v %v", ok, err)
	}
	loan, _ := f.ledger.Loan("L1")
	if loan.Status != LoanLost || !loan.FineAmount.Equal(money("25")) || !loan.ReturnDate.Equal(now) {
		t.Fatalf("unexpected lost loan: %+v", loan)
	}
	if ok, _ := f.ledger.Return("L1", now.Add(day)); ok {
		t.Fatalf("return after loss should be a no-op")
	}
	b, _ := f.catalog.Book("B1")
	if b.TotalCopies != 1 || b.AvailableCopies != 1 || len(b.ActiveLoans) != 0 {
		t.Fatalf("lost copy not written off: %+v", b)
	}
	u, _ := f.dir.User("U1")
	if u.BorrowedCount() != 0 {
		t.Fatalf("lost loan still counts against the user")
	}
	fine, _ := f.ledger.CalculateFine("L1", now.Add(100*day))
	checkMoney(t, "lost fine", fine, "25.00")
	if _, err := f.ledger.MarkLost("L1", money("-1"), now); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative fine: got %v", err)
	}
	checkCopies(t, f.catalog)
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t)
	f.ledger.Issue("L1", "U1", "B1", base.Add(day), "", base)
	f.ledger.Issue("L2", "U2", "B1", base.Add(10*day), "", base)
	f.ledger.Issue("L3", "U1", "B2", base.Add(day), "", base)
	f.ledger.Return("L3", base)

	now := base.Add(3 * day)
	changed := f.ledger.RefreshAll(now)
	if len(changed) != 1 || changed[0].ID != "L1" || changed[0].Status != LoanOverdue {
		t.Fatalf("refresh: %+v", changed)
	}
	if again := f.ledger.RefreshAll(now); len(again) != 0 {
		t.Fatalf("second refresh at same instant changed %d loans", len(again))
	}
	if got := f.ledger.Loans(LoanFilter{Status: LoanOverdue}); len(got) != 1 {
		t.Fatalf("overdue filter: %d", len(got))
	}
	if got := f.ledger.Loans(LoanFilter{UserID: "U1"}); len(got) != 2 {
		t.Fatalf("user filter: %d", len(got))
	}
	checkMoney(t, "outstanding", f.ledger.OutstandingFines(now), "1.00")
}

func TestExtendLoan(t *testing.T) {
	f := newFixture(t)
	f.ledger.Issue("L1", "U1", "B1", base.Add(day), "", base)
	ok, err := f.ledger.Extend("L1", 7, base)
	if err != nil || !ok {
		t.Fatalf("extend: %v %v", ok, err)
	}
	loan, _ := f.ledger.Loan("L1")
	if want := base.Add(8 * day); !loan.DueDate.Equal(want) {
		t.Fatalf("due: want %v, got %v", want, loan.DueDate)
	}
	if ok, _ := f.ledger.Extend("L1", 0, base); ok {
		t.Fatalf("zero extension accepted")
	}
	if _, err := f.ledger.Extend("L9", 1, base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown loan: got %v", err)
	}
}

func TestNextLoanID(t *testing.T) {
	f := newFixture(t)
	if id := f.ledger.NextID(); id != "L001" {
		t.Fatalf("first id: %s", id)
	}
	f.ledger.Issue("L002", "U1", "B1", time.Time{}, "", base)
	if id := f.ledger.NextID(); id != "L003" {
		t.Fatalf("next id after L002: want L003, got %s", id)
	}
}
