package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"library-circulation/store"
)

// LibraryManager is the façade callers use. It serializes every operation
// behind one lock, so compound operations (issue a loan and take a copy,
// approve a request and issue its loan) are atomic. After each successful
// change it writes the touched records to the store and appends an audit entry.
type LibraryManager struct {
	mu sync.Mutex

	catalog *Catalog
	dir     *Directory
	ledger  *Ledger
	board   *RequestBoard

	store  store.Store
	log    *slog.Logger
	now    func() time.Time
	policy Policy

	auditSeq int64
}

// Options configures a LibraryManager. Zero values fall back to an in-memory
// store, DefaultPolicy (field by field), a discarding logger and time.Now.
type Options struct {
	Store  store.Store
	Policy Policy
	Logger *slog.Logger
	Now    func() time.Time
}

// NewLibraryManager builds the components and loads any records already in
// the store.
func NewLibraryManager(ctx context.Context, opts Options) (*LibraryManager, error) {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	opts.Policy = opts.Policy.withDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	catalog := NewCatalog()
	dir := NewDirectory(opts.Policy.BorrowLimit)
	ledger := NewLedger(catalog, dir, opts.Policy)
	lm := &LibraryManager{
		catalog: catalog,
		dir:     dir,
		ledger:  ledger,
		board:   NewRequestBoard(ledger, catalog, dir),
		store:   opts.Store,
		log:     opts.Logger,
		now:     opts.Now,
		policy:  opts.Policy,
	}
	if err := lm.load(ctx); err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	return lm, nil
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

// Policy returns the circulation rules in force.
func (lm *LibraryManager) Policy() Policy { return lm.policy }

// ------------------ Categories ------------------

func (lm *LibraryManager) AddCategory(ctx context.Context, cat Category) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	cat.ID = strings.TrimSpace(cat.ID)
	if err := lm.catalog.AddCategory(cat); err != nil {
		return err
	}
	saved, _ := lm.catalog.Category(cat.ID)
	lm.log.Info("category added", "category_id", saved.ID)
	return lm.commit(ctx, change{CategoryEntity, saved.ID, "add", saved.Name}, lm.putCategory(saved.ID))
}

func (lm *LibraryManager) Categories() []Category {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.Categories()
}

func (lm *LibraryManager) BooksInCategory(id string) ([]Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.BooksInCategory(id)
}

// ------------------ Books ------------------

func (lm *LibraryManager) AddBook(ctx context.Context, b Book) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	b.ID = strings.TrimSpace(b.ID)
	if err := lm.catalog.AddBook(b); err != nil {
		return err
	}
	lm.log.Info("book added", "book_id", b.ID, "copies", b.TotalCopies)
	return lm.commit(ctx, change{BookEntity, b.ID, "add", b.Title}, lm.putBook(b.ID))
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, id string, u BookUpdate) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.catalog.UpdateBook(id, u); err != nil {
		return err
	}
	lm.log.Info("book updated", "book_id", id)
	return lm.commit(ctx, change{BookEntity, id, "update", ""}, lm.putBook(id))
}

func (lm *LibraryManager) RemoveBook(ctx context.Context, id string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.catalog.RemoveBook(id); err != nil {
		return err
	}
	lm.log.Info("book removed", "book_id", id)
	return lm.commit(ctx, change{BookEntity, id, "remove", ""}, lm.deleteRecord(store.TableBooks, id))
}

func (lm *LibraryManager) Reserve(ctx context.Context, bookID, userID string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.dir.User(userID); err != nil {
		return err
	}
	if err := lm.catalog.Reserve(bookID, userID); err != nil {
		return err
	}
	return lm.commit(ctx, change{BookEntity, bookID, "reserve", userID}, lm.putBook(bookID))
}

func (lm *LibraryManager) Unreserve(ctx context.Context, bookID, userID string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.catalog.Unreserve(bookID, userID); err != nil {
		return err
	}
	return lm.commit(ctx, change{BookEntity, bookID, "unreserve", userID}, lm.putBook(bookID))
}

func (lm *LibraryManager) GetBook(id string) (Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.Book(id)
}

func (lm *LibraryManager) ListBooks() []Book {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.Books()
}

// SearchBooks matches q against title, author and ISBN.
func (lm *LibraryManager) SearchBooks(q string) []Book {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.catalog.Search(q)
}

// ------------------ Loans ------------------

// IssueLoan lends a copy directly, bypassing the request workflow. A zero due
// date means the default loan period.
func (lm *LibraryManager) IssueLoan(ctx context.Context, id, userID, bookID string, due time.Time, notes string) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	loan, err := lm.ledger.Issue(id, userID, bookID, due, notes, lm.now())
	if err != nil {
		return Loan{}, err
	}
	lm.log.Info("loan issued", "loan_id", loan.ID, "book_id", bookID, "user_id", userID, "due", loan.DueDate)
	return loan, lm.commit(ctx, change{LoanEntity, loan.ID, "issue", bookID},
		lm.putLoan(loan.ID), lm.putBook(bookID), lm.putUser(userID))
}

// ReturnLoan closes a loan and restores the copy. It returns false when the
// loan was already closed.
func (lm *LibraryManager) ReturnLoan(ctx context.Context, id string) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ok, err := lm.ledger.Return(id, lm.now())
	if err != nil || !ok {
		return ok, err
	}
	loan, _ := lm.ledger.Loan(id)
	lm.log.Info("loan returned", "loan_id", id, "fine", loan.FineAmount)
	return true, lm.commit(ctx, change{LoanEntity, id, "return", "fine " + loan.FineAmount.StringFixed(2)},
		lm.putLoan(id), lm.putBook(loan.BookID), lm.putUser(loan.UserID))
}

// ExtendLoan pushes the due date out by days. It returns false for
// non-positive days or a closed loan.
func (lm *LibraryManager) ExtendLoan(ctx context.Context, id string, days int) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ok, err := lm.ledger.Extend(id, days, lm.now())
	if err != nil || !ok {
		return ok, err
	}
	lm.log.Info("loan extended", "loan_id", id, "days", days)
	return true, lm.commit(ctx, change{LoanEntity, id, "extend", fmt.Sprintf("%d days", days)}, lm.putLoan(id))
}

// MarkLost closes a loan with a replacement fine and writes the copy off.
func (lm *LibraryManager) MarkLost(ctx context.Context, id string, replacementFine decimal.Decimal) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ok, err := lm.ledger.MarkLost(id, replacementFine, lm.now())
	if err != nil || !ok {
		return ok, err
	}
	loan, _ := lm.ledger.Loan(id)
	lm.log.Info("loan marked lost", "loan_id", id, "fine", loan.FineAmount)
	return true, lm.commit(ctx, change{LoanEntity, id, "lost", "fine " + loan.FineAmount.StringFixed(2)},
		lm.putLoan(id), lm.putBook(loan.BookID), lm.putUser(loan.UserID))
}

// CalculateFine returns the fine owed now. Open loans store the recomputed value.
func (lm *LibraryManager) CalculateFine(ctx context.Context, id string) (decimal.Decimal, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	before, err := lm.ledger.Loan(id)
	if err != nil {
		return decimal.Zero, err
	}
	fine, err := lm.ledger.CalculateFine(id, lm.now())
	if err != nil {
		return decimal.Zero, err
	}
	if !fine.Equal(before.FineAmount) {
		if err := lm.persist(ctx, lm.putLoan(id)); err != nil {
			return fine, err
		}
	}
	return fine, nil
}

// NextLoanID returns the next free loan ID of the form L001.
func (lm *LibraryManager) NextLoanID() string {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.ledger.NextID()
}

// GetLoan returns the loan as stored, without re-deriving its status.
func (lm *LibraryManager) GetLoan(id string) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.ledger.Loan(id)
}

// RefreshLoan re-derives one loan's status and fine from the clock, persists
// the change if any, and returns the refreshed loan.
func (lm *LibraryManager) RefreshLoan(ctx context.Context, id string) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	loan, changed, err := lm.ledger.RefreshStatus(id, lm.now())
	if err != nil {
		return Loan{}, err
	}
	if changed {
		return loan, lm.persist(ctx, lm.putLoan(id))
	}
	return loan, nil
}

// RefreshStatuses refreshes every open loan and returns how many changed.
// Calling it twice at the same instant changes nothing the second time.
func (lm *LibraryManager) RefreshStatuses(ctx context.Context) (int, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	changed := lm.ledger.RefreshAll(lm.now())
	writes := make([]write, 0, len(changed))
	for _, l := range changed {
		writes = append(writes, lm.putLoan(l.ID))
	}
	if len(changed) > 0 {
		lm.log.Info("loan statuses refreshed", "changed", len(changed))
	}
	return len(changed), lm.persist(ctx, writes...)
}

// ListLoans returns loans as stored. Call RefreshStatuses first for current
// overdue statuses.
func (lm *LibraryManager) ListLoans(f LoanFilter) []Loan {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.ledger.Loans(f)
}

// OverdueLoans refreshes statuses and returns the overdue loans.
func (lm *LibraryManager) OverdueLoans(ctx context.Context) ([]Loan, error) {
	if _, err := lm.RefreshStatuses(ctx); err != nil {
		return nil, err
	}
	return lm.ListLoans(LoanFilter{Status: LoanOverdue}), nil
}

// ------------------ Requests ------------------

func (lm *LibraryManager) CreateRequest(ctx context.Context, username, bookID string, desiredReturn time.Time) (BorrowRequest, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	r, err := lm.board.Create(username, bookID, desiredReturn, lm.now())
	if err != nil {
		return BorrowRequest{}, err
	}
	lm.log.Info("borrow request created", "request_id", r.ID, "book_id", bookID, "username", username)
	return r, lm.commit(ctx, change{RequestEntity, r.ID, "create", username}, lm.putRequest(r.ID))
}

// ApproveRequest turns a pending request into a loan.
func (lm *LibraryManager) ApproveRequest(ctx context.Context, id, adminID string) (BorrowRequest, Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	r, loan, err := lm.board.Approve(id, adminID, lm.now())
	if err != nil {
		return BorrowRequest{}, Loan{}, err
	}
	lm.log.Info("borrow request approved", "request_id", id, "loan_id", loan.ID, "user_id", loan.UserID)
	return r, loan, lm.commit(ctx, change{RequestEntity, id, "approve", "loan " + loan.ID},
		lm.putLoan(loan.ID), lm.putBook(loan.BookID), lm.putUser(loan.UserID), lm.patchDecision(r))
}

// DenyRequest rejects a pending request.
func (lm *LibraryManager) DenyRequest(ctx context.Context, id, adminID, reason string) (BorrowRequest, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	r, err := lm.board.Deny(id, adminID, reason, lm.now())
	if err != nil {
		return BorrowRequest{}, err
	}
	lm.log.Info("borrow request denied", "request_id", id, "reason", r.Notes)
	return r, lm.commit(ctx, change{RequestEntity, id, "deny", r.Notes}, lm.patchDecision(r))
}

func (lm *LibraryManager) GetRequest(id string) (BorrowRequest, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.board.Request(id)
}

func (lm *LibraryManager) ListRequests(f RequestFilter) []BorrowRequest {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.board.Requests(f)
}

// ------------------ Users ------------------

// RegisterUser adds an account. An empty password leaves the account unable
// to log in until SetPassword is called.
func (lm *LibraryManager) RegisterUser(ctx context.Context, u User, password string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	u.ID = strings.TrimSpace(u.ID)
	if err := lm.dir.Register(u, lm.now()); err != nil {
		return err
	}
	if password != "" {
		if err := lm.dir.SetPassword(u.ID, password); err != nil {
			_ = lm.dir.Remove(u.ID)
			return err
		}
	}
	lm.log.Info("user registered", "user_id", u.ID)
	return lm.commit(ctx, change{UserEntity, u.ID, "register", ""}, lm.putUser(u.ID))
}

func (lm *LibraryManager) UpdateUser(ctx context.Context, id string, u UserUpdate) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.dir.Update(id, u); err != nil {
		return err
	}
	lm.log.Info("user updated", "user_id", id)
	return lm.commit(ctx, change{UserEntity, id, "update", ""}, lm.putUser(id))
}

func (lm *LibraryManager) RemoveUser(ctx context.Context, id string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.dir.Remove(id); err != nil {
		return err
	}
	lm.log.Info("user removed", "user_id", id)
	return lm.commit(ctx, change{UserEntity, id, "remove", ""}, lm.deleteRecord(store.TableUsers, id))
}

func (lm *LibraryManager) SetPassword(ctx context.Context, id, password string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.dir.SetPassword(id, password); err != nil {
		return err
	}
	return lm.commit(ctx, change{UserEntity, id, "password", ""}, lm.putUser(id))
}

// Authenticate checks a username (or email) and password.
func (lm *LibraryManager) Authenticate(login, password string) (User, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dir.Authenticate(login, password)
}

func (lm *LibraryManager) GetUser(id string) (User, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dir.User(id)
}

func (lm *LibraryManager) ListUsers() []User {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dir.Users()
}

func (lm *LibraryManager) SearchUsers(q string) []User {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dir.Search(q)
}

func (lm *LibraryManager) CanBorrowMore(id string) (bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dir.CanBorrowMore(id)
}

// ------------------ Reports ------------------

// Summary aggregates circulation figures as of now without changing any record.
func (lm *LibraryManager) Summary() Summary {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	now := lm.now()
	var s Summary
	for _, b := range lm.catalog.Books() {
		s.TotalBooks++
		s.TotalCopies += b.TotalCopies
		s.AvailableCopies += b.AvailableCopies
	}
	s.TotalUsers = len(lm.dir.order)
	for _, l := range lm.ledger.loans {
		if !l.Status.IsOpen() {
			continue
		}
		s.ActiveLoans++
		if l.IsOverdue(now) {
			s.OverdueLoans++
		}
	}
	s.OutstandingFines = lm.ledger.OutstandingFines(now)
	s.PendingRequests = len(lm.board.Requests(RequestFilter{Status: RequestPending}))
	return s
}
