package library

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups books on the shelf.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Book represents one catalog title and the copies the library holds of it.
// AvailableCopies plus the number of ActiveLoans always equals TotalCopies.
type Book struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Author          string            `json:"author"`
	ISBN            string            `json:"isbn"`
	PublicationYear int               `json:"publication_year"`
	CategoryID      string            `json:"category_id,omitempty"`
	TotalCopies     int               `json:"total_copies"`
	AvailableCopies int               `json:"available_copies"`
	ActiveLoans     map[string]string `json:"active_loans"`           // loan ID -> user ID
	Reservations    map[string]bool   `json:"reservations,omitempty"` // user IDs, advisory
}

// LentCopies is the number of copies currently out on loan.
func (b Book) LentCopies() int { return len(b.ActiveLoans) }

// Reservers returns the reserving user IDs in sorted order.
func (b Book) Reservers() []string {
	ids := make([]string, 0, len(b.Reservations))
	for id := range b.Reservations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b Book) clone() Book {
	out := b
	out.ActiveLoans = make(map[string]string, len(b.ActiveLoans))
	for k, v := range b.ActiveLoans {
		out.ActiveLoans[k] = v
	}
	if b.Reservations != nil {
		out.Reservations = make(map[string]bool, len(b.Reservations))
		for k, v := range b.Reservations {
			out.Reservations[k] = v
		}
	}
	return out
}

// BookUpdate carries the fields an administrator may change. Nil fields are left untouched.
type BookUpdate struct {
	Title           *string
	Author          *string
	ISBN            *string
	PublicationYear *int
	CategoryID      *string
	TotalCopies     *int
	AvailableCopies *int
}

// LoanStatus is the state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanReturned LoanStatus = "RETURNED"
	LoanLost     LoanStatus = "LOST"
)

// IsOpen reports whether the loan still holds a copy.
func (s LoanStatus) IsOpen() bool { return s == LoanActive || s == LoanOverdue }

// IsTerminal reports whether no further transition exists.
func (s LoanStatus) IsTerminal() bool { return s == LoanReturned || s == LoanLost }

var validLoanStatuses = map[string]bool{
	string(LoanActive):   true,
	string(LoanOverdue):  true,
	string(LoanReturned): true,
	string(LoanLost):     true,
}

// IsValidLoanStatus reports whether status names a known loan status.
func IsValidLoanStatus(status string) bool {
	return validLoanStatuses[status]
}

// Loan records one copy lent to one user.
type Loan struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	BookID     string          `json:"book_id"`
	LoanDate   time.Time       `json:"loan_date"`
	DueDate    time.Time       `json:"due_date"`
	ReturnDate *time.Time      `json:"return_date,omitempty"`
	Status     LoanStatus      `json:"status"`
	FineAmount decimal.Decimal `json:"fine_amount"`
	Notes      string          `json:"notes,omitempty"`
}

func (l Loan) clone() Loan {
	out := l
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		out.ReturnDate = &rd
	}
	return out
}

// LoanFilter selects loans for list views. Empty fields match everything.
type LoanFilter struct {
	Status LoanStatus
	UserID string
	BookID string
}

func (f LoanFilter) match(l *Loan) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.UserID != "" && l.UserID != f.UserID {
		return false
	}
	if f.BookID != "" && l.BookID != f.BookID {
		return false
	}
	return true
}

// RequestStatus is the state of a borrow request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestDenied   RequestStatus = "DENIED"
)

var validRequestStatuses = map[string]bool{
	string(RequestPending):  true,
	string(RequestApproved): true,
	string(RequestDenied):   true,
}

// IsValidRequestStatus reports whether status names a known request status.
func IsValidRequestStatus(status string) bool {
	return validRequestStatuses[status]
}

// BorrowRequest is a user's ask to borrow a book, pending an admin decision.
type BorrowRequest struct {
	ID                string        `json:"id"`
	Username          string        `json:"username"`
	UserID            string        `json:"user_id,omitempty"`
	BookID            string        `json:"book_id"`
	RequestDate       time.Time     `json:"request_date"`
	DesiredReturnDate time.Time     `json:"desired_return_date"`
	Status            RequestStatus `json:"status"`
	RespondedBy       string        `json:"responded_by,omitempty"`
	ResponseDate      *time.Time    `json:"response_date,omitempty"`
	LoanID            string        `json:"loan_id,omitempty"`
	Notes             string        `json:"notes,omitempty"`
}

func (r BorrowRequest) clone() BorrowRequest {
	out := r
	if r.ResponseDate != nil {
		rd := *r.ResponseDate
		out.ResponseDate = &rd
	}
	return out
}

// RequestFilter selects requests for list views. Empty fields match everything.
type RequestFilter struct {
	Status   RequestStatus
	Username string
	BookID   string
}

func (f RequestFilter) match(r *BorrowRequest) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Username != "" && !strings.EqualFold(r.Username, f.Username) {
		return false
	}
	if f.BookID != "" && r.BookID != f.BookID {
		return false
	}
	return true
}

// Role distinguishes permission sets.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is a registered library account.
type User struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone,omitempty"`
	Role         Role              `json:"role"`
	Active       bool              `json:"active"`
	PasswordHash string            `json:"password_hash,omitempty"`
	ActiveLoans  map[string]string `json:"active_loans"` // loan ID -> book ID
	TotalLoans   int               `json:"total_loans"`
	BorrowLimit  int               `json:"borrow_limit"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// IsAdmin reports whether the user may run administrative operations.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// BorrowedCount is the number of copies the user currently holds.
func (u User) BorrowedCount() int { return len(u.ActiveLoans) }

// BorrowedBooks returns the distinct book IDs the user currently holds, sorted.
func (u User) BorrowedBooks() []string {
	seen := make(map[string]bool, len(u.ActiveLoans))
	ids := make([]string, 0, len(u.ActiveLoans))
	for _, bookID := range u.ActiveLoans {
		if !seen[bookID] {
			seen[bookID] = true
			ids = append(ids, bookID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (u User) clone() User {
	out := u
	out.ActiveLoans = make(map[string]string, len(u.ActiveLoans))
	for k, v := range u.ActiveLoans {
		out.ActiveLoans[k] = v
	}
	return out
}

// UserUpdate carries editable profile fields. Nil fields are left untouched.
type UserUpdate struct {
	Name        *string
	Username    *string
	Email       *string
	Phone       *string
	Role        *Role
	Active      *bool
	BorrowLimit *int
}

// AuditEntry records one state change made through the LibraryManager.
type AuditEntry struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	Entity      string    `json:"entity"`
	EntityID    string    `json:"entity_id"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	Detail      string    `json:"detail,omitempty"`
}

const (
	BookEntity     = "book"
	CategoryEntity = "category"
	LoanEntity     = "loan"
	RequestEntity  = "request"
	UserEntity     = "user"
)

// Summary aggregates circulation figures for reports.
type Summary struct {
	TotalBooks       int             `json:"total_books"`
	TotalCopies      int             `json:"total_copies"`
	AvailableCopies  int             `json:"available_copies"`
	TotalUsers       int             `json:"total_users"`
	ActiveLoans      int             `json:"active_loans"`
	OverdueLoans     int             `json:"overdue_loans"`
	OutstandingFines decimal.Decimal `json:"outstanding_fines"`
	PendingRequests  int             `json:"pending_requests"`
}
