package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"library-circulation/library"
)

// session is the state of one interactive shell.
type session struct {
	ctx  context.Context
	sc   *bufio.Scanner
	in   io.Reader
	mgr  *library.LibraryManager
	user *library.User
}

type command struct {
	access  access
	summary string
	run     func(*session)
}

type access int

const (
	anyone access = iota
	member
	admin
)

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {anyone, "list commands", handleHelp},
		"login":    {anyone, "log in with username or email", handleLogin},
		"register": {anyone, "create an account", handleRegister},
		"logout":   {member, "log out", handleLogout},

		"list books":         {anyone, "list the catalog", handleListBooks},
		"search book":        {anyone, "search by title, author or ISBN", handleSearchBooks},
		"list categories":    {anyone, "list categories", handleListCategories},
		"category books":     {anyone, "list the books in a category", handleCategoryBooks},
		"request book":       {member, "ask to borrow a book", handleRequestBook},
		"my loans":           {member, "show your loans and fines", handleMyLoans},
		"my requests":        {member, "show your borrow requests", handleMyRequests},
		"reserve":            {member, "reserve a book", handleReserve},
		"cancel reservation": {member, "drop a reservation", handleCancelReservation},

		"add book":       {admin, "add a title", handleAddBook},
		"update book":    {admin, "edit a title or its copy counts", handleUpdateBook},
		"remove book":    {admin, "remove a title with no open loans", handleRemoveBook},
		"add category":   {admin, "add a category", handleAddCategory},
		"issue loan":     {admin, "lend a copy directly", handleIssueLoan},
		"return":         {admin, "check a loan back in", handleReturn},
		"extend":         {admin, "extend a loan's due date", handleExtend},
		"mark lost":      {admin, "close a loan as lost", handleMarkLost},
		"list loans":     {admin, "list loans, optionally by status", handleListLoans},
		"overdue":        {admin, "refresh and list overdue loans", handleOverdue},
		"pending":        {admin, "list pending borrow requests", handlePending},
		"approve":        {admin, "approve a borrow request", handleApprove},
		"deny":           {admin, "deny a borrow request", handleDeny},
		"list users":     {admin, "list accounts", handleListUsers},
		"search users":   {admin, "search accounts", handleSearchUsers},
		"update user":    {admin, "change role, limit or status", handleUpdateUser},
		"remove user":    {admin, "remove an account with no open loans", handleRemoveUser},
		"reset password": {admin, "set a user's password", handleResetPassword},
		"report":         {admin, "circulation totals", handleReport},
		"audit":          {admin, "show the change history of a record", handleAudit},
	}
}

func runShell(ctx context.Context, in io.Reader, mgr *library.LibraryManager) error {
	s := &session{ctx: ctx, sc: bufio.NewScanner(in), in: in, mgr: mgr}

	fmt.Println("Welcome to the Library Circulation System!")
	if len(mgr.ListUsers()) == 0 {
		fmt.Println("No accounts yet. The first account you register becomes the administrator.")
	}
	fmt.Println("Type 'help' for commands, 'exit' to quit.")

	for {
		fmt.Print("\n> ")
		if !s.sc.Scan() {
			return s.sc.Err()
		}
		cmd := strings.ToLower(strings.TrimSpace(s.sc.Text()))
		if cmd == "" {
			continue
		}
		if cmd == "exit" || cmd == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}
		c, ok := commands[cmd]
		if !ok {
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
			continue
		}
		if !s.allowed(c.access) {
			if s.user == nil {
				fmt.Println("Please log in first.")
			} else {
				fmt.Println("That command is for administrators.")
			}
			continue
		}
		c.run(s)
	}
}

func (s *session) allowed(a access) bool {
	switch a {
	case member:
		return s.user != nil
	case admin:
		return s.user != nil && s.user.IsAdmin()
	}
	return true
}

// actx tags changes with the logged-in user for the audit trail.
func (s *session) actx() context.Context {
	if s.user == nil {
		return s.ctx
	}
	return library.WithActor(s.ctx, s.user.ID)
}

// ------------------ Input helpers ------------------

func (s *session) ask(prompt string) (string, bool) {
	fmt.Print(prompt)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *session) askInt(prompt string) (int, bool) {
	v, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Invalid number: %s\n", v)
		return 0, false
	}
	return n, true
}

func (s *session) askDate(prompt string) (time.Time, bool) {
	v, ok := s.ask(prompt)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		fmt.Printf("Invalid date %q, use YYYY-MM-DD\n", v)
		return time.Time{}, false
	}
	return d, true
}

// readPassword reads a password with masking when attached to a terminal,
// and a plain line otherwise.
func (s *session) readPassword(prompt string) (string, error) {
	if f, ok := s.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Print(prompt)
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Println()
		return strings.TrimSpace(string(bytePassword)), nil
	}
	v, ok := s.ask(prompt)
	if !ok {
		return "", io.EOF
	}
	return v, nil
}

func report(action string, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound):
		fmt.Printf("Error %s: not found (%v)\n", action, err)
	case errors.Is(err, library.ErrUnavailable):
		fmt.Printf("Error %s: no copies available\n", action)
	default:
		fmt.Printf("Error %s: %v\n", action, err)
	}
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}

// ------------------ Accounts ------------------

func handleHelp(s *session) {
	for _, group := range []struct {
		title string
		level access
	}{
		{"General", anyone},
		{"Members", member},
		{"Administrators", admin},
	} {
		if !s.allowed(group.level) {
			continue
		}
		fmt.Printf("%s:\n", group.title)
		names := make([]string, 0, len(commands))
		for name, c := range commands {
			if c.access == group.level {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-20s %s\n", name, commands[name].summary)
		}
	}
	fmt.Printf("  %-20s %s\n", "exit", "quit the shell")
}

func handleLogin(s *session) {
	login, ok := s.ask("Username or email: ")
	if !ok {
		return
	}
	password, err := s.readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	u, err := s.mgr.Authenticate(login, password)
	if err != nil {
		fmt.Println("Authentication failed.")
		return
	}
	s.user = &u
	fmt.Printf("Welcome, %s (%s).\n", u.Name, u.Role)
}

func handleLogout(s *session) {
	fmt.Printf("Goodbye, %s.\n", s.user.Name)
	s.user = nil
}

func handleRegister(s *session) {
	first := len(s.mgr.ListUsers()) == 0
	name, ok := s.ask("Name: ")
	if !ok {
		return
	}
	email, ok := s.ask("Email: ")
	if !ok {
		return
	}
	username, ok := s.ask("Username (blank to use email): ")
	if !ok {
		return
	}
	phone, ok := s.ask("Phone (optional): ")
	if !ok {
		return
	}
	password, err := s.readPassword(fmt.Sprintf("Enter password for %s: ", name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if password == "" {
		fmt.Println("Error: Password cannot be empty")
		return
	}

	u := library.User{
		ID:       nextUserID(s.mgr),
		Name:     name,
		Username: username,
		Email:    email,
		Phone:    phone,
		Role:     library.RoleMember,
	}
	if first {
		u.Role = library.RoleAdmin
	}
	if err := s.mgr.RegisterUser(s.actx(), u, password); err != nil {
		report("registering", err)
		return
	}
	fmt.Printf("Registered '%s' with ID %s as %s.\n", name, u.ID, u.Role)
}

func nextUserID(mgr *library.LibraryManager) string {
	for n := len(mgr.ListUsers()) + 1; ; n++ {
		id := fmt.Sprintf("U%03d", n)
		if _, err := mgr.GetUser(id); err != nil {
			return id
		}
	}
}

// ------------------ Catalog ------------------

func handleListBooks(s *session) {
	printBooks(s.mgr.ListBooks())
}

func handleSearchBooks(s *session) {
	q, ok := s.ask("Search: ")
	if !ok {
		return
	}
	books := s.mgr.SearchBooks(q)
	if len(books) == 0 {
		fmt.Println("No matching books.")
		return
	}
	printBooks(books)
}

func printBooks(books []library.Book) {
	if len(books) == 0 {
		fmt.Println("No books in the catalog.")
		return
	}
	fmt.Printf("%-8s %-30s %-25s %-15s %-10s %s\n", "ID", "Title", "Author", "ISBN", "Available", "Reserved by")
	fmt.Println(strings.Repeat("-", 110))
	for _, b := range books {
		fmt.Printf("%-8s %-30s %-25s %-15s %-10s %s\n",
			b.ID,
			truncateString(b.Title, 30),
			truncateString(b.Author, 25),
			b.ISBN,
			fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies),
			strings.Join(b.Reservers(), ", "),
		)
	}
}

func handleListCategories(s *session) {
	cats := s.mgr.Categories()
	if len(cats) == 0 {
		fmt.Println("No categories.")
		return
	}
	fmt.Printf("%-8s %-25s %s\n", "ID", "Name", "Description")
	fmt.Println(strings.Repeat("-", 70))
	for _, c := range cats {
		fmt.Printf("%-8s %-25s %s\n", c.ID, truncateString(c.Name, 25), c.Description)
	}
}

func handleCategoryBooks(s *session) {
	id, ok := s.ask("Category ID: ")
	if !ok {
		return
	}
	books, err := s.mgr.BooksInCategory(id)
	if err != nil {
		report("listing category", err)
		return
	}
	printBooks(books)
}

func handleAddCategory(s *session) {
	id, ok := s.ask("Category ID: ")
	if !ok {
		return
	}
	name, ok := s.ask("Name: ")
	if !ok {
		return
	}
	desc, ok := s.ask("Description (optional): ")
	if !ok {
		return
	}
	if err := s.mgr.AddCategory(s.actx(), library.Category{ID: id, Name: name, Description: desc}); err != nil {
		report("adding category", err)
		return
	}
	fmt.Printf("Added category %s.\n", id)
}

func handleAddBook(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	title, ok := s.ask("Title: ")
	if !ok {
		return
	}
	author, ok := s.ask("Author: ")
	if !ok {
		return
	}
	isbn, ok := s.ask("ISBN: ")
	if !ok {
		return
	}
	year, ok := s.askInt("Publication year: ")
	if !ok {
		return
	}
	copies, ok := s.askInt("Copies: ")
	if !ok {
		return
	}
	category, ok := s.ask("Category ID (optional): ")
	if !ok {
		return
	}
	b := library.Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		PublicationYear: year,
		CategoryID:      category,
		TotalCopies:     copies,
	}
	if err := s.mgr.AddBook(s.actx(), b); err != nil {
		report("adding book", err)
		return
	}
	fmt.Printf("Added book %s with %d copies.\n", id, copies)
}

func handleUpdateBook(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	book, err := s.mgr.GetBook(id)
	if err != nil {
		report("updating book", err)
		return
	}
	fmt.Println("Press Enter to keep the current value.")
	var u library.BookUpdate
	if v, ok := s.ask(fmt.Sprintf("Title [%s]: ", book.Title)); !ok {
		return
	} else if v != "" {
		u.Title = &v
	}
	if v, ok := s.ask(fmt.Sprintf("Author [%s]: ", book.Author)); !ok {
		return
	} else if v != "" {
		u.Author = &v
	}
	if v, ok := s.ask(fmt.Sprintf("ISBN [%s]: ", book.ISBN)); !ok {
		return
	} else if v != "" {
		u.ISBN = &v
	}
	if v, ok := s.ask(fmt.Sprintf("Total copies [%d]: ", book.TotalCopies)); !ok {
		return
	} else if v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Printf("Invalid number: %s\n", v)
			return
		}
		u.TotalCopies = &n
	}
	if err := s.mgr.UpdateBook(s.actx(), id, u); err != nil {
		report("updating book", err)
		return
	}
	book, _ = s.mgr.GetBook(id)
	fmt.Printf("Updated '%s': %d of %d copies on the shelf.\n", book.Title, book.AvailableCopies, book.TotalCopies)
}

func handleRemoveBook(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.RemoveBook(s.actx(), id); err != nil {
		report("removing book", err)
		return
	}
	fmt.Printf("Removed book %s.\n", id)
}

func handleReserve(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.Reserve(s.actx(), id, s.user.ID); err != nil {
		report("reserving", err)
		return
	}
	book, _ := s.mgr.GetBook(id)
	fmt.Printf("Reserved '%s' for %s.\n", book.Title, s.user.Name)
}

func handleCancelReservation(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	if err := s.mgr.Unreserve(s.actx(), id, s.user.ID); err != nil {
		report("cancelling reservation", err)
		return
	}
	fmt.Println("Reservation cancelled.")
}

// ------------------ Circulation ------------------

func handleRequestBook(s *session) {
	id, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	desired, ok := s.askDate("Return by (YYYY-MM-DD, after tomorrow): ")
	if !ok {
		return
	}
	r, err := s.mgr.CreateRequest(s.actx(), s.user.Username, id, desired)
	if err != nil {
		report("requesting book", err)
		return
	}
	fmt.Printf("Request %s filed; an administrator will review it.\n", r.ID)
}

func handleMyLoans(s *session) {
	loans := s.mgr.ListLoans(library.LoanFilter{UserID: s.user.ID})
	printLoans(loans)
	owed := decimal.Zero
	for _, l := range loans {
		if l.Status.IsOpen() {
			fine, err := s.mgr.CalculateFine(s.actx(), l.ID)
			if err == nil {
				owed = owed.Add(fine)
			}
		}
	}
	if owed.IsPositive() {
		fmt.Printf("Fines accruing on open loans: %s\n", owed.StringFixed(2))
	}
}

func handleMyRequests(s *session) {
	printRequests(s.mgr.ListRequests(library.RequestFilter{Username: s.user.Username}))
}

func handleIssueLoan(s *session) {
	userID, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	bookID, ok := s.ask("Book ID: ")
	if !ok {
		return
	}
	days, ok := s.ask(fmt.Sprintf("Loan days [%d]: ", s.mgr.Policy().DefaultLoanDays))
	if !ok {
		return
	}
	var due time.Time
	if days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			fmt.Printf("Invalid number of days: %s\n", days)
			return
		}
		due = time.Now().AddDate(0, 0, n)
	}
	loan, err := s.mgr.IssueLoan(s.actx(), s.mgr.NextLoanID(), userID, bookID, due, "issued at desk")
	if err != nil {
		report("issuing loan", err)
		return
	}
	fmt.Printf("Loan %s issued, due %s.\n", loan.ID, loan.DueDate.Format(time.DateOnly))
}

func handleReturn(s *session) {
	id, ok := s.ask("Loan ID: ")
	if !ok {
		return
	}
	returned, err := s.mgr.ReturnLoan(s.actx(), id)
	if err != nil {
		report("returning", err)
		return
	}
	if !returned {
		fmt.Printf("Loan %s is already closed.\n", id)
		return
	}
	loan, _ := s.mgr.GetLoan(id)
	if loan.FineAmount.IsPositive() {
		fmt.Printf("Returned late; fine due: %s\n", loan.FineAmount.StringFixed(2))
		return
	}
	fmt.Println("Returned on time.")
}

func handleExtend(s *session) {
	id, ok := s.ask("Loan ID: ")
	if !ok {
		return
	}
	days, ok := s.askInt("Extra days: ")
	if !ok {
		return
	}
	extended, err := s.mgr.ExtendLoan(s.actx(), id, days)
	if err != nil {
		report("extending", err)
		return
	}
	if !extended {
		fmt.Println("Loan not extended: it is closed or the number of days is not positive.")
		return
	}
	loan, _ := s.mgr.GetLoan(id)
	fmt.Printf("Loan %s now due %s.\n", id, loan.DueDate.Format(time.DateOnly))
}

func handleMarkLost(s *session) {
	id, ok := s.ask("Loan ID: ")
	if !ok {
		return
	}
	v, ok := s.ask("Replacement fine: ")
	if !ok {
		return
	}
	fine, err := decimal.NewFromString(v)
	if err != nil {
		fmt.Printf("Invalid amount: %s\n", v)
		return
	}
	lost, err := s.mgr.MarkLost(s.actx(), id, fine)
	if err != nil {
		report("marking lost", err)
		return
	}
	if !lost {
		fmt.Printf("Loan %s is already closed.\n", id)
		return
	}
	fmt.Printf("Loan %s marked lost; fine %s.\n", id, fine.StringFixed(2))
}

func handleListLoans(s *session) {
	v, ok := s.ask("Status (ACTIVE, OVERDUE, RETURNED, LOST or blank for all): ")
	if !ok {
		return
	}
	v = strings.ToUpper(v)
	if v != "" && !library.IsValidLoanStatus(v) {
		fmt.Printf("Unknown status %s\n", v)
		return
	}
	if _, err := s.mgr.RefreshStatuses(s.actx()); err != nil {
		report("refreshing loans", err)
	}
	printLoans(s.mgr.ListLoans(library.LoanFilter{Status: library.LoanStatus(v)}))
}

func handleOverdue(s *session) {
	loans, err := s.mgr.OverdueLoans(s.actx())
	if err != nil {
		report("refreshing loans", err)
	}
	printLoans(loans)
}

func printLoans(loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Println("No loans.")
		return
	}
	fmt.Printf("%-8s %-8s %-8s %-12s %-12s %-10s %s\n", "ID", "User", "Book", "Loaned", "Due", "Status", "Fine")
	fmt.Println(strings.Repeat("-", 75))
	for _, l := range loans {
		fmt.Printf("%-8s %-8s %-8s %-12s %-12s %-10s %s\n",
			l.ID, l.UserID, l.BookID,
			l.LoanDate.Format(time.DateOnly), l.DueDate.Format(time.DateOnly),
			l.Status, l.FineAmount.StringFixed(2))
	}
}

// ------------------ Requests ------------------

func handlePending(s *session) {
	printRequests(s.mgr.ListRequests(library.RequestFilter{Status: library.RequestPending}))
}

func printRequests(requests []library.BorrowRequest) {
	if len(requests) == 0 {
		fmt.Println("No requests.")
		return
	}
	fmt.Printf("%-8s %-20s %-8s %-12s %-12s %-10s %s\n", "ID", "User", "Book", "Requested", "Return by", "Status", "Notes")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range requests {
		fmt.Printf("%-8s %-20s %-8s %-12s %-12s %-10s %s\n",
			r.ID, truncateString(r.Username, 20), r.BookID,
			r.RequestDate.Format(time.DateOnly), r.DesiredReturnDate.Format(time.DateOnly),
			r.Status, r.Notes)
	}
}

func handleApprove(s *session) {
	id, ok := s.ask("Request ID: ")
	if !ok {
		return
	}
	_, loan, err := s.mgr.ApproveRequest(s.actx(), id, s.user.ID)
	if err != nil {
		report("approving", err)
		return
	}
	fmt.Printf("Approved; loan %s due %s.\n", loan.ID, loan.DueDate.Format("2006-01-02 15:04"))
}

func handleDeny(s *session) {
	id, ok := s.ask("Request ID: ")
	if !ok {
		return
	}
	reason, ok := s.ask("Reason (optional): ")
	if !ok {
		return
	}
	if _, err := s.mgr.DenyRequest(s.actx(), id, s.user.ID, reason); err != nil {
		report("denying", err)
		return
	}
	fmt.Printf("Request %s denied.\n", id)
}

// ------------------ Users ------------------

func handleListUsers(s *session) {
	printUsers(s.mgr.ListUsers())
}

func handleSearchUsers(s *session) {
	q, ok := s.ask("Search: ")
	if !ok {
		return
	}
	printUsers(s.mgr.SearchUsers(q))
}

func printUsers(users []library.User) {
	if len(users) == 0 {
		fmt.Println("No users.")
		return
	}
	fmt.Printf("%-8s %-22s %-20s %-28s %-7s %-8s %s\n", "ID", "Name", "Username", "Email", "Role", "Active", "Loans")
	fmt.Println(strings.Repeat("-", 110))
	for _, u := range users {
		fmt.Printf("%-8s %-22s %-20s %-28s %-7s %-8t %d/%d\n",
			u.ID, truncateString(u.Name, 22), truncateString(u.Username, 20), truncateString(u.Email, 28),
			u.Role, u.Active, u.BorrowedCount(), u.BorrowLimit)
	}
}

func handleUpdateUser(s *session) {
	id, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	u, err := s.mgr.GetUser(id)
	if err != nil {
		report("updating user", err)
		return
	}
	fmt.Println("Press Enter to keep the current value.")
	var up library.UserUpdate
	if v, ok := s.ask(fmt.Sprintf("Role (admin/member) [%s]: ", u.Role)); !ok {
		return
	} else if v != "" {
		role := library.Role(strings.ToLower(v))
		up.Role = &role
	}
	if v, ok := s.ask(fmt.Sprintf("Borrow limit [%d]: ", u.BorrowLimit)); !ok {
		return
	} else if v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Printf("Invalid number: %s\n", v)
			return
		}
		up.BorrowLimit = &n
	}
	if v, ok := s.ask(fmt.Sprintf("Active (yes/no) [%t]: ", u.Active)); !ok {
		return
	} else if v != "" {
		active := strings.HasPrefix(strings.ToLower(v), "y")
		up.Active = &active
	}
	if err := s.mgr.UpdateUser(s.actx(), id, up); err != nil {
		report("updating user", err)
		return
	}
	fmt.Printf("Updated user %s.\n", id)
}

func handleRemoveUser(s *session) {
	id, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	if id == s.user.ID {
		fmt.Println("You cannot remove your own account.")
		return
	}
	if err := s.mgr.RemoveUser(s.actx(), id); err != nil {
		report("removing user", err)
		return
	}
	fmt.Printf("Removed user %s.\n", id)
}

func handleResetPassword(s *session) {
	id, ok := s.ask("User ID: ")
	if !ok {
		return
	}
	u, err := s.mgr.GetUser(id)
	if err != nil {
		report("resetting password", err)
		return
	}
	password, err := s.readPassword(fmt.Sprintf("New password for %s: ", u.Name))
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if err := s.mgr.SetPassword(s.actx(), id, password); err != nil {
		report("resetting password", err)
		return
	}
	fmt.Printf("Password updated for %s.\n", u.Name)
}

// ------------------ Reports ------------------

func handleReport(s *session) {
	printSummary(s.mgr.Summary())
}

func handleAudit(s *session) {
	entity, ok := s.ask("Entity (book, category, loan, request, user or blank): ")
	if !ok {
		return
	}
	id, ok := s.ask("Record ID (blank for all): ")
	if !ok {
		return
	}
	entries, err := s.mgr.AuditTrail(s.ctx, strings.ToLower(entity), id)
	if err != nil {
		report("reading audit trail", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return
	}
	fmt.Printf("%-20s %-9s %-8s %-10s %-8s %s\n", "When", "Entity", "ID", "Action", "By", "Detail")
	fmt.Println(strings.Repeat("-", 80))
	for _, e := range entries {
		fmt.Printf("%-20s %-9s %-8s %-10s %-8s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Entity, e.EntityID, e.Action, e.PerformedBy, e.Detail)
	}
}
