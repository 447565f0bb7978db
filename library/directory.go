package library

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Directory owns user accounts and their borrow counters.
//
// Directory is not safe for concurrent use; LibraryManager serializes access.
type Directory struct {
	users        map[string]*User
	order        []string
	defaultLimit int
	hashCost     int
}

// NewDirectory returns an empty directory. Users registered without a borrow
// limit get defaultLimit.
func NewDirectory(defaultLimit int) *Directory {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPolicy().BorrowLimit
	}
	return &Directory{
		users:        make(map[string]*User),
		defaultLimit: defaultLimit,
		hashCost:     bcrypt.DefaultCost,
	}
}

// Register adds a new, active account.
func (d *Directory) Register(u User, now time.Time) error {
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
	if u.ID == "" || u.Name == "" {
		return fmt.Errorf("%w: user id and name are required", ErrValidation)
	}
	if _, ok := d.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s", ErrDuplicateID, u.ID)
	}
	if !emailPattern.MatchString(u.Email) {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, u.Email)
	}
	if u.Username == "" {
		u.Username = u.Email
	}
	if err := d.checkUnique("", u.Email, u.Username); err != nil {
		return err
	}
	switch u.Role {
	case "":
		u.Role = RoleMember
	case RoleAdmin, RoleMember:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrValidation, u.Role)
	}
	if u.BorrowLimit < 0 {
		return fmt.Errorf("%w: borrow limit cannot be negative", ErrValidation)
	}
	if u.BorrowLimit == 0 {
		u.BorrowLimit = d.defaultLimit
	}
	u.Active = true
	u.ActiveLoans = make(map[string]string)
	u.TotalLoans = 0
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = now
	}
	d.users[u.ID] = &u
	d.order = append(d.order, u.ID)
	return nil
}

// checkUnique rejects an email or username that another account already uses
// as either its email or its username. Logins and requests resolve against
// both fields, so one name must never point at two accounts.
func (d *Directory) checkUnique(selfID, email, username string) error {
	for _, other := range d.users {
		if other.ID == selfID {
			continue
		}
		if email != "" && (strings.EqualFold(other.Email, email) || strings.EqualFold(other.Username, email)) {
			return fmt.Errorf("%w: email %s already registered", ErrDuplicateID, email)
		}
		if username != "" && (strings.EqualFold(other.Username, username) || strings.EqualFold(other.Email, username)) {
			return fmt.Errorf("%w: username %s already taken", ErrDuplicateID, username)
		}
	}
	return nil
}

// Update edits profile fields. Borrow counters are never edited here.
func (d *Directory) Update(id string, up UserUpdate) error {
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	next := u.clone()
	if up.Name != nil {
		next.Name = strings.TrimSpace(*up.Name)
		if next.Name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
	}
	if up.Email != nil {
		next.Email = strings.ToLower(strings.TrimSpace(*up.Email))
		if !emailPattern.MatchString(next.Email) {
			return fmt.Errorf("%w: invalid email %q", ErrValidation, next.Email)
		}
	}
	if up.Username != nil {
		next.Username = strings.TrimSpace(*up.Username)
		if next.Username == "" {
			return fmt.Errorf("%w: username cannot be empty", ErrValidation)
		}
	}
	if up.Phone != nil {
		next.Phone = strings.TrimSpace(*up.Phone)
	}
	if up.Role != nil {
		if *up.Role != RoleAdmin && *up.Role != RoleMember {
			return fmt.Errorf("%w: unknown role %q", ErrValidation, *up.Role)
		}
		next.Role = *up.Role
	}
	if up.Active != nil {
		next.Active = *up.Active
	}
	if up.BorrowLimit != nil {
		if *up.BorrowLimit <= 0 {
			return fmt.Errorf("%w: borrow limit must be positive", ErrValidation)
		}
		next.BorrowLimit = *up.BorrowLimit
	}
	if err := d.checkUnique(id, next.Email, next.Username); err != nil {
		return err
	}
	*u = next
	return nil
}

// Remove deletes an account that holds no copies.
func (d *Directory) Remove(id string) error {
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if len(u.ActiveLoans) > 0 {
		return fmt.Errorf("%w: user %s has %d open loans", ErrConflict, id, len(u.ActiveLoans))
	}
	delete(d.users, id)
	filtered := d.order[:0]
	for _, item := range d.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	d.order = filtered
	return nil
}

// CanBorrowMore reports whether the user is active and under their limit.
func (d *Directory) CanBorrowMore(id string) (bool, error) {
	u, ok := d.users[id]
	if !ok {
		return false, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u.Active && len(u.ActiveLoans) < u.BorrowLimit, nil
}

// ResolveUsername maps the identity on a borrow request to a user ID. It
// matches the username first, then the email, both case-insensitively, and
// never falls back to a default account.
func (d *Directory) ResolveUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: empty username", ErrUnresolvedUser)
	}
	for _, match := range []func(*User) bool{
		func(u *User) bool { return strings.EqualFold(u.Username, username) },
		func(u *User) bool { return strings.EqualFold(u.Email, username) },
	} {
		for _, id := range d.order {
			if u := d.users[id]; match(u) {
				return u.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no account for %q", ErrUnresolvedUser, username)
}

// recordBorrow is called by the ledger only, after the copy has been taken.
func (d *Directory) recordBorrow(id, loanID, bookID string) error {
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	u.ActiveLoans[loanID] = bookID
	u.TotalLoans++
	return nil
}

// recordReturn is called by the ledger only. It reports false when the user
// does not hold loanID.
func (d *Directory) recordReturn(id, loanID string) bool {
	u, ok := d.users[id]
	if !ok {
		return false
	}
	if _, ok := u.ActiveLoans[loanID]; !ok {
		return false
	}
	delete(u.ActiveLoans, loanID)
	return true
}

// ------------------ Credentials ------------------

// SetPassword stores a bcrypt hash of password.
func (d *Directory) SetPassword(id, password string) error {
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// Authenticate checks a username (or email) and password pair.
func (d *Directory) Authenticate(login, password string) (User, error) {
	id, err := d.ResolveUsername(login)
	if err != nil {
		return User{}, ErrAuth
	}
	u := d.users[id]
	if !u.Active || u.PasswordHash == "" {
		return User{}, ErrAuth
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrAuth
	}
	return u.clone(), nil
}

// ------------------ Queries ------------------

// User returns a snapshot of a single account.
func (d *Directory) User(id string) (User, error) {
	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u.clone(), nil
}

// Users returns every account in registration order.
func (d *Directory) Users() []User {
	return d.filter(func(*User) bool { return true })
}

// Search matches q case-insensitively against name, username and email.
func (d *Directory) Search(q string) []User {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []User{}
	}
	return d.filter(func(u *User) bool {
		return strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(u.Email, q)
	})
}

func (d *Directory) filter(keep func(*User) bool) []User {
	out := make([]User, 0, len(d.order))
	for _, id := range d.order {
		if u := d.users[id]; keep(u) {
			out = append(out, u.clone())
		}
	}
	return out
}

func (d *Directory) load(u User) {
	if u.ActiveLoans == nil {
		u.ActiveLoans = make(map[string]string)
	}
	if _, ok := d.users[u.ID]; !ok {
		d.order = append(d.order, u.ID)
	}
	d.users[u.ID] = &u
}
