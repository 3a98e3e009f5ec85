package accounts

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"encoding/json"
)

// Variables

// Errors the store answers mutations with, inspected by
// the HTTP surface to choose response codes.
var (
	ErrAccountExists = errors.New("account with this email already exists")
	ErrNoSuchAccount = errors.New("no account with this email")
)

// Structs

// Account is one mail account known to the proxy
// together with the coordinates of the real upstream
// IMAP server holding its mailboxes.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IMAPHost string `json:"imap_host"`
	IMAPPort uint16 `json:"imap_port"`
	IMAPSSL  bool   `json:"imap_ssl"`
}

// Store provides the account records backed by a JSON
// file on disk. Every mutation is written back to the
// file immediately, a mutation whose write-back fails
// is rolled back so that memory and file never diverge.
// The store is safe for concurrent use by the HTTP
// surface and proxy sessions.
type Store struct {
	lock     sync.RWMutex
	file     string
	accounts []Account
}

// Functions

// NewStore reads in the JSON accounts file at supplied
// location. A missing file yields an empty store, the
// file is created on first save.
func NewStore(file string) (*Store, error) {

	store := &Store{
		file:     file,
		accounts: make([]Account, 0, 8),
	}

	data, err := os.ReadFile(file)
	if err != nil {

		if os.IsNotExist(err) {
			return store, nil
		}

		return nil, fmt.Errorf("failed to read in accounts file at '%s' with: %v", file, err)
	}

	err = json.Unmarshal(data, &store.accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse accounts file at '%s' with: %v", file, err)
	}

	return store, nil
}

// List returns a snapshot of all known accounts.
func (s *Store) List() []Account {

	s.lock.RLock()
	defer s.lock.RUnlock()

	accs := make([]Account, len(s.accounts))
	copy(accs, s.accounts)

	return accs
}

// Lookup returns the account registered under supplied
// email address. The second return value reports whether
// such an account exists.
func (s *Store) Lookup(email string) (Account, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, acc := range s.accounts {

		if acc.Email == email {
			return acc, true
		}
	}

	return Account{}, false
}

// Add appends a new account and persists the store.
// An account under the same email address must not
// exist yet.
func (s *Store) Add(acc Account) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, existing := range s.accounts {

		if existing.Email == acc.Email {
			return ErrAccountExists
		}
	}

	s.accounts = append(s.accounts, acc)

	err := s.save()
	if err != nil {
		s.accounts = s.accounts[:(len(s.accounts) - 1)]
		return err
	}

	return nil
}

// Update replaces the stored account carrying the same
// email address and persists the store.
func (s *Store) Update(acc Account) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	for i, existing := range s.accounts {

		if existing.Email == acc.Email {

			prev := s.accounts[i]
			s.accounts[i] = acc

			err := s.save()
			if err != nil {
				s.accounts[i] = prev
				return err
			}

			return nil
		}
	}

	return ErrNoSuchAccount
}

// Delete removes the account registered under supplied
// email address, persists the store, and reports whether
// an account was present.
func (s *Store) Delete(email string) (bool, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	for i, existing := range s.accounts {

		if existing.Email == email {

			prev := make([]Account, len(s.accounts))
			copy(prev, s.accounts)

			s.accounts = append(s.accounts[:i], s.accounts[(i+1):]...)

			err := s.save()
			if err != nil {
				s.accounts = prev
				return true, err
			}

			return true, nil
		}
	}

	return false, nil
}

// save writes the accounts list back to disk. Callers
// must hold the write lock.
func (s *Store) save() error {

	data, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize accounts with: %v", err)
	}

	err = os.WriteFile(s.file, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write accounts file at '%s' with: %v", s.file, err)
	}

	return nil
}
