package accounts_test

import (
	"errors"
	"os"
	"testing"

	"path/filepath"

	"github.com/sheperdglobal-alt/imap-email-filter/accounts"
)

// Functions

// TestStoreRoundTrip executes a black-box test on adding,
// updating, and deleting accounts backed by a JSON file.
func TestStoreRoundTrip(t *testing.T) {

	file := filepath.Join(t.TempDir(), "accounts.json")

	store, err := accounts.NewStore(file)
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success creating store but received: '%s'\n", err.Error())
	}

	if len(store.List()) != 0 {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected empty store but received '%d' accounts.\n", len(store.List()))
	}

	acc := accounts.Account{
		Email:    "user@example.com",
		Password: "sesame",
		IMAPHost: "mail.example.com",
		IMAPPort: 993,
		IMAPSSL:  true,
	}

	err = store.Add(acc)
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success adding account but received: '%s'\n", err.Error())
	}

	// A second add under the same email has to be refused.
	err = store.Add(acc)
	if errors.Is(err, accounts.ErrAccountExists) != true {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected ErrAccountExists adding duplicate account but received: '%v'\n", err)
	}

	// Reload from disk and check persistence.
	reloaded, err := accounts.NewStore(file)
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success reloading store but received: '%s'\n", err.Error())
	}

	found, ok := reloaded.Lookup("user@example.com")
	if ok != true {
		t.Fatal("[accounts.TestStoreRoundTrip] Expected to find reloaded account but did not.")
	}

	if found.IMAPHost != "mail.example.com" {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected host '%s' but received '%s'\n", "mail.example.com", found.IMAPHost)
	}

	// Update the upstream coordinates.
	acc.IMAPHost = "mail2.example.com"

	err = reloaded.Update(acc)
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success updating account but received: '%s'\n", err.Error())
	}

	found, _ = reloaded.Lookup("user@example.com")
	if found.IMAPHost != "mail2.example.com" {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected host '%s' but received '%s'\n", "mail2.example.com", found.IMAPHost)
	}

	// Updating an unknown account has to be refused.
	err = reloaded.Update(accounts.Account{Email: "nobody@example.com"})
	if errors.Is(err, accounts.ErrNoSuchAccount) != true {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected ErrNoSuchAccount updating unknown account but received: '%v'\n", err)
	}

	// Delete and verify absence.
	present, err := reloaded.Delete("user@example.com")
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success deleting account but received: '%s'\n", err.Error())
	}

	if present != true {
		t.Fatal("[accounts.TestStoreRoundTrip] Expected deleted account to have been present but it was not.")
	}

	if _, ok := reloaded.Lookup("user@example.com"); ok {
		t.Fatal("[accounts.TestStoreRoundTrip] Expected account to be gone but it was found.")
	}

	// Deleting a missing account is not an error.
	present, err = reloaded.Delete("user@example.com")
	if err != nil {
		t.Fatalf("[accounts.TestStoreRoundTrip] Expected success deleting missing account but received: '%s'\n", err.Error())
	}

	if present {
		t.Fatal("[accounts.TestStoreRoundTrip] Expected missing account not to be present but it was.")
	}
}

// TestStoreSaveFailureRollback executes a black-box test
// on mutations whose write-back fails. The in-memory
// accounts have to stay as they were before the mutation.
func TestStoreSaveFailureRollback(t *testing.T) {

	dir := filepath.Join(t.TempDir(), "vanishing")

	err := os.Mkdir(dir, 0700)
	if err != nil {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected success creating directory but received: '%s'\n", err.Error())
	}

	store, err := accounts.NewStore(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected success creating store but received: '%s'\n", err.Error())
	}

	acc := accounts.Account{
		Email:    "user@example.com",
		Password: "sesame",
		IMAPHost: "mail.example.com",
		IMAPPort: 993,
		IMAPSSL:  true,
	}

	err = store.Add(acc)
	if err != nil {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected success adding account but received: '%s'\n", err.Error())
	}

	// Every write-back fails from here on.
	err = os.RemoveAll(dir)
	if err != nil {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected success removing directory but received: '%s'\n", err.Error())
	}

	err = store.Add(accounts.Account{Email: "second@example.com"})
	if err == nil {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected adding account to fail but it did not.")
	}

	if len(store.List()) != 1 {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected 1 account after failed add but received '%d'.\n", len(store.List()))
	}

	changed := acc
	changed.Password = "changed"

	err = store.Update(changed)
	if err == nil {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected updating account to fail but it did not.")
	}

	found, ok := store.Lookup("user@example.com")
	if ok != true {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected account to survive failed update but it did not.")
	}

	if found.Password != "sesame" {
		t.Fatalf("[accounts.TestStoreSaveFailureRollback] Expected password '%s' after failed update but received '%s'\n", "sesame", found.Password)
	}

	present, err := store.Delete("user@example.com")
	if err == nil {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected deleting account to fail but it did not.")
	}

	if present != true {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected delete to report a present account but it did not.")
	}

	if _, ok := store.Lookup("user@example.com"); ok != true {
		t.Fatal("[accounts.TestStoreSaveFailureRollback] Expected account to survive failed delete but it did not.")
	}
}
