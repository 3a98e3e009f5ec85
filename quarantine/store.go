package quarantine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sheperdglobal-alt/imap-email-filter/inspect"
)

// Constants

// Dispositions a held message can carry. A message
// starts out held and leaves that state at most once.
const (
	StatusHeld      = "held"
	StatusApproved  = "approved"
	StatusDiscarded = "discarded"
)

// Variables

// Errors a store operation can answer with, inspected by
// the HTTP surface to choose response codes.
var (
	ErrUnknownDisposition = errors.New("unknown disposition")
	ErrNoSuchMessage      = errors.New("no quarantined message with this identifier")
	ErrAlreadyDecided     = errors.New("message already left held state")
)

// Structs

// Message is one intercepted APPEND upload kept back
// from the upstream server. Raw holds the message
// octets exactly as received from the client and is
// immutable after insertion.
type Message struct {
	ID     string
	Meta   *inspect.Meta
	Raw    []byte
	Status string
}

// Store is the process wide in-memory quarantine. It
// is shared between all proxy sessions and the HTTP
// surface and safe for concurrent use.
type Store struct {
	lock     sync.RWMutex
	messages map[string]*Message
}

// Functions

// NewStore initializes an empty quarantine store.
func NewStore() *Store {

	return &Store{
		messages: make(map[string]*Message),
	}
}

// Insert places a newly intercepted message into the
// store under a fresh random identifier and returns
// that identifier.
func (s *Store) Insert(raw []byte, meta *inspect.Meta) (string, error) {

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate quarantine identifier with: %v", err)
	}

	msg := &Message{
		ID:     id.String(),
		Meta:   meta,
		Raw:    raw,
		Status: StatusHeld,
	}

	s.lock.Lock()
	s.messages[msg.ID] = msg
	s.lock.Unlock()

	return msg.ID, nil
}

// Get returns a snapshot of the message stored under
// supplied identifier. The second return value reports
// whether such a message exists.
func (s *Store) Get(id string) (*Message, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	msg, found := s.messages[id]
	if found != true {
		return nil, false
	}

	snapshot := *msg

	return &snapshot, true
}

// List returns a snapshot of all messages currently in
// the store. No ordering is guaranteed.
func (s *Store) List() []*Message {

	s.lock.RLock()
	defer s.lock.RUnlock()

	msgs := make([]*Message, 0, len(s.messages))

	for _, msg := range s.messages {
		snapshot := *msg
		msgs = append(msgs, &snapshot)
	}

	return msgs
}

// SetStatus transitions the message stored under supplied
// identifier out of held state and returns the updated
// snapshot. Transitions from any other state than held
// are refused, a disposition is decided exactly once.
func (s *Store) SetStatus(id string, status string) (*Message, error) {

	if (status != StatusApproved) && (status != StatusDiscarded) {
		return nil, ErrUnknownDisposition
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	msg, found := s.messages[id]
	if found != true {
		return nil, ErrNoSuchMessage
	}

	if msg.Status != StatusHeld {
		return nil, ErrAlreadyDecided
	}

	msg.Status = status

	snapshot := *msg

	return &snapshot, nil
}

// Remove deletes the message stored under supplied
// identifier and reports whether one was present.
func (s *Store) Remove(id string) bool {

	s.lock.Lock()
	defer s.lock.Unlock()

	_, found := s.messages[id]
	if found {
		delete(s.messages, id)
	}

	return found
}
