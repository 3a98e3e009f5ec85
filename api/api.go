package api

import (
	"errors"
	"net/http"
	"strings"

	"encoding/base64"
	"encoding/json"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/sheperdglobal-alt/imap-email-filter/accounts"
	"github.com/sheperdglobal-alt/imap-email-filter/config"
	"github.com/sheperdglobal-alt/imap-email-filter/quarantine"
)

// Structs

// API serves the quarantine inspection and account
// management surface next to the proxy listeners. It
// shares the quarantine store with the proxy sessions
// and never influences a running session.
type API struct {
	logger   log.Logger
	store    *quarantine.Store
	accounts *accounts.Store
	conf     config.API
}

// quarantineMeta is the JSON view of the metadata
// extracted from a held message.
type quarantineMeta struct {
	Subject string  `json:"subject"`
	Sender  string  `json:"sender"`
	Amount  float64 `json:"amount"`
}

// quarantineRecord is the JSON view of one held message.
// Content carries the raw message octets base64 encoded.
type quarantineRecord struct {
	ID      string         `json:"id"`
	Meta    quarantineMeta `json:"meta"`
	Content string         `json:"content"`
	Status  string         `json:"status"`
}

// Functions

// New takes in all required parameters and returns the
// assembled API surface.
func New(logger log.Logger, store *quarantine.Store, accountsStore *accounts.Store, conf config.API) *API {

	return &API{
		logger:   logger,
		store:    store,
		accounts: accountsStore,
		conf:     conf,
	}
}

// Handler builds the HTTP routing for the API surface,
// wrapped with CORS handling when configured.
func (a *API) Handler() http.Handler {

	mux := http.NewServeMux()

	mux.HandleFunc("/quarantine", a.handleQuarantineList)
	mux.HandleFunc("/quarantine/", a.handleQuarantineItem)
	mux.HandleFunc("/api/config/accounts", a.handleAccountsList)
	mux.HandleFunc("/api/config/account", a.handleAccount)

	if a.conf.EnableCORS {
		return a.withCORS(mux)
	}

	return mux
}

func newQuarantineRecord(msg *quarantine.Message) quarantineRecord {

	return quarantineRecord{
		ID: msg.ID,
		Meta: quarantineMeta{
			Subject: msg.Meta.Subject,
			Sender:  msg.Meta.Sender,
			Amount:  msg.Meta.Amount,
		},
		Content: base64.StdEncoding.EncodeToString(msg.Raw),
		Status:  msg.Status,
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload interface{}) {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		level.Error(a.logger).Log("msg", "failed to encode API response", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, text string) {
	a.writeJSON(w, status, map[string]string{"error": text})
}

// handleQuarantineList answers GET /quarantine with a
// mapping from identifier to full quarantine record.
func (a *API) handleQuarantineList(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records := make(map[string]quarantineRecord)

	for _, msg := range a.store.List() {
		records[msg.ID] = newQuarantineRecord(msg)
	}

	a.writeJSON(w, http.StatusOK, records)
}

// handleQuarantineItem answers GET /quarantine/{id} as
// well as POST /quarantine/{id}/approve and
// POST /quarantine/{id}/delete.
func (a *API) handleQuarantineItem(w http.ResponseWriter, r *http.Request) {

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/quarantine/"), "/"), "/")

	switch {

	case (len(parts) == 1) && (parts[0] != ""):

		if r.Method != http.MethodGet {
			a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		msg, found := a.store.Get(parts[0])
		if found != true {
			a.writeError(w, http.StatusNotFound, "no quarantined message with this identifier")
			return
		}

		a.writeJSON(w, http.StatusOK, newQuarantineRecord(msg))

	case len(parts) == 2:

		if r.Method != http.MethodPost {
			a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var status string

		switch parts[1] {
		case "approve":
			status = quarantine.StatusApproved
		case "delete":
			status = quarantine.StatusDiscarded
		default:
			a.writeError(w, http.StatusBadRequest, "unknown quarantine action")
			return
		}

		msg, err := a.store.SetStatus(parts[0], status)
		if err != nil {

			switch {
			case errors.Is(err, quarantine.ErrNoSuchMessage):
				a.writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, quarantine.ErrAlreadyDecided):
				a.writeError(w, http.StatusConflict, err.Error())
			default:
				a.writeError(w, http.StatusBadRequest, err.Error())
			}

			return
		}

		level.Info(a.logger).Log(
			"msg", "quarantined message decided",
			"id", msg.ID,
			"status", msg.Status,
		)

		a.writeJSON(w, http.StatusOK, newQuarantineRecord(msg))

	default:
		a.writeError(w, http.StatusNotFound, "not found")
	}
}

// handleAccountsList answers GET /api/config/accounts
// with all known accounts, passwords masked.
func (a *API) handleAccountsList(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	masked := a.accounts.List()

	// Passwords never leave the process.
	for i := range masked {
		masked[i].Password = "****"
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": masked})
}

// handleAccount answers POST and PUT /api/config/account
// with an account record in the body, and DELETE with
// the account email as query parameter.
func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {

	switch r.Method {

	case http.MethodPost, http.MethodPut:

		var acc accounts.Account

		err := json.NewDecoder(r.Body).Decode(&acc)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "malformed account payload")
			return
		}

		if acc.Email == "" {
			a.writeError(w, http.StatusBadRequest, "account email is required")
			return
		}

		if r.Method == http.MethodPost {
			err = a.accounts.Add(acc)
		} else {
			err = a.accounts.Update(acc)
		}

		if err != nil {

			switch {
			case errors.Is(err, accounts.ErrAccountExists):
				a.writeError(w, http.StatusConflict, err.Error())
			case errors.Is(err, accounts.ErrNoSuchAccount):
				a.writeError(w, http.StatusNotFound, err.Error())
			default:
				a.writeError(w, http.StatusInternalServerError, err.Error())
			}

			return
		}

		level.Info(a.logger).Log("msg", "account record saved", "email", acc.Email)

		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:

		email := r.URL.Query().Get("email")
		if email == "" {
			a.writeError(w, http.StatusBadRequest, "account email is required")
			return
		}

		present, err := a.accounts.Delete(email)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if present != true {
			a.writeError(w, http.StatusNotFound, "no account with this email")
			return
		}

		level.Info(a.logger).Log("msg", "account record deleted", "email", email)

		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// withCORS answers preflight requests and stamps allowed
// origins onto every response.
func (a *API) withCORS(next http.Handler) http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		origin := r.Header.Get("Origin")

		if (origin != "") && a.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) originAllowed(origin string) bool {

	for _, allowed := range a.conf.AllowedOrigins {

		if (allowed == "*") || (allowed == origin) {
			return true
		}
	}

	return false
}
