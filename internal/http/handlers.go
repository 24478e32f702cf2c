package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"custody/internal/core"
	"custody/internal/ledger"
	"custody/internal/session"
)

const maxUploadBytes = 16 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List accounts error", "error", err)
		http.Error(w, "failed to load accounts", http.StatusInternalServerError)
		return
	}
	views, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions error", "error", err)
		http.Error(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	type accountRow struct {
		ID      int64
		Name    string
		Balance string
	}
	type txRow struct {
		Date        string
		Type        string
		Description string
		Amount      string
		From        string
		To          string
		FileName    string
		FileURL     string
	}
	data := struct {
		Today        string
		Accounts     []accountRow
		Transactions []txRow
		ResetPending bool
	}{
		Today:        time.Now().Format("2006-01-02"),
		ResetPending: s.resets.State(s.sessionID(w, r)) == session.AwaitingConfirmation,
	}
	for _, a := range accounts {
		data.Accounts = append(data.Accounts, accountRow{ID: a.ID, Name: a.Name, Balance: a.Balance.String()})
	}
	for _, v := range views {
		row := txRow{
			Date:        v.Date.String(),
			Type:        string(v.Type),
			Description: v.Description,
			Amount:      v.Amount.String(),
			From:        v.FromAccount,
			To:          v.ToAccount,
		}
		if v.FilePath != "" {
			row.FileName = filepath.Base(v.FilePath)
			row.FileURL = "/uploads/" + row.FileName
		}
		data.Transactions = append(data.Transactions, row)
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	balanceStr := strings.TrimSpace(r.Form.Get("initial_balance"))
	if balanceStr == "" {
		balanceStr = "0"
	}
	cents, err := core.ParseDecimalToCents(balanceStr)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid initial balance</div>`))
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), name, core.Money{Cents: cents})
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`<div class="error">An account named &quot;` + template.HTMLEscapeString(name) + `&quot; already exists</div>`))
		return
	case errors.Is(err, core.ErrEmptyName), errors.Is(err, core.ErrInvalidAmount):
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid account data: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Create account error", "error", err, "account_name", name)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to create account</div>`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Account created (#` + strconv.FormatInt(account.ID, 10) + `): ` +
		template.HTMLEscapeString(account.Name) + ` — balance ` + template.HTMLEscapeString(account.Balance.String()) + `</div>`))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	txType, err := core.ParseTransactionType(r.Form.Get("type"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Unknown transaction type</div>`))
		return
	}

	date := core.NewDate(time.Now().Year(), int(time.Now().Month()), time.Now().Day())
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		date, err = core.ParseDate(v)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid date, expected YYYY-MM-DD</div>`))
			return
		}
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("amount")))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid amount</div>`))
		return
	}

	fromID, err := parseAccountRef(r.Form.Get("from_account"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid source account</div>`))
		return
	}
	toID, err := parseAccountRef(r.Form.Get("to_account"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid destination account</div>`))
		return
	}

	// Store the receipt first so its path can ride along with the insert.
	var storedPath string
	if s.attachments != nil {
		file, header, err := r.FormFile("attachment")
		switch {
		case errors.Is(err, http.ErrMissingFile):
			// no receipt attached
		case err != nil:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`<div class="error">Could not read attachment</div>`))
			return
		default:
			storedPath, err = s.attachments.Save(r.Context(), header.Filename, file)
			_ = file.Close()
			if err != nil {
				slog.ErrorContext(r.Context(), "Attachment save error", "error", err, "file_path", header.Filename)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`<div class="error">Failed to store attachment</div>`))
				return
			}
		}
	}

	in := ledger.TransactionInput{
		Date:          date,
		Type:          txType,
		Description:   sanitizeInput(r.Form.Get("description")),
		Amount:        core.Money{Cents: cents},
		FromAccountID: fromID,
		ToAccountID:   toID,
		FilePath:      storedPath,
	}
	id, err := s.ledger.ApplyTransaction(r.Context(), in)
	if err != nil {
		// The ledger write failed, so the stored receipt is an orphan.
		if storedPath != "" && s.attachments != nil {
			if rmErr := s.attachments.Remove(r.Context(), storedPath); rmErr != nil {
				slog.WarnContext(r.Context(), "Orphan attachment cleanup failed", "error", rmErr, "file_path", storedPath)
			}
		}
		switch {
		case errors.Is(err, core.ErrAccountNotFound):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Referenced account does not exist</div>`))
		case errors.Is(err, core.ErrInvalidType), errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`<div class="error">Invalid transaction data: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		default:
			slog.ErrorContext(r.Context(), "Apply transaction error", "error", err, "transaction_type", string(txType), "amount_cents", cents)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Failed to record transaction</div>`))
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Transaction recorded (#` + strconv.FormatInt(id, 10) + `): ` +
		template.HTMLEscapeString(string(txType)) + ` ` + template.HTMLEscapeString(in.Amount.String()) + `</div>`))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.exporter == nil {
		http.Error(w, "export not configured", http.StatusServiceUnavailable)
		return
	}

	path, err := s.exporter.Export(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Export error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to export transactions</div>`))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.resets.Request(s.sessionID(w, r))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="warning">This will permanently delete all accounts and transactions. Confirm or cancel to proceed.</div>`))
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.resets.Confirm(s.sessionID(w, r)) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`<div class="error">No reset pending, request one first</div>`))
		return
	}
	if err := s.ledger.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Ledger reset error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to reset the ledger</div>`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">All accounts and transactions deleted</div>`))
}

func (s *Server) handleResetCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.resets.Cancel(s.sessionID(w, r))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Reset cancelled</div>`))
}

// parseAccountRef parses an optional account id form value. Empty means no
// reference.
func parseAccountRef(v string) (*int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, core.ErrAccountNotFound
	}
	return &id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
