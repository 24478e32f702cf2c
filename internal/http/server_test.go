package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"custody/internal/core"
	"custody/internal/ledger"
	"custody/internal/session"
)

type fakeLedger struct {
	accounts []core.Account
	views    []core.TransactionView
	applied  []ledger.TransactionInput
	applyErr error
	listErr  error
	createFn func(name string, initial core.Money) (core.Account, error)
	resets   int
	resetErr error
}

func (f *fakeLedger) CreateAccount(ctx context.Context, name string, initial core.Money) (core.Account, error) {
	if f.createFn != nil {
		return f.createFn(name, initial)
	}
	a := core.Account{ID: int64(len(f.accounts) + 1), Name: name, Balance: initial}
	f.accounts = append(f.accounts, a)
	return a, nil
}

func (f *fakeLedger) ApplyTransaction(ctx context.Context, in ledger.TransactionInput) (int64, error) {
	if f.applyErr != nil {
		return 0, f.applyErr
	}
	f.applied = append(f.applied, in)
	return int64(len(f.applied)), nil
}

func (f *fakeLedger) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return f.accounts, f.listErr
}

func (f *fakeLedger) ListTransactions(ctx context.Context) ([]core.TransactionView, error) {
	return f.views, f.listErr
}
func (f *fakeLedger) Reset(ctx context.Context) error { f.resets++; return f.resetErr }

type fakeExporter struct {
	path string
	err  error
}

func (f fakeExporter) Export(ctx context.Context) (string, error) { return f.path, f.err }
func (f fakeExporter) Path() string                               { return f.path }

type fakeAttachments struct {
	saved   []string
	removed []string
	saveErr error
}

func (f *fakeAttachments) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	path := "uploads/stored_" + filename
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeAttachments) Remove(ctx context.Context, path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func newTestServer(fl *fakeLedger) *Server {
	return NewServer(":0", fl, fakeExporter{path: "out.xlsx"}, nil, session.NewResetManager(), "")
}

func postForm(srv *Server, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	fl := &fakeLedger{
		accounts: []core.Account{{ID: 1, Name: "Safe", Balance: core.Money{Cents: 100000}}},
		views: []core.TransactionView{
			{ID: 1, Type: core.Deposit, Description: "float", Amount: core.Money{Cents: 100000}, ToAccount: "Safe"},
		},
	}
	srv := newTestServer(fl)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Cash Custody", "Safe", "1000.00", "float"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index body missing %q", want)
		}
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexStorageFailure(t *testing.T) {
	fl := &fakeLedger{listErr: errors.New("db down")}
	srv := newTestServer(fl)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when listing fails, got %d", rr.Code)
	}
}

func TestCreateAccountValidationAndSuccess(t *testing.T) {
	fl := &fakeLedger{}
	srv := newTestServer(fl)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr = postForm(srv, "/accounts", "name=Safe&initial_balance=abc")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad balance, got %d", rr.Code)
	}

	rr = postForm(srv, "/accounts", "name=Safe&initial_balance=1000.00")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}
	if len(fl.accounts) != 1 || fl.accounts[0].Balance.Cents != 100000 {
		t.Fatalf("account not created as expected: %+v", fl.accounts)
	}
}

func TestCreateAccountDuplicateConflict(t *testing.T) {
	fl := &fakeLedger{createFn: func(string, core.Money) (core.Account, error) {
		return core.Account{}, core.ErrDuplicateName
	}}
	srv := newTestServer(fl)

	rr := postForm(srv, "/accounts", "name=Safe")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "already exists") {
		t.Fatalf("expected duplicate message, got: %s", rr.Body.String())
	}
}

func TestCreateTransaction(t *testing.T) {
	fl := &fakeLedger{}
	srv := newTestServer(fl)

	rr := postForm(srv, "/transactions", "type=BOGUS&amount=10")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad type, got %d", rr.Code)
	}

	rr = postForm(srv, "/transactions", "type=DEPOSIT&amount=abc")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad amount, got %d", rr.Code)
	}

	rr = postForm(srv, "/transactions", "type=DEPOSIT&amount=10&date=not-a-date")
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad date, got %d", rr.Code)
	}

	rr = postForm(srv, "/transactions", "type=deposit&amount=50.00&date=2026-08-28&description=cash+in&to_account=2")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(fl.applied) != 1 {
		t.Fatalf("expected 1 applied transaction, got %d", len(fl.applied))
	}
	got := fl.applied[0]
	if got.Type != core.Deposit || got.Amount.Cents != 5000 || got.ToAccountID == nil || *got.ToAccountID != 2 {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.Date.String() != "2026-08-28" {
		t.Fatalf("date not parsed: %s", got.Date)
	}
}

func TestCreateTransactionMissingAccount(t *testing.T) {
	fl := &fakeLedger{applyErr: core.ErrAccountNotFound}
	srv := newTestServer(fl)

	rr := postForm(srv, "/transactions", "type=EXPENSE&amount=10&from_account=99")
	if rr.Code != 422 {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "does not exist") {
		t.Fatalf("expected missing-account message, got: %s", rr.Body.String())
	}
}

func multipartTransaction(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("attachment", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreateTransactionWithAttachment(t *testing.T) {
	fl := &fakeLedger{}
	att := &fakeAttachments{}
	srv := NewServer(":0", fl, fakeExporter{path: "out.xlsx"}, att, session.NewResetManager(), t.TempDir())

	body, ctype := multipartTransaction(t, map[string]string{
		"type": "EXPENSE", "amount": "25.00", "date": "2026-08-28", "from_account": "1",
	}, "receipt.pdf", "pdf bytes")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions", body)
	req.Header.Set("Content-Type", ctype)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(att.saved) != 1 {
		t.Fatalf("expected 1 saved attachment, got %d", len(att.saved))
	}
	if len(fl.applied) != 1 || fl.applied[0].FilePath != att.saved[0] {
		t.Fatalf("attachment path not carried: %+v", fl.applied)
	}
}

func TestAttachmentRemovedWhenLedgerFails(t *testing.T) {
	fl := &fakeLedger{applyErr: errors.New("db down")}
	att := &fakeAttachments{}
	srv := NewServer(":0", fl, fakeExporter{path: "out.xlsx"}, att, session.NewResetManager(), t.TempDir())

	body, ctype := multipartTransaction(t, map[string]string{
		"type": "DEPOSIT", "amount": "5.00", "to_account": "1",
	}, "receipt.png", "png bytes")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/transactions", body)
	req.Header.Set("Content-Type", ctype)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if len(att.removed) != 1 || att.removed[0] != att.saved[0] {
		t.Fatalf("orphan attachment not cleaned up: saved=%v removed=%v", att.saved, att.removed)
	}
}

func TestResetFlow(t *testing.T) {
	fl := &fakeLedger{}
	srv := newTestServer(fl)

	// Confirm without a pending request is rejected.
	rr := postForm(srv, "/reset/confirm", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 without pending reset, got %d", rr.Code)
	}
	if fl.resets != 0 {
		t.Fatalf("reset ran without confirmation")
	}

	// Request then confirm, carrying the session cookie across.
	rr = postForm(srv, "/reset/request", "")
	if rr.Code != 200 {
		t.Fatalf("request status=%d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie on first contact")
	}

	rr2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reset/confirm", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("confirm status=%d: %s", rr2.Code, rr2.Body.String())
	}
	if fl.resets != 1 {
		t.Fatalf("expected 1 reset, got %d", fl.resets)
	}

	// Confirmation is consumed.
	rr3 := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/reset/confirm", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr3, req)
	if rr3.Code != http.StatusConflict {
		t.Fatalf("expected 409 after consumed confirmation, got %d", rr3.Code)
	}
}

func TestResetCancel(t *testing.T) {
	fl := &fakeLedger{}
	srv := newTestServer(fl)

	rr := postForm(srv, "/reset/request", "")
	cookies := rr.Result().Cookies()

	rr2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/reset/cancel", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("cancel status=%d", rr2.Code)
	}

	rr3 := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/reset/confirm", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr3, req)
	if rr3.Code != http.StatusConflict {
		t.Fatalf("expected 409 after cancel, got %d", rr3.Code)
	}
	if fl.resets != 0 {
		t.Fatalf("reset ran after cancel")
	}
}

func TestExportFailure(t *testing.T) {
	fl := &fakeLedger{}
	srv := NewServer(":0", fl, fakeExporter{err: errors.New("disk full")}, nil, session.NewResetManager(), "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
