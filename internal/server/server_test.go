package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/card-scanner/internal/auth"
	"github.com/joseph-ayodele/card-scanner/internal/cards"
	"github.com/joseph-ayodele/card-scanner/internal/export"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/ingest"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
)

type fakeOCR struct{ text string }

func (f *fakeOCR) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	return extract.TextExtractionResult{Text: f.text, SourceType: "IMAGE", Method: "fake", Confidence: 0.9}, nil
}

type downDB struct{}

func (downDB) HealthCheck(context.Context, time.Duration) error { return errors.New("down") }

func newTestServer(t *testing.T, maxUpload int64) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(dir, "web.db")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	store, err := ingest.NewStore(filepath.Join(dir, "uploads"), nil)
	if err != nil {
		t.Fatal(err)
	}
	cardRepo := repository.NewCardRepository(db, nil)
	authSvc := auth.NewService(repository.NewUserRepository(db, nil), repository.NewSessionRepository(db, nil), nil, auth.WithBcryptCost(bcrypt.MinCost))
	cardSvc := cards.NewService(store, &fakeOCR{text: "John Doe\nAcme, Corp\njohn@acme.com\n+1 555 123 4567"}, nil, cardRepo, nil)
	srv, err := New(authSvc, cardSvc, export.NewService(cardRepo, nil), db, Options{MaxUploadBytes: maxUpload}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != to {
		t.Fatalf("got %d -> %q, want 302 -> %q", resp.StatusCode, resp.Header.Get("Location"), to)
	}
}

func uploadBody(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("card_image", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.WriteString(fw, content)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestEndToEnd(t *testing.T) {
	ts := newTestServer(t, 0)
	c := newClient(t)
	form := url.Values{"username": {"alice"}, "password": {"secret1"}}

	resp, err := c.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	expectRedirect(t, resp, "/login")

	resp, _ = c.Get(ts.URL + "/dashboard")
	expectRedirect(t, resp, "/login")

	resp, _ = c.Get(ts.URL + "/register")
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || !strings.Contains(body, `action="/register"`) {
		t.Fatalf("GET /register = %d", resp.StatusCode)
	}

	resp, _ = c.PostForm(ts.URL+"/register", form)
	expectRedirect(t, resp, "/login")

	resp, _ = c.PostForm(ts.URL+"/register", form)
	if body := readBody(t, resp); resp.StatusCode != http.StatusConflict || !strings.Contains(body, "Username already exists") {
		t.Errorf("duplicate register = %d %q", resp.StatusCode, body)
	}

	resp, _ = c.PostForm(ts.URL+"/register", url.Values{"username": {"bo"}, "password": {"x"}})
	if readBody(t, resp); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid register = %d, want 400", resp.StatusCode)
	}

	resp, _ = c.PostForm(ts.URL+"/login", url.Values{"username": {"alice"}, "password": {"nope!!"}})
	if body := readBody(t, resp); resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Invalid credentials") {
		t.Errorf("bad login = %d %q", resp.StatusCode, body)
	}

	resp, _ = c.PostForm(ts.URL+"/login", form)
	expectRedirect(t, resp, "/dashboard")

	resp, _ = c.Get(ts.URL + "/dashboard")
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || !strings.Contains(body, "alice") {
		t.Fatalf("GET /dashboard = %d", resp.StatusCode)
	}

	// no file picked: empty form
	body, ct := uploadBody(t, "", "")
	resp, _ = c.Post(ts.URL+"/dashboard", ct, body)
	if html := readBody(t, resp); resp.StatusCode != http.StatusOK || strings.Contains(html, `id="name"`) {
		t.Errorf("empty upload = %d", resp.StatusCode)
	}

	body, ct = uploadBody(t, "notes.txt", "x")
	resp, _ = c.Post(ts.URL+"/dashboard", ct, body)
	if readBody(t, resp); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("txt upload = %d, want 400", resp.StatusCode)
	}

	body, ct = uploadBody(t, "card.jpg", "img")
	resp, _ = c.Post(ts.URL+"/dashboard", ct, body)
	html := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload = %d", resp.StatusCode)
	}
	for _, want := range []string{`<dd id="name">John Doe</dd>`, `<dd id="email">john@acme.com</dd>`, `<dd id="phone">&#43;1 555 123 4567</dd>`} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}

	resp, _ = c.PostForm(ts.URL+"/cards", url.Values{"search": {" acme "}})
	if html := readBody(t, resp); !strings.Contains(html, "John Doe") || !strings.Contains(html, `value="acme"`) {
		t.Errorf("search page missing card or query")
	}
	resp, _ = c.Get(ts.URL + "/cards?search=zzz")
	if html := readBody(t, resp); strings.Contains(html, "John Doe") {
		t.Errorf("search for zzz listed John Doe")
	}

	resp, _ = c.Get(ts.URL + "/export")
	csv := readBody(t, resp)
	if resp.Header.Get("Content-Type") != "text/csv" ||
		!strings.Contains(resp.Header.Get("Content-Disposition"), "visiting_cards.csv") {
		t.Errorf("export headers = %v", resp.Header)
	}
	lines := strings.Split(strings.TrimSuffix(csv, "\n"), "\n")
	if len(lines) != 2 || lines[0] != "Name,Company,Email,Phone,Uploaded On" ||
		!strings.HasPrefix(lines[1], "John Doe,Acme  Corp,john@acme.com,+1 555 123 4567,") {
		t.Errorf("csv = %q", csv)
	}

	resp, _ = c.Get(ts.URL + "/export?from=bad")
	if readBody(t, resp); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("export with bad date = %d", resp.StatusCode)
	}

	resp, _ = c.Get(ts.URL + "/export.xlsx")
	data := readBody(t, resp)
	f, err := excelize.OpenReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("xlsx export unreadable: %v", err)
	}
	rows, _ := f.GetRows("Cards")
	_ = f.Close()
	if len(rows) != 2 || rows[1][0] != "John Doe" {
		t.Errorf("xlsx rows = %v", rows)
	}

	resp, _ = c.Get(ts.URL + "/logout")
	expectRedirect(t, resp, "/login")
	resp, _ = c.Get(ts.URL + "/cards")
	expectRedirect(t, resp, "/login")
}

func TestUsersSeeOnlyTheirCards(t *testing.T) {
	ts := newTestServer(t, 0)
	login := func(name string) *http.Client {
		c := newClient(t)
		form := url.Values{"username": {name}, "password": {"secret1"}}
		resp, _ := c.PostForm(ts.URL+"/register", form)
		readBody(t, resp)
		resp, _ = c.PostForm(ts.URL+"/login", form)
		expectRedirect(t, resp, "/dashboard")
		return c
	}
	alice, bob := login("alice"), login("bob")

	body, ct := uploadBody(t, "card.png", "img")
	resp, _ := alice.Post(ts.URL+"/dashboard", ct, body)
	readBody(t, resp)

	resp, _ = bob.Get(ts.URL + "/export")
	if csv := readBody(t, resp); strings.Contains(csv, "John Doe") {
		t.Errorf("bob's export contains alice's card: %q", csv)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, 1024)
	c := newClient(t)
	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	resp, _ := c.PostForm(ts.URL+"/register", form)
	readBody(t, resp)
	resp, _ = c.PostForm(ts.URL+"/login", form)
	readBody(t, resp)

	body, ct := uploadBody(t, "big.png", strings.Repeat("x", 4096))
	resp, err := c.Post(ts.URL+"/dashboard", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if readBody(t, resp); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload = %d, want 413", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 0)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != `{"status":"ok"}` {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}

	srv, err := New(nil, nil, nil, downDB{}, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz with db down = %d, want 503", rec.Code)
	}
}
