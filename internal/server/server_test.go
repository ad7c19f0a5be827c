package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"statline/internal/adapter"
	"statline/internal/domain"
	"statline/internal/engine"
)

const testSecret = "server-test-secret"

type stubAdapter struct {
	service domain.Service
	err     error

	mu    sync.Mutex
	calls []domain.Intent
}

func (s *stubAdapter) Service() domain.Service { return s.service }

func (s *stubAdapter) Apply(_ context.Context, intent domain.Intent) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, intent)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return "done", nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, adapters ...adapter.Adapter) (*testServer, func()) {
	t.Helper()
	e := engine.New(adapters)
	e.Now = func() time.Time {
		return time.Date(2024, 1, 1, 12, 1, 0, 0, time.Local)
	}
	handler, err := New(Config{Engine: e, Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func mintToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authHeader(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{"Authorization": "Bearer " + mintToken(t, testSecret)}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthExemptFromAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestMissingTokenRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/keywords", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	bad := map[string]string{"Authorization": "Bearer " + mintToken(t, "wrong-secret")}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/keywords", nil, bad)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", res.StatusCode)
	}
}

func TestTokenWithoutSubjectRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + signed}
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/keywords", nil, headers)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subject-less token, got %d", res.StatusCode)
	}
}

func TestSetStatusReturnsReport(t *testing.T) {
	slack := &stubAdapter{service: domain.Slack}
	srv, cleanup := newTestServer(t, slack)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/status", map[string]any{
		"keyword": "lunch",
	}, authHeader(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Keyword != "lunch" {
		t.Fatalf("keyword = %q", report.Keyword)
	}
	if report.Deadline == nil {
		t.Fatalf("expected deadline in report")
	}
	if len(report.Entries) != 1 || report.Entries[0].State != domain.StateOK {
		t.Fatalf("entries = %+v", report.Entries)
	}
	if len(slack.calls) != 2 {
		t.Fatalf("slack calls = %d", len(slack.calls))
	}
}

func TestSetStatusPartialFailureStill200(t *testing.T) {
	slack := &stubAdapter{service: domain.Slack, err: &adapter.Error{
		Service: domain.Slack,
		Kind:    adapter.AuthRejected,
		Err:     errors.New("invalid_auth"),
	}}
	github := &stubAdapter{service: domain.GitHub}
	asana := &stubAdapter{service: domain.Asana}
	srv, cleanup := newTestServer(t, slack, github, asana)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/status", map[string]any{
		"keyword": "vacation",
		"date":    "friday",
	}, authHeader(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if !report.Failed() {
		t.Fatalf("expected failed report")
	}
	if len(report.Entries) != 3 {
		t.Fatalf("entries = %d", len(report.Entries))
	}
	if report.Entries[0].State != domain.StateFailed {
		t.Fatalf("slack entry = %+v", report.Entries[0])
	}
	for _, entry := range report.Entries[1:] {
		if entry.State != domain.StateOK {
			t.Fatalf("sibling entry = %+v", entry)
		}
	}
}

func TestSetStatusBadRequests(t *testing.T) {
	srv, cleanup := newTestServer(t, &stubAdapter{service: domain.Slack})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/status", map[string]any{
		"keyword": "brunch",
	}, authHeader(t))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown keyword status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/status", map[string]any{
		"keyword": "vacation",
		"date":    "someday",
	}, authHeader(t))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date status %d: %s", res.StatusCode, string(data))
	}
}

func TestListKeywords(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/keywords", nil, authHeader(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Items []keywordInfo `json:"items"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Items) != 10 {
		t.Fatalf("keywords = %d", len(out.Items))
	}
	byKeyword := map[string]keywordInfo{}
	for _, item := range out.Items {
		byKeyword[item.Keyword] = item
	}
	if !byKeyword["lunch"].NeedsDeadline {
		t.Fatalf("lunch should need a deadline")
	}
	if byKeyword["zoom"].NeedsDeadline {
		t.Fatalf("zoom should not need a deadline")
	}
	if len(byKeyword["vacation"].Services) != 3 {
		t.Fatalf("vacation services = %v", byKeyword["vacation"].Services)
	}
}

func TestListHistoryEmptyWithoutStore(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/history", nil, authHeader(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Items []domain.HistoryEntry `json:"items"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Items) != 0 {
		t.Fatalf("expected empty history, got %d", len(out.Items))
	}
}
