package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"statline/internal/domain"
)

func newAsanaFake(t *testing.T, body string) (*Asana, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/users/120001/workspace_memberships") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	a := &Asana{Token: "pat-test", UserGID: "120001", BaseURL: srv.URL, HTTPClient: srv.Client()}
	return a, srv.Close
}

func TestAsanaRemindsToSetWhenUnset(t *testing.T) {
	a, done := newAsanaFake(t, `{"data":[{"vacation_dates":null}]}`)
	defer done()
	note, err := a.Apply(context.Background(), domain.RemindOutOfOffice{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(note, "set Out of Office manually") {
		t.Fatalf("note %q", note)
	}
}

func TestAsanaAcknowledgesExistingOOO(t *testing.T) {
	a, done := newAsanaFake(t, `{"data":[{"vacation_dates":{"start_on":"2024-03-01","end_on":"2024-03-10"}}]}`)
	defer done()
	note, err := a.Apply(context.Background(), domain.RemindOutOfOffice{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if note != "Out of Office already set" {
		t.Fatalf("note %q", note)
	}
}

func TestAsanaRemindsToClear(t *testing.T) {
	a, done := newAsanaFake(t, `{"data":[{"vacation_dates":{"start_on":"2024-03-01","end_on":null}}]}`)
	defer done()
	note, err := a.Apply(context.Background(), domain.RemindOutOfOffice{Clear: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(note, "clear Out of Office manually") {
		t.Fatalf("note %q", note)
	}
}

func TestAsanaClearWithNothingSet(t *testing.T) {
	a, done := newAsanaFake(t, `{"data":[]}`)
	defer done()
	note, err := a.Apply(context.Background(), domain.RemindOutOfOffice{Clear: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if note != "Out of Office not set" {
		t.Fatalf("note %q", note)
	}
}

func TestAsanaRequiresUserGID(t *testing.T) {
	a := &Asana{Token: "pat-test"}
	_, err := a.Apply(context.Background(), domain.RemindOutOfOffice{})
	if err == nil || !strings.Contains(err.Error(), "asana_user_gid") {
		t.Fatalf("expected config error, got %v", err)
	}
}
