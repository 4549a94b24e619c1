package adminhttp

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"ichat/internal/audit"
	"ichat/internal/roster"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestHandleHealth(t *testing.T) {
	r := roster.New()
	r.Add("alice", addr(4000), false)
	s := New(r, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Clients != 1 || resp.Status != "ok" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestHandleRosterListsEntries(t *testing.T) {
	r := roster.New()
	r.Add("alice", addr(4001), false)
	r.Add("root", addr(6666), true)
	s := New(r, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/roster", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var resp RosterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 entries, got %d", resp.Count)
	}
}

func TestAuditRouteAbsentWithoutLog(t *testing.T) {
	s := New(roster.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no audit log wired, got %d", rec.Code)
	}
}

func TestAuditRoutePresentWithLog(t *testing.T) {
	log, err := audit.Open(":memory:")
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer log.Close()
	log.LogKick("root", "alice")

	s := New(roster.New(), log)
	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []AuditEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Target != "alice" {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}
}
