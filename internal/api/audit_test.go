package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/audit"
)

// waitForAudit polls /audit until it reports want entries.
func waitForAudit(t *testing.T, h http.Handler, token, query string, want int) audit.ListResult {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		w := do(t, h, http.MethodGet, "/audit"+query, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("audit status = %d; body: %s", w.Code, w.Body.String())
		}
		result := decode[audit.ListResult](t, w)
		if result.Total >= want || time.Now().After(deadline) {
			return result
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAudit_RecordsMutations(t *testing.T) {
	router := testServer(t).buildRouter()
	token := signUp(t, router, "alice", "s3cret")
	id := addDevice(t, router, token, "thermo", "temp")
	do(t, router, http.MethodPost, devicePath(id, "topics"), token, `{"topics":["humidity"]}`)
	do(t, router, http.MethodDelete, devicePath(id, "topics"), token, `{"topics":["humidity"]}`)

	result := waitForAudit(t, router, token, "", 4)
	if result.Total != 4 {
		t.Fatalf("Total = %d, want 4", result.Total)
	}

	// Newest first.
	wantActions := []string{audit.ActionRemoveTopics, audit.ActionAddTopics, audit.ActionRegister, audit.ActionRegister}
	for i, want := range wantActions {
		if result.Entries[i].Action != want {
			t.Errorf("Entries[%d].Action = %q, want %q", i, result.Entries[i].Action, want)
		}
	}
	if result.Entries[3].EntityType != audit.EntityAccount {
		t.Errorf("oldest entry type = %q, want %q", result.Entries[3].EntityType, audit.EntityAccount)
	}

	filtered := waitForAudit(t, router, token, "?entity_type=device&action=register", 1)
	if filtered.Total != 1 || filtered.Entries[0].EntityType != audit.EntityDevice {
		t.Errorf("filtered = %+v, want one device registration", filtered)
	}

	page := waitForAudit(t, router, token, "?limit=1&offset=1", 4)
	if len(page.Entries) != 1 || page.Limit != 1 || page.Offset != 1 {
		t.Errorf("page = %+v, want one entry at offset 1", page)
	}
}

func TestAudit_ScopedToCaller(t *testing.T) {
	router := testServer(t).buildRouter()
	alice := signUp(t, router, "alice", "s3cret")
	bob := signUp(t, router, "bob", "hunter2")
	addDevice(t, router, alice, "thermo", "temp")

	waitForAudit(t, router, alice, "", 2)

	result := waitForAudit(t, router, bob, "", 1)
	if result.Total != 1 {
		t.Fatalf("bob sees %d entries, want 1", result.Total)
	}
	if result.Entries[0].EntityType != audit.EntityAccount {
		t.Errorf("bob's entry = %+v, want his own registration", result.Entries[0])
	}
}

func TestAudit_ChannelFullDrops(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Audit = nil })
	srv.auditAccount(audit.ActionRegister, 1, nil) // no-op without a repository

	srv.auditCh = make(chan *audit.Entry, 1)
	srv.auditAccount(audit.ActionRegister, 1, nil)
	srv.auditDevice(audit.ActionRegister, 2, 9, nil)

	if got := len(srv.auditCh); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	if e := <-srv.auditCh; e.EntityID != "1" || e.Source != "api" || e.CreatedAt.IsZero() {
		t.Errorf("queued entry = %+v", e)
	}
}
