package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"memory": NewMemoryStore(),
	}
}

// =============================================================================
// Session Tests
// =============================================================================

func TestSessionKey(t *testing.T) {
	tests := []struct {
		server, endpoint, want string
	}{
		{"http://localhost:8080", "/login", "http://localhost:8080|/login"},
		{"http://localhost:8080/", "login", "http://localhost:8080|/login"},
		{"https://app", "/auth/signin", "https://app|/auth/signin"},
	}

	for _, tt := range tests {
		if got := SessionKey(tt.server, tt.endpoint); got != tt.want {
			t.Errorf("SessionKey(%q, %q) = %q, want %q", tt.server, tt.endpoint, got, tt.want)
		}
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{CreatedAt: now.Add(-2 * time.Hour)}

	if s.Expired(0, now) {
		t.Error("zero max age should never expire")
	}
	if !s.Expired(time.Hour, now) {
		t.Error("session older than max age should expire")
	}
	if s.Expired(3*time.Hour, now) {
		t.Error("session younger than max age should not expire")
	}
}

func TestStore_Sessions(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			missing, err := store.LoadSession("http://app", "/login")
			if err != nil || missing != nil {
				t.Fatalf("LoadSession() on empty store = %v, %v", missing, err)
			}

			sess := &Session{
				Server:       "http://app/",
				AuthEndpoint: "login",
				Headers:      map[string]string{"Cookie": "JSESSIONID=abc"},
				Status:       302,
			}
			if err := store.SaveSession(sess); err != nil {
				t.Fatalf("SaveSession() error = %v", err)
			}
			if sess.CreatedAt.IsZero() {
				t.Error("SaveSession() should stamp CreatedAt")
			}

			loaded, err := store.LoadSession("http://app", "/login")
			if err != nil {
				t.Fatalf("LoadSession() error = %v", err)
			}
			if loaded == nil || loaded.Headers["Cookie"] != "JSESSIONID=abc" || loaded.Status != 302 {
				t.Fatalf("LoadSession() = %+v", loaded)
			}

			if err := store.DeleteSession("http://app", "/login"); err != nil {
				t.Fatalf("DeleteSession() error = %v", err)
			}
			if gone, _ := store.LoadSession("http://app", "/login"); gone != nil {
				t.Error("session should be gone after DeleteSession()")
			}
		})
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestStore_Runs(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			latest, err := store.Latest()
			if err != nil || latest != nil {
				t.Fatalf("Latest() on empty store = %v, %v", latest, err)
			}

			second := &Run{StartedAt: base.Add(time.Hour), FinishedAt: base.Add(2 * time.Hour), Valid: false}
			first := &Run{
				StartedAt:  base,
				FinishedAt: base.Add(time.Minute),
				Valid:      true,
				Projects: []ProjectRecord{
					{Name: "shop", Valid: true, TotalEndpoints: 4, Reachable: 2, Unreachable: 1, Skipped: 1, Failed: []string{"/missing[GET]"}},
				},
			}

			for _, r := range []*Run{second, first} {
				if err := store.SaveRun(r); err != nil {
					t.Fatalf("SaveRun() error = %v", err)
				}
				if r.ID == "" {
					t.Fatal("SaveRun() should assign an ID")
				}
			}
			if first.ID == second.ID {
				t.Error("run IDs should be unique")
			}

			loaded, err := store.LoadRun(first.ID)
			if err != nil || loaded == nil {
				t.Fatalf("LoadRun() = %v, %v", loaded, err)
			}
			if len(loaded.Projects) != 1 || loaded.Projects[0].Failed[0] != "/missing[GET]" {
				t.Errorf("LoadRun() projects = %+v", loaded.Projects)
			}
			if loaded.Duration() != time.Minute {
				t.Errorf("Duration() = %v, want 1m", loaded.Duration())
			}

			runs, err := store.Runs()
			if err != nil {
				t.Fatalf("Runs() error = %v", err)
			}
			if len(runs) != 2 || runs[0].ID != first.ID {
				t.Errorf("Runs() should be ordered oldest first")
			}

			latest, err = store.Latest()
			if err != nil || latest == nil || latest.ID != second.ID {
				t.Errorf("Latest() = %v, %v, want run %s", latest, err, second.ID)
			}

			if missing, err := store.LoadRun("nope"); err != nil || missing != nil {
				t.Errorf("LoadRun(unknown) = %v, %v", missing, err)
			}
		})
	}
}

// =============================================================================
// BoltStore Tests
// =============================================================================

func TestBoltStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewBoltStore(dbPath)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	if store.Path() != dbPath {
		t.Errorf("Path() = %s, want %s", store.Path(), dbPath)
	}
	if err := store.SaveSession(&Session{Server: "http://app", AuthEndpoint: "/login", Headers: map[string]string{"Cookie": "a=1"}}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	reopened, err := NewBoltStore(dbPath)
	if err != nil {
		t.Fatalf("NewBoltStore() reopen error = %v", err)
	}
	defer reopened.Close()

	sess, err := reopened.LoadSession("http://app", "/login")
	if err != nil || sess == nil || sess.Headers["Cookie"] != "a=1" {
		t.Errorf("session did not survive reopen: %+v, %v", sess, err)
	}
}
