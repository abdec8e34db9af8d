package session

import "testing"

func TestPersistentKey(t *testing.T) {
	key, err := PersistentKey(ScopeUser, "preferences")
	if err != nil {
		t.Fatalf("PersistentKey failed: %v", err)
	}
	if key != "user:preferences" {
		t.Errorf("expected user:preferences, got %q", key)
	}

	key, err = PersistentKey(ScopeApp, "prompt_version")
	if err != nil {
		t.Fatalf("PersistentKey failed: %v", err)
	}
	if key != "app:prompt_version" {
		t.Errorf("expected app:prompt_version, got %q", key)
	}

	if _, err := PersistentKey("global", "x"); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestKeyScope(t *testing.T) {
	cases := []struct {
		key    string
		scope  Scope
		scoped bool
	}{
		{"user:preferences", ScopeUser, true},
		{"app:prompt_version", ScopeApp, true},
		{"status", "", false},
		{"username", "", false}, // prefix requires the colon
	}

	for _, tc := range cases {
		scope, ok := KeyScope(tc.key)
		if ok != tc.scoped || scope != tc.scope {
			t.Errorf("KeyScope(%q) = (%q, %v), want (%q, %v)",
				tc.key, scope, ok, tc.scope, tc.scoped)
		}
	}
}

func TestSplitPersistent(t *testing.T) {
	local, userScoped, appScoped := splitPersistent(map[string]any{
		"status":          "running",
		"user:prefs":      "dark",
		"app:model":       "gemini-pro",
		"user:last_login": "today",
	})

	if len(local) != 1 || local["status"] != "running" {
		t.Errorf("unexpected local state: %v", local)
	}
	if len(userScoped) != 2 {
		t.Errorf("expected 2 user-scoped keys, got %v", userScoped)
	}
	if len(appScoped) != 1 || appScoped["app:model"] != "gemini-pro" {
		t.Errorf("unexpected app-scoped state: %v", appScoped)
	}
}

func TestSession_Clone(t *testing.T) {
	sess := &Session{ID: "s1", State: map[string]any{"k": "v"}}
	clone := sess.Clone()

	clone.Set("k", "changed")
	if sess.State["k"] != "v" {
		t.Error("mutating a clone must not affect the original")
	}
}

func TestSession_SetNilState(t *testing.T) {
	sess := &Session{ID: "s1"}
	sess.Set("k", 1)

	if v, ok := sess.Get("k"); !ok || v != 1 {
		t.Errorf("expected 1, got %v (ok=%v)", v, ok)
	}
}
