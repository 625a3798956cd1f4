package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestThrottle_BurstThenDeny(t *testing.T) {
	th := NewThrottle(1, 2, time.Minute)

	if !th.Allow("user-1") {
		t.Fatal("first event should pass")
	}
	if !th.Allow("user-1") {
		t.Fatal("second event within burst should pass")
	}
	if th.Allow("user-1") {
		t.Fatal("third immediate event should be denied")
	}
}

func TestThrottle_KeysAreIndependent(t *testing.T) {
	th := NewThrottle(1, 1, time.Minute)

	if !th.Allow("user-1") {
		t.Fatal("user-1 first event should pass")
	}
	if th.Allow("user-1") {
		t.Fatal("user-1 second event should be denied")
	}
	if !th.Allow("user-2") {
		t.Fatal("user-2 must not be affected by user-1's bucket")
	}
}

func TestThrottle_EvictsIdleBuckets(t *testing.T) {
	th := NewThrottle(1, 1, 20*time.Millisecond)

	th.Allow("idle-user")
	if th.Len() != 1 {
		t.Fatalf("buckets: got %d, want 1", th.Len())
	}

	time.Sleep(40 * time.Millisecond)
	th.Allow("fresh-user") // triggers the sweep
	if th.Len() != 1 {
		t.Fatalf("buckets after sweep: got %d, want 1", th.Len())
	}
}

func TestThrottle_Middleware(t *testing.T) {
	th := NewThrottle(1, 1, time.Minute)
	handler := th.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/abc", nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("42"); code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", code)
	}
	if code := do("42"); code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", code)
	}
	// A different user is unaffected.
	if code := do("43"); code != http.StatusOK {
		t.Fatalf("other user: got %d, want 200", code)
	}
}
