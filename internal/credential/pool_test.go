package credential

import (
	"testing"
	"time"

	"github.com/fieldline/bulkpush/internal/models"
)

func TestSelectIsSticky(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111", "token-bbbb-2222", "token-cccc-3333"}, 1)

	first, ok := pool.Select()
	if !ok {
		t.Fatal("expected a credential")
	}

	// Repeated selection without state changes must return the same
	// credential and count zero switches.
	for i := 0; i < 10; i++ {
		c, ok := pool.Select()
		if !ok || c != first {
			t.Fatalf("selection moved on iteration %d: got %v", i, c)
		}
	}
	if pool.Switches() != 0 {
		t.Errorf("switches = %d, want 0", pool.Switches())
	}
}

func TestSelectSkipsInactive(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111", "token-bbbb-2222", "token-cccc-3333"}, 1)

	first, _ := pool.Select()
	pool.Deactivate(first, time.Time{})

	second, ok := pool.Select()
	if !ok {
		t.Fatal("expected a credential")
	}
	if second == first {
		t.Fatal("selected a deactivated credential")
	}
	if pool.Switches() != 1 {
		t.Errorf("switches = %d, want 1", pool.Switches())
	}

	// Sticky on the new credential too.
	again, _ := pool.Select()
	if again != second {
		t.Error("selection moved without a state change")
	}
	if pool.Switches() != 1 {
		t.Errorf("switches = %d, want 1 after sticky reselect", pool.Switches())
	}
}

func TestSelectExhaustedPool(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111"}, 1)
	c, _ := pool.Select()
	pool.Deactivate(c, time.Time{})

	if _, ok := pool.Select(); ok {
		t.Fatal("expected no credential from an exhausted pool")
	}
}

func TestApplyQuotaLowWater(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111", "token-bbbb-2222"}, 10)
	first, _ := pool.Select()

	// Above the mark: stays active.
	pool.ApplyQuota(first, models.QuotaInfo{Remaining: 11, Limit: 5000})
	if pool.ActiveCount() != 2 {
		t.Fatalf("active = %d, want 2", pool.ActiveCount())
	}

	// Exactly at the mark: deactivated. The mark is a reserve, not a
	// floor to run down to.
	pool.ApplyQuota(first, models.QuotaInfo{Remaining: 10, Limit: 5000})
	if pool.ActiveCount() != 1 {
		t.Fatalf("active = %d, want 1 with remaining == low-water mark", pool.ActiveCount())
	}

	c, ok := pool.Select()
	if !ok || c == first {
		t.Error("selection did not move off the low-quota credential")
	}
}

func TestApplyQuotaReactivatesParkedCredential(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111"}, 5)
	c, _ := pool.Select()

	// Parked with an unknown reset time: only a fresh quota view can
	// bring it back.
	pool.Deactivate(c, time.Time{})
	if _, ok := pool.Select(); ok {
		t.Fatal("parked credential still selectable")
	}

	pool.ApplyQuota(c, models.QuotaInfo{Remaining: 4000, Limit: 5000})
	got, ok := pool.Select()
	if !ok || got != c {
		t.Fatal("credential with ample quota not selectable after a successful probe")
	}
}

func TestRecordConsumedDecrements(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111"}, 2)
	c, _ := pool.Select()
	pool.ApplyQuota(c, models.QuotaInfo{Remaining: 4, Limit: 5000})

	pool.RecordConsumed(c)
	// remaining estimate 3, above the mark
	if pool.ActiveCount() != 1 {
		t.Fatalf("active = %d, want 1", pool.ActiveCount())
	}

	pool.RecordConsumed(c)
	// estimate 2, at the low-water mark: parked
	if pool.ActiveCount() != 0 {
		t.Fatalf("active = %d, want 0 at low-water mark", pool.ActiveCount())
	}

	pool.RecordUpload(c, 20*time.Millisecond)
	pool.RecordUpload(c, 40*time.Millisecond)

	snap := pool.Snapshot()
	if snap[0].Remaining != 2 {
		t.Errorf("remaining estimate = %d, want 2", snap[0].Remaining)
	}
	if snap[0].Uploads != 2 {
		t.Errorf("uploads = %d, want 2", snap[0].Uploads)
	}
	if snap[0].AvgLatency != 30*time.Millisecond {
		t.Errorf("avg latency = %v, want 30ms", snap[0].AvgLatency)
	}
}

func TestDropIsPermanent(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111"}, 1)
	c, _ := pool.Select()
	pool.Drop(c)

	// A reset in the past must not resurrect a dropped credential.
	pool.Deactivate(c, time.Now().Add(-time.Hour))
	if n := pool.Reactivate(time.Now()); n != 0 {
		t.Fatalf("reactivated %d dropped credentials", n)
	}
	// Neither must a healthy quota view.
	pool.ApplyQuota(c, models.QuotaInfo{Remaining: 5000, Limit: 5000})
	if _, ok := pool.Select(); ok {
		t.Fatal("dropped credential selected")
	}
}

func TestReactivateAfterReset(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111", "token-bbbb-2222"}, 1)
	first, _ := pool.Select()
	pool.Deactivate(first, time.Now().Add(-time.Minute))

	if n := pool.Reactivate(time.Now()); n != 1 {
		t.Fatalf("reactivated = %d, want 1", n)
	}
	if pool.ActiveCount() != 2 {
		t.Errorf("active = %d, want 2", pool.ActiveCount())
	}

	// Reset still in the future: stays inactive.
	pool.Deactivate(first, time.Now().Add(time.Hour))
	if n := pool.Reactivate(time.Now()); n != 0 {
		t.Errorf("reactivated = %d, want 0 before reset", n)
	}
}

func TestAdvanceMovesCursor(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111", "token-bbbb-2222"}, 1)
	first, _ := pool.Select()

	pool.Advance(first)
	next, _ := pool.Select()
	if next == first {
		t.Fatal("cursor did not move after Advance")
	}

	// One rotation, one switch: Advance moves the cursor, only the
	// Select landing on the new credential counts.
	if pool.Switches() != 1 {
		t.Errorf("switches = %d, want 1 for a single rotation", pool.Switches())
	}

	// Advance on a credential the cursor already left is a no-op.
	pool.Advance(first)
	if again, _ := pool.Select(); again != next {
		t.Error("Advance on a non-cursor credential moved the cursor")
	}
	if pool.Switches() != 1 {
		t.Errorf("switches = %d, want still 1", pool.Switches())
	}
}

func TestAdvanceSingleCredentialNoSelfSwitch(t *testing.T) {
	pool := NewPool([]string{"token-aaaa-1111"}, 1)
	first, _ := pool.Select()

	// Wrapping back to the only credential is not a switch.
	pool.Advance(first)
	again, ok := pool.Select()
	if !ok || again != first {
		t.Fatal("expected the only credential back")
	}
	if pool.Switches() != 0 {
		t.Errorf("switches = %d, want 0 for a single-credential pool", pool.Switches())
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"ghp_abcdefghij1234", "ghp_ab..."},
		{"short", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := Redact(tt.token); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
