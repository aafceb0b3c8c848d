package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(now time.Time) (*Limiter, *time.Time) {
	current := now
	l := NewLimiter(NewMemoryStore())
	l.now = func() time.Time { return current }
	return l, &current
}

func TestCheck_SequenceUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		result := l.Check("key-a", 3)
		if !result.Allowed {
			t.Fatalf("call %d: denied, want allowed", i)
		}
		if result.Remaining != want {
			t.Errorf("call %d: remaining = %d, want %d", i, result.Remaining, want)
		}
		if !result.Limited {
			t.Errorf("call %d: Limited = false, want true", i)
		}
	}

	result := l.Check("key-a", 3)
	if result.Allowed {
		t.Fatal("fourth call allowed, want denied")
	}
	if result.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", result.Remaining)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > Window {
		t.Errorf("RetryAfter = %v, want in (0, %v]", result.RetryAfter, Window)
	}
}

func TestCheck_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		if result := l.Check("key-a", 2); !result.Allowed {
			t.Fatalf("call %d denied", i)
		}
	}
	if result := l.Check("key-a", 2); result.Allowed {
		t.Fatal("third call allowed inside window")
	}

	*now = now.Add(Window + time.Second)
	result := l.Check("key-a", 2)
	if !result.Allowed {
		t.Fatal("call after window denied")
	}
	if result.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", result.Remaining)
	}
}

func TestCheck_RetryAfterRoundsUp(t *testing.T) {
	l, now := newTestLimiter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	l.Check("key-a", 1)
	*now = now.Add(500 * time.Millisecond)

	result := l.Check("key-a", 1)
	if result.Allowed {
		t.Fatal("expected denial")
	}
	if result.RetryAfter != Window {
		t.Errorf("RetryAfter = %v, want %v", result.RetryAfter, Window)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	l.Check("key-a", 1)
	if result := l.Check("key-a", 1); result.Allowed {
		t.Fatal("key-a second call allowed")
	}
	if result := l.Check("key-b", 1); !result.Allowed {
		t.Fatal("key-b first call denied")
	}
}

func TestCheck_NoLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	for _, limit := range []int{0, -1} {
		for i := 0; i < 100; i++ {
			result := l.Check("key-a", limit)
			if !result.Allowed {
				t.Fatalf("limit %d call %d denied", limit, i)
			}
			if result.Limited {
				t.Fatalf("limit %d: Limited = true, want false", limit)
			}
		}
	}
}

func TestMemoryStore_PutEmptyDeletes(t *testing.T) {
	s := NewMemoryStore()
	s.Put("key", []time.Time{time.Now()})
	s.Put("key", nil)
	if got := s.Timestamps("key"); got != nil {
		t.Errorf("Timestamps() = %v, want nil", got)
	}
}
