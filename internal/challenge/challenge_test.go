package challenge

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-theoprotect/internal/sched"
)

func newTestManager(t *testing.T, timeout time.Duration, onExpire ExpireFunc) *Manager {
	t.Helper()
	s := sched.New()
	t.Cleanup(s.Close)
	return NewManager(s, Options{CodeLength: 6, MaxAttempts: 3, Timeout: timeout}, onExpire)
}

func TestIssueGeneratesValidCode(t *testing.T) {
	m := newTestManager(t, time.Minute, nil)

	ch, err := m.Issue("g1", "u1", 1000)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(ch.Code) != 6 {
		t.Fatalf("code length = %d, want 6", len(ch.Code))
	}
	for _, r := range ch.Code {
		if !strings.ContainsRune(codeCharset, r) {
			t.Fatalf("code %q contains %q outside the charset", ch.Code, r)
		}
	}
	if m.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", m.PendingCount())
	}
}

func TestVerifyCorrectAnswer(t *testing.T) {
	m := newTestManager(t, time.Minute, nil)
	ch, _ := m.Issue("g1", "u1", 1000)

	res, err := m.Verify("g1", "u1", strings.ToLower(ch.Code)) // case-insensitive
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Success {
		t.Fatal("correct answer should succeed")
	}
	if m.PendingCount() != 0 {
		t.Fatal("challenge should be cleared on success")
	}

	if _, err := m.Verify("g1", "u1", ch.Code); !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("second verify = %v, want ErrNoChallenge", err)
	}
}

func TestAttemptsExhaustion(t *testing.T) {
	m := newTestManager(t, time.Minute, nil)
	m.Issue("g1", "u1", 1000)

	res, err := m.Verify("g1", "u1", "WRONG1")
	if err != nil || res.AttemptsLeft != 2 {
		t.Fatalf("1st wrong answer = (%+v, %v), want 2 attempts left", res, err)
	}
	res, _ = m.Verify("g1", "u1", "WRONG2")
	if res.AttemptsLeft != 1 {
		t.Fatalf("2nd wrong answer: attempts left = %d, want 1", res.AttemptsLeft)
	}
	res, _ = m.Verify("g1", "u1", "WRONG3")
	if !res.ShouldRemove {
		t.Fatal("3rd wrong answer should mark the user for removal")
	}
	if m.PendingCount() != 0 {
		t.Fatal("exhausted challenge should be cleared")
	}
}

func TestTimeoutFiresExpiry(t *testing.T) {
	var expired int32
	m := newTestManager(t, 20*time.Millisecond, func(guildID, userID string) {
		atomic.AddInt32(&expired, 1)
	})
	m.Issue("g1", "u1", 1000)

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&expired); n != 1 {
		t.Fatalf("expiry callback ran %d times, want exactly once", n)
	}
	if _, err := m.Verify("g1", "u1", "ANY"); !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("verify after expiry = %v, want ErrNoChallenge", err)
	}
}

func TestSuccessDisarmsTimeout(t *testing.T) {
	var expired int32
	m := newTestManager(t, 30*time.Millisecond, func(guildID, userID string) {
		atomic.AddInt32(&expired, 1)
	})
	ch, _ := m.Issue("g1", "u1", 1000)

	if res, err := m.Verify("g1", "u1", ch.Code); err != nil || !res.Success {
		t.Fatalf("Verify = (%+v, %v)", res, err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&expired); n != 0 {
		t.Fatal("expiry must not fire after a successful verification")
	}
}

func TestReissueReplacesChallenge(t *testing.T) {
	var expired int32
	m := newTestManager(t, 30*time.Millisecond, func(guildID, userID string) {
		atomic.AddInt32(&expired, 1)
	})

	first, _ := m.Issue("g1", "u1", 1000)
	second, _ := m.Issue("g1", "u1", 2000)
	if m.PendingCount() != 1 {
		t.Fatalf("pending = %d after reissue, want 1", m.PendingCount())
	}

	if first.Code != second.Code {
		if res, _ := m.Verify("g1", "u1", first.Code); res.Success {
			t.Fatal("the replaced code must not verify")
		}
		// That counted as a wrong attempt; the current code still works.
		if res, err := m.Verify("g1", "u1", second.Code); err != nil || !res.Success {
			t.Fatalf("current code rejected: (%+v, %v)", res, err)
		}
	}

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&expired); n != 0 {
		t.Fatalf("cancelled first timer fired, expiries = %d", n)
	}
}

func TestCancelDropsWithoutOutcome(t *testing.T) {
	var expired int32
	m := newTestManager(t, 20*time.Millisecond, func(guildID, userID string) {
		atomic.AddInt32(&expired, 1)
	})
	m.Issue("g1", "u1", 1000)
	m.Cancel("g1", "u1")

	if m.PendingCount() != 0 {
		t.Fatal("Cancel should drop the pending challenge")
	}
	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&expired) != 0 {
		t.Fatal("a cancelled challenge must not expire")
	}
}

func TestChallengesAreScopedPerGuild(t *testing.T) {
	m := newTestManager(t, time.Minute, nil)
	a, _ := m.Issue("g1", "u1", 1000)
	b, _ := m.Issue("g2", "u1", 1000)

	if res, err := m.Verify("g1", "u1", a.Code); err != nil || !res.Success {
		t.Fatalf("g1 verify: (%+v, %v)", res, err)
	}
	if res, err := m.Verify("g2", "u1", b.Code); err != nil || !res.Success {
		t.Fatalf("g2 verify: (%+v, %v)", res, err)
	}
}
