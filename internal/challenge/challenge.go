// Package challenge issues join-gate verification codes and enforces
// their lifecycle: limited attempts, a hard timeout, and exactly one
// outcome per challenge no matter how the timer and a late answer race.
package challenge

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/sched"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrNoChallenge = errors.New("no pending challenge")

type Options struct {
	CodeLength  int
	MaxAttempts int
	Timeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		CodeLength:  6,
		MaxAttempts: 3,
		Timeout:     5 * time.Minute,
	}
}

// Challenge is what the caller renders and sends to the user. Rendering
// is not this package's business.
type Challenge struct {
	Code     string
	IssuedAt int64
}

type VerifyResult struct {
	Success      bool
	AttemptsLeft int
	ShouldRemove bool
}

type pending struct {
	code     string
	attempts int
	issuedAt int64
	timeout  *sched.Handle
}

// ExpireFunc runs when a challenge times out unanswered. It is called
// exactly once per expired challenge, after the entry is gone.
type ExpireFunc func(guildID, userID string)

type Manager struct {
	opts     Options
	sched    *sched.Scheduler
	onExpire ExpireFunc

	mu      sync.Mutex
	pending map[string]*pending
}

func NewManager(s *sched.Scheduler, opts Options, onExpire ExpireFunc) *Manager {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultOptions().CodeLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Manager{
		opts:     opts,
		sched:    s,
		onExpire: onExpire,
		pending:  make(map[string]*pending),
	}
}

func challengeKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// Issue creates a fresh challenge for the user, replacing any pending
// one, and arms the removal timer.
func (m *Manager) Issue(guildID, userID string, now int64) (Challenge, error) {
	code, err := randomCode(m.opts.CodeLength)
	if err != nil {
		return Challenge{}, err
	}

	key := challengeKey(guildID, userID)
	p := &pending{code: code, issuedAt: now}

	m.mu.Lock()
	if old, ok := m.pending[key]; ok && old.timeout != nil {
		old.timeout.Cancel()
	}
	p.timeout = m.sched.Schedule(m.opts.Timeout, func() {
		m.expire(guildID, userID, p)
	})
	m.pending[key] = p
	m.mu.Unlock()

	logging.Debug("challenge issued for %s in guild %s", userID, guildID)
	return Challenge{Code: code, IssuedAt: now}, nil
}

// expire fires on timeout. The entry is cleared only if it is still the
// same challenge; a reissued or already-resolved one is left alone, and
// the removal callback runs at most once.
func (m *Manager) expire(guildID, userID string, p *pending) {
	key := challengeKey(guildID, userID)

	m.mu.Lock()
	cur, ok := m.pending[key]
	if !ok || cur != p {
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	m.mu.Unlock()

	logging.Info("challenge expired for %s in guild %s", userID, guildID)
	if m.onExpire != nil {
		m.onExpire(guildID, userID)
	}
}

// Verify checks an answer. Success clears the challenge and disarms the
// timer; exhausting the attempts clears it and tells the caller to
// remove the user. A late answer after expiry gets ErrNoChallenge.
func (m *Manager) Verify(guildID, userID, answer string) (VerifyResult, error) {
	key := challengeKey(guildID, userID)

	m.mu.Lock()
	p, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return VerifyResult{}, ErrNoChallenge
	}

	if strings.EqualFold(strings.TrimSpace(answer), p.code) {
		delete(m.pending, key)
		m.mu.Unlock()
		if p.timeout != nil {
			p.timeout.Cancel()
		}
		return VerifyResult{Success: true}, nil
	}

	p.attempts++
	left := m.opts.MaxAttempts - p.attempts
	if left <= 0 {
		delete(m.pending, key)
		m.mu.Unlock()
		if p.timeout != nil {
			p.timeout.Cancel()
		}
		return VerifyResult{ShouldRemove: true}, nil
	}
	m.mu.Unlock()
	return VerifyResult{AttemptsLeft: left}, nil
}

// Cancel drops a pending challenge without any outcome, for users who
// leave before answering.
func (m *Manager) Cancel(guildID, userID string) {
	key := challengeKey(guildID, userID)

	m.mu.Lock()
	p, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	m.mu.Unlock()

	if ok && p.timeout != nil {
		p.timeout.Cancel()
	}
}

// PendingCount reports open challenges, for health reporting.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(out), nil
}
