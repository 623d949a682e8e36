// Package engine is the decision core: it routes platform events through
// the detectors, finalizes a verdict synchronously, and hands enforcement
// to an executor so a slow or failing platform call can never stall the
// detection path.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-theoprotect/internal/challenge"
	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/detectors"
	"go-theoprotect/internal/lockdown"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/platform"
	"go-theoprotect/internal/sched"
	"go-theoprotect/internal/textfilter"
	"go-theoprotect/pkg/util"
)

// Persistence is the storage surface the engine writes through. A failing
// store degrades to defaults; detection itself never stops.
type Persistence interface {
	LogAction(*decision.Decision) error
	GuildSettings(guildID string) (*config.GuildSettings, error)
	UpdateReputation(guildID, userID string, delta int) error
}

// Executor runs enforcement tasks after the verdict is finalized. The
// production executor is an async worker pool; tests use a synchronous
// one.
type Executor interface {
	Do(task func())
}

// Notifier receives finalized decisions and issued challenges for
// operator-facing output. Optional.
type Notifier interface {
	NotifyDecision(*decision.Decision)
	NotifyChallenge(guildID, userID string, ch challenge.Challenge)
}

// OwnerLookup resolves a guild's owner, who is exempt from nuke tracking.
type OwnerLookup func(guildID string) string

const (
	spamMuteMs         = 10 * 60 * 1000
	badWordMuteMs      = 10 * 60 * 1000
	badWordLadderReset = 10 * time.Minute
	banPurgeSeconds    = 86400

	repBadWord = -10
	repFlood   = -15
)

type Deps struct {
	Persist   Persistence
	Actions   platform.Actions
	Exec      Executor
	Notify    Notifier
	Owner     OwnerLookup
	Scheduler *sched.Scheduler

	// Heartbeat, when set, is pulsed by the maintenance loop for
	// liveness monitoring.
	Heartbeat func(component string)

	SweepMaxAgeMs int64
	SweepInterval time.Duration
}

type Engine struct {
	deps Deps

	classifier *textfilter.Classifier
	spam       *detectors.SpamDetector
	flood      *detectors.FloodGuard
	raid       *detectors.RaidAnalyzer
	nuke       *detectors.NukeGuard
	lockdown   *lockdown.Controller
	challenge  *challenge.Manager

	mu           sync.Mutex
	wordOffenses map[string]int
	wordResets   map[string]*sched.Handle

	settingsMu    sync.RWMutex
	settingsCache map[string]cachedSettings
}

// settingsCacheTTLMs bounds how stale a cached settings row may get. The
// scoring path reads settings on every event; the cache keeps that read
// off storage.
const settingsCacheTTLMs = 30_000

type cachedSettings struct {
	gs        *config.GuildSettings
	fetchedAt int64
}

func New(deps Deps) *Engine {
	if deps.SweepMaxAgeMs <= 0 {
		deps.SweepMaxAgeMs = 10 * 60 * 1000
	}
	if deps.SweepInterval <= 0 {
		deps.SweepInterval = time.Minute
	}
	e := &Engine{
		deps:         deps,
		classifier:   textfilter.NewClassifier(),
		spam:         detectors.NewSpamDetector(),
		flood:        detectors.NewFloodGuard(),
		raid:         detectors.NewRaidAnalyzer(deps.Scheduler),
		nuke:         detectors.NewNukeGuard(),
		lockdown:     lockdown.New(deps.Actions),
		wordOffenses:  make(map[string]int),
		wordResets:    make(map[string]*sched.Handle),
		settingsCache: make(map[string]cachedSettings),
	}
	e.challenge = challenge.NewManager(deps.Scheduler, challenge.DefaultOptions(), e.onChallengeExpired)
	return e
}

// Lockdown exposes the controller for operator commands.
func (e *Engine) Lockdown() *lockdown.Controller { return e.lockdown }

// Raid exposes the analyzer for operator commands and health reporting.
func (e *Engine) Raid() *detectors.RaidAnalyzer { return e.raid }

func (e *Engine) settings(guildID string) *config.GuildSettings {
	now := util.NowMs()

	e.settingsMu.RLock()
	if c, ok := e.settingsCache[guildID]; ok && now-c.fetchedAt < settingsCacheTTLMs {
		e.settingsMu.RUnlock()
		return c.gs
	}
	e.settingsMu.RUnlock()

	gs, err := e.deps.Persist.GuildSettings(guildID)
	if err != nil {
		logging.Debug("settings for guild %s unavailable, using defaults: %v", guildID, err)
		gs = config.DefaultGuildSettings(guildID)
	}

	e.settingsMu.Lock()
	e.settingsCache[guildID] = cachedSettings{gs: gs, fetchedAt: now}
	e.settingsMu.Unlock()
	return gs
}

// InvalidateSettings drops the cached row so the next event rereads
// storage. The command layer calls this after a settings write.
func (e *Engine) InvalidateSettings(guildID string) {
	e.settingsMu.Lock()
	delete(e.settingsCache, guildID)
	e.settingsMu.Unlock()
}

// HandleMessage runs the full message path: text filter, spam scoring,
// flood tracking. State is mutated synchronously; everything that talks
// to the platform goes through the executor afterwards.
func (e *Engine) HandleMessage(ev *models.MessageEvent) {
	now := ev.Timestamp
	if now == 0 {
		now = util.NowMs()
	}
	settings := e.settings(ev.GuildID)

	if ev.Source == models.SourceHuman && !ev.AuthorAdmin {
		if res := e.classifier.Classify(ev.Content); res.Detected {
			e.handleBadWord(ev, res, now)
		}
	}

	if settings.AntiSpamEnabled {
		if res := e.spam.Analyze(ev, settings, now); res != nil && res.IsViolation {
			e.handleSpam(ev, res, now)
		}
	}

	e.handleFlood(ev, e.flood.Analyze(ev, now), now)
}

// handleBadWord walks the two-step ladder: first offense is a warning,
// the second a mute, after which the counter resets. The offending
// message goes regardless.
func (e *Engine) handleBadWord(ev *models.MessageEvent, res textfilter.Result, now int64) {
	key := ev.GuildID + ":" + ev.AuthorID

	e.mu.Lock()
	e.wordOffenses[key]++
	offense := e.wordOffenses[key]
	if h, ok := e.wordResets[key]; ok {
		h.Cancel()
	}
	if offense >= 2 {
		delete(e.wordOffenses, key)
		delete(e.wordResets, key)
	} else if e.deps.Scheduler != nil {
		e.wordResets[key] = e.deps.Scheduler.Schedule(badWordLadderReset, func() {
			e.mu.Lock()
			delete(e.wordOffenses, key)
			delete(e.wordResets, key)
			e.mu.Unlock()
		})
	}
	e.mu.Unlock()

	d := &decision.Decision{
		GuildID:   ev.GuildID,
		SubjectID: ev.AuthorID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
		Detector:  "textfilter",
		Verdict:   decision.VerdictWarn,
		Reason:    "prohibited language: " + res.Term,
		Evidence: map[string]interface{}{
			"term":     res.Term,
			"language": res.Language,
			"severity": string(res.Severity),
			"offense":  offense,
		},
		Timestamp: now,
	}
	if offense >= 2 || res.Severity == textfilter.SeverityHigh {
		d.Verdict = decision.VerdictTimeout
		d.TimeoutMs = badWordMuteMs
	}

	e.emit(d, repBadWord, func() error {
		if err := e.deps.Actions.DeleteMessage(ev.ChannelID, ev.MessageID); err != nil {
			return err
		}
		if d.Verdict == decision.VerdictTimeout {
			return e.deps.Actions.TimeoutMember(ev.GuildID, ev.AuthorID, d.TimeoutMs, d.Reason)
		}
		return nil
	})
}

func (e *Engine) handleSpam(ev *models.MessageEvent, res *detectors.SpamResult, now int64) {
	kinds := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		kinds = append(kinds, v.Type)
	}

	d := &decision.Decision{
		GuildID:   ev.GuildID,
		SubjectID: ev.AuthorID,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
		Detector:  "spam",
		Verdict:   res.Verdict,
		Reason:    "spam violations: " + strings.Join(kinds, ", "),
		Evidence: map[string]interface{}{
			"violations": kinds,
			"score":      res.Score,
			"cumulative": res.Cumulative,
		},
		Timestamp: now,
	}

	switch res.Verdict {
	case decision.VerdictTimeout:
		d.TimeoutMs = spamMuteMs
	case decision.VerdictBan:
		d.PurgeSeconds = banPurgeSeconds
	}

	// Kick and ban close the episode; the score starts over.
	if res.Verdict >= decision.VerdictKick {
		e.spam.Reset(ev.GuildID, ev.AuthorID)
	}

	e.emit(d, 0, func() error {
		if res.Verdict >= decision.VerdictDelete {
			if err := e.deps.Actions.DeleteMessage(ev.ChannelID, ev.MessageID); err != nil {
				logging.Warn("spam: deleting message %s failed: %v", ev.MessageID, err)
			}
		}
		switch res.Verdict {
		case decision.VerdictTimeout:
			return e.deps.Actions.TimeoutMember(ev.GuildID, ev.AuthorID, d.TimeoutMs, d.Reason)
		case decision.VerdictKick:
			return e.deps.Actions.KickMember(ev.GuildID, ev.AuthorID, d.Reason)
		case decision.VerdictBan:
			return e.deps.Actions.BanMember(ev.GuildID, ev.AuthorID, d.Reason, d.PurgeSeconds)
		}
		return nil
	})
}

func (e *Engine) handleFlood(ev *models.MessageEvent, res *detectors.FloodResult, now int64) {
	if res == nil || (!res.FloodDetected && !res.Oversized) {
		return
	}

	if len(res.MessageIDs) > 0 {
		ids := res.MessageIDs
		e.deps.Exec.Do(func() {
			e.flood.Purge(e.deps.Actions, ev.ChannelID, ids)
		})
	}
	if res.WantsSweep {
		e.deps.Exec.Do(func() {
			e.flood.SweepRecent(e.deps.Actions, ev.ChannelID, util.NowMs())
		})
	}

	reason := "channel flood"
	if res.Oversized {
		reason = "degenerate message"
	}
	for _, s := range res.Sanctions {
		s := s
		d := &decision.Decision{
			GuildID:   ev.GuildID,
			SubjectID: s.UserID,
			ChannelID: ev.ChannelID,
			Detector:  "flood",
			Verdict:   s.Verdict,
			Reason:    reason,
			Evidence: map[string]interface{}{
				"messages": res.MessageCount,
				"offense":  s.Offense,
			},
			TimeoutMs: s.TimeoutMs,
			Timestamp: now,
		}
		e.emit(d, repFlood, func() error {
			switch s.Verdict {
			case decision.VerdictTimeout:
				return e.deps.Actions.TimeoutMember(ev.GuildID, s.UserID, s.TimeoutMs, reason)
			case decision.VerdictKick:
				return e.deps.Actions.KickMember(ev.GuildID, s.UserID, reason)
			}
			return nil
		})
	}
}

// HandleJoin scores the join, enforces the raid verdict, and issues a
// verification challenge to members who are allowed to stay.
func (e *Engine) HandleJoin(ev *models.JoinEvent) {
	now := ev.Timestamp
	if now == 0 {
		now = util.NowMs()
	}
	settings := e.settings(ev.GuildID)

	res := e.raid.Analyze(ev, settings, now)
	if res != nil {
		if res.WantLockdown {
			e.deps.Exec.Do(func() {
				if err := e.lockdown.Activate(ev.GuildID, lockdown.LevelRaid, "raid detected", now); err != nil {
					logging.Warn("raid lockdown on guild %s: %v", ev.GuildID, err)
				}
			})
		}
		if res.Verdict != decision.VerdictNone {
			e.enforceJoinVerdict(ev, res, settings, now)
		}
	}

	// Quarantined members stay in the guild and still have to verify;
	// only kick and ban take the subject out of challenge scope.
	removed := res != nil &&
		(res.Verdict == decision.VerdictKick || res.Verdict == decision.VerdictBan) &&
		settings.AntiRaidMode != config.RaidModeDetection
	if settings.CaptchaEnabled && !removed {
		ch, err := e.challenge.Issue(ev.GuildID, ev.UserID, now)
		if err != nil {
			logging.Error("challenge issue for %s failed: %v", ev.UserID, err)
			return
		}
		if e.deps.Notify != nil {
			e.deps.Notify.NotifyChallenge(ev.GuildID, ev.UserID, ch)
		}
	}
}

func (e *Engine) enforceJoinVerdict(ev *models.JoinEvent, res *detectors.RaidResult, settings *config.GuildSettings, now int64) {
	factors := make([]string, 0, len(res.Factors))
	for _, f := range res.Factors {
		factors = append(factors, f.Kind)
	}

	d := &decision.Decision{
		GuildID:   ev.GuildID,
		SubjectID: ev.UserID,
		Detector:  "raid",
		Verdict:   res.Verdict,
		Reason:    "join risk assessment",
		Evidence: map[string]interface{}{
			"score":       res.Score,
			"factors":     factors,
			"raid_active": res.RaidActive,
		},
		Timestamp: now,
	}

	e.emit(d, 0, func() error {
		switch res.Verdict {
		case decision.VerdictBan:
			return e.deps.Actions.BanMember(ev.GuildID, ev.UserID, d.Reason, 0)
		case decision.VerdictKick:
			return e.deps.Actions.KickMember(ev.GuildID, ev.UserID, d.Reason)
		case decision.VerdictQuarantine:
			return e.quarantine(ev.GuildID, ev.UserID, settings)
		}
		return nil
	})
}

// quarantine strips the member's roles and applies the holding role if
// one is configured. Partial failure is reported but does not abort the
// remaining removals.
func (e *Engine) quarantine(guildID, userID string, settings *config.GuildSettings) error {
	roles, err := e.deps.Actions.MemberRoles(guildID, userID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, r := range roles {
		if err := e.deps.Actions.RemoveRole(guildID, userID, r.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if settings.QuarantineRoleID != "" {
		if err := e.deps.Actions.AddRole(guildID, userID, settings.QuarantineRoleID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleAudit feeds one destructive action to the nuke guard and, on a
// trigger, strips and bans the actor.
func (e *Engine) HandleAudit(ev *models.AuditEvent) {
	now := ev.Timestamp
	if now == 0 {
		now = util.NowMs()
	}

	var ownerID string
	if e.deps.Owner != nil {
		ownerID = e.deps.Owner(ev.GuildID)
	}
	res := e.nuke.Analyze(ev, ownerID, now)
	if res == nil {
		return
	}

	d := &decision.Decision{
		GuildID:   ev.GuildID,
		SubjectID: res.ActorID,
		Detector:  "nuke",
		Verdict:   res.Verdict,
		Reason:    "destructive action burst: " + res.Action.String(),
		Evidence: map[string]interface{}{
			"action": res.Action.String(),
			"count":  res.Count,
			"limit":  res.Limit,
		},
		Timestamp: now,
	}
	e.emit(d, 0, func() error {
		return e.nuke.Respond(e.deps.Actions, ev.GuildID, res.ActorID, d.Reason)
	})
}

// VerifyChallenge forwards a captcha answer. Exhausted attempts remove
// the user.
func (e *Engine) VerifyChallenge(guildID, userID, answer string) (challenge.VerifyResult, error) {
	res, err := e.challenge.Verify(guildID, userID, answer)
	if err != nil {
		return res, err
	}
	if res.ShouldRemove {
		e.removeUnverified(guildID, userID, "verification attempts exhausted")
	}
	return res, nil
}

// CancelChallenge drops a pending challenge, for members who leave.
func (e *Engine) CancelChallenge(guildID, userID string) {
	e.challenge.Cancel(guildID, userID)
}

func (e *Engine) onChallengeExpired(guildID, userID string) {
	e.removeUnverified(guildID, userID, "verification timed out")
}

func (e *Engine) removeUnverified(guildID, userID, reason string) {
	d := &decision.Decision{
		GuildID:   guildID,
		SubjectID: userID,
		Detector:  "challenge",
		Verdict:   decision.VerdictKick,
		Reason:    reason,
		Timestamp: util.NowMs(),
	}
	e.emit(d, 0, func() error {
		return e.deps.Actions.KickMember(guildID, userID, reason)
	})
}

// emit finalizes the decision: the enforcement action runs first so the
// record carries whether it succeeded, then the decision is persisted,
// reputation adjusted, and the notifier informed. All off the event path.
func (e *Engine) emit(d *decision.Decision, extraRep int, apply func() error) {
	e.deps.Exec.Do(func() {
		if apply != nil && d.Verdict > decision.VerdictMonitor {
			if err := apply(); err != nil {
				d.ActionFailed = true
				logging.Warn("%s enforcement for %s in guild %s failed: %v",
					d.Detector, d.SubjectID, d.GuildID, err)
			}
		}
		if err := e.deps.Persist.LogAction(d); err != nil {
			logging.Error("recording %s decision for %s failed: %v", d.Detector, d.SubjectID, err)
		}
		if delta := d.Verdict.ReputationDelta() + extraRep; delta != 0 {
			if err := e.deps.Persist.UpdateReputation(d.GuildID, d.SubjectID, delta); err != nil {
				logging.Warn("reputation update for %s failed: %v", d.SubjectID, err)
			}
		}
		if e.deps.Notify != nil {
			e.deps.Notify.NotifyDecision(d)
		}
	})
}

// RunMaintenance drives the periodic sweeps until the context ends.
// Raid-state rechecks and challenge timeouts run on their own scheduled
// timers; this loop only evicts idle windows and decayed counters.
func (e *Engine) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(e.deps.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.deps.Heartbeat != nil {
				e.deps.Heartbeat("maintenance")
			}
			e.SweepOnce(util.NowMs())
		}
	}
}

// SweepOnce runs one eviction pass over every detector and drops
// expired settings rows.
func (e *Engine) SweepOnce(now int64) {
	maxAge := e.deps.SweepMaxAgeMs
	e.spam.Sweep(maxAge, now)
	e.flood.Sweep(maxAge, now)
	e.raid.Sweep(maxAge, now)
	e.nuke.Sweep(maxAge, now)

	e.settingsMu.Lock()
	for guildID, c := range e.settingsCache {
		if now-c.fetchedAt >= settingsCacheTTLMs {
			delete(e.settingsCache, guildID)
		}
	}
	e.settingsMu.Unlock()
}
