package detectors

import (
	"fmt"
	"regexp"
	"sync"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/window"
	"go-theoprotect/pkg/util"
)

// Violation rule identifiers and their severity weights.
const (
	ViolationMessageFlood     = "MESSAGE_FLOOD"
	ViolationDuplicateMessage = "DUPLICATE_MESSAGE"
	ViolationMentionSpam      = "MENTION_SPAM"
	ViolationEmojiSpam        = "EMOJI_SPAM"
	ViolationInviteSpam       = "INVITE_SPAM"
	ViolationLinkSpam         = "LINK_SPAM"
)

var violationSeverity = map[string]int{
	ViolationMessageFlood:     3,
	ViolationDuplicateMessage: 2,
	ViolationMentionSpam:      4,
	ViolationEmojiSpam:        2,
	ViolationInviteSpam:       5,
	ViolationLinkSpam:         3,
}

var (
	emojiPattern  = regexp.MustCompile(`<a?:\w+:\d+>`)
	invitePattern = regexp.MustCompile(`(?i)(discord\.gg|discord\.com/invite|discordapp\.com/invite)/\w+`)
	urlPattern    = regexp.MustCompile(`(?i)https?://\S+`)
)

type Violation struct {
	Type     string
	Severity int
	Count    int
}

type SpamResult struct {
	IsViolation bool
	Violations  []Violation
	Verdict     decision.Verdict
	Score       int // this message
	Cumulative  int // running total for the user
}

// violationScores is the per-user cumulative score cache. Scores only grow
// until an explicit reset or the inactivity sweep drops the entry.
type violationScores struct {
	mu      sync.Mutex
	entries map[string]*scoreEntry
}

type scoreEntry struct {
	score    int
	lastSeen int64
}

func (vs *violationScores) add(key string, delta, now int64) int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	e, ok := vs.entries[key]
	if !ok {
		e = &scoreEntry{}
		vs.entries[key] = e
	}
	e.score += int(delta)
	e.lastSeen = now
	return e.score
}

func (vs *violationScores) reset(key string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	delete(vs.entries, key)
}

func (vs *violationScores) sweep(maxAgeMs, now int64) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for key, e := range vs.entries {
		if now-e.lastSeen > maxAgeMs {
			delete(vs.entries, key)
		}
	}
}

// SpamDetector analyzes per-user message behavior: rate, duplicates,
// mention/emoji volume and link patterns. State is bounded by the shared
// window eviction plus the score cache's inactivity sweep.
type SpamDetector struct {
	rate   *window.Window
	dup    *window.Window
	scores *violationScores
	limits config.SpamLimits
}

func NewSpamDetector() *SpamDetector {
	return &SpamDetector{
		rate:   window.New(),
		dup:    window.New(),
		scores: &violationScores{entries: make(map[string]*scoreEntry)},
		limits: config.DefaultSpamLimits(),
	}
}

func spamKey(guildID, userID string) string {
	return "spam:" + guildID + ":" + userID
}

// Analyze scores one message. It mutates only the detector's own windows
// and the user's cumulative score; enforcement happens downstream.
func (d *SpamDetector) Analyze(ev *models.MessageEvent, settings *config.GuildSettings, now int64) *SpamResult {
	res := &SpamResult{Verdict: decision.VerdictNone}
	if ev.Source != models.SourceHuman || ev.AuthorAdmin {
		return res
	}

	key := spamKey(ev.GuildID, ev.AuthorID)
	rate := config.SpamRateFor(settings.AntiSpamLevel)

	// Rate check
	d.rate.Record(key, now, "", rate.WindowMs)
	count := d.rate.CountSince(key, rate.WindowMs, now)
	if count >= rate.Limit {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationMessageFlood,
			Severity: violationSeverity[ViolationMessageFlood],
			Count:    count,
		})
	}

	// Duplicate-content check, by content hash
	contentHash := fmt.Sprintf("%x", util.HashString(ev.Content))
	d.dup.Record(key, now, contentHash, d.limits.DuplicateWindow)
	dupCount := 0
	for _, e := range d.dup.EntriesSince(key, d.limits.DuplicateWindow, now) {
		if e.Payload == contentHash {
			dupCount++
		}
	}
	if dupCount > d.limits.MaxDuplicates {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationDuplicateMessage,
			Severity: violationSeverity[ViolationDuplicateMessage],
			Count:    dupCount,
		})
	}

	// Mention and emoji ceilings
	if ev.MentionCount > d.limits.MaxMentions {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationMentionSpam,
			Severity: violationSeverity[ViolationMentionSpam],
			Count:    ev.MentionCount,
		})
	}
	if n := len(emojiPattern.FindAllString(ev.Content, -1)); n > d.limits.MaxEmojis {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationEmojiSpam,
			Severity: violationSeverity[ViolationEmojiSpam],
			Count:    n,
		})
	}

	// Invite and external link volume
	if invitePattern.MatchString(ev.Content) {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationInviteSpam,
			Severity: violationSeverity[ViolationInviteSpam],
		})
	}
	if n := len(urlPattern.FindAllString(ev.Content, -1)); n > d.limits.MaxLinks {
		res.Violations = append(res.Violations, Violation{
			Type:     ViolationLinkSpam,
			Severity: violationSeverity[ViolationLinkSpam],
			Count:    n,
		})
	}

	for _, v := range res.Violations {
		res.Score += v.Severity
	}
	res.IsViolation = len(res.Violations) > 0
	res.Cumulative = d.scores.add(key, int64(res.Score), now)
	res.Verdict = d.ladder(res.Cumulative, res.Score, settings)
	return res
}

// ladder selects the most severe action whose cumulative threshold is met.
// A single spiky message still earns a delete even below the warn line.
func (d *SpamDetector) ladder(cumulative, messageScore int, settings *config.GuildSettings) decision.Verdict {
	switch {
	case cumulative >= settings.BanThreshold:
		return decision.VerdictBan
	case cumulative >= settings.KickThreshold:
		return decision.VerdictKick
	case cumulative >= settings.MuteThreshold:
		return decision.VerdictTimeout
	case cumulative >= settings.WarnThreshold:
		return decision.VerdictWarn
	case messageScore >= 3:
		return decision.VerdictDelete
	default:
		return decision.VerdictNone
	}
}

// Reset clears all tracked state for one user.
func (d *SpamDetector) Reset(guildID, userID string) {
	key := spamKey(guildID, userID)
	d.rate.Clear(key)
	d.dup.Clear(key)
	d.scores.reset(key)
}

// Score returns the user's current cumulative violation score.
func (d *SpamDetector) Score(guildID, userID string) int {
	d.scores.mu.Lock()
	defer d.scores.mu.Unlock()
	if e, ok := d.scores.entries[spamKey(guildID, userID)]; ok {
		return e.score
	}
	return 0
}

// Sweep is the periodic eviction pass.
func (d *SpamDetector) Sweep(maxAgeMs, now int64) {
	d.rate.SweepAll(maxAgeMs, now)
	d.dup.SweepAll(maxAgeMs, now)
	d.scores.sweep(maxAgeMs, now)
}
