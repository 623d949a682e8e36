package detectors

import (
	"regexp"
	"sync"
	"time"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/sched"
	"go-theoprotect/internal/window"
)

const (
	factorYoungAccount     = "YOUNG_ACCOUNT"
	factorNoAvatar         = "NO_AVATAR"
	factorSuspiciousName   = "SUSPICIOUS_NAME"
	factorRapidJoin        = "RAPID_JOIN"
	factorCoordinatedNames = "COORDINATED_NAMES"
)

const (
	similarNameThreshold = 0.7
	similarNameCount     = 3
)

// throwawayName matches the default-looking handles raid tooling
// generates, a short alpha stem with a numeric tail.
var throwawayName = regexp.MustCompile(`^[A-Za-z]{1,12}\d{4,}$`)

type RaidFactor struct {
	Kind     string
	Severity int
}

type RaidResult struct {
	Score         int
	Factors       []RaidFactor
	RaidActive    bool
	RaidActivated bool // this join tipped the guild into raid mode
	WantLockdown  bool
	Verdict       decision.Verdict
}

type raidState struct {
	active      bool
	activatedAt int64
	recheck     *sched.Handle
}

// RaidAnalyzer scores individual joins and tracks the guild-level raid
// flag. Activation is idempotent; deactivation only happens through the
// quiet-period recheck.
type RaidAnalyzer struct {
	joins      *window.Window
	thresholds config.RaidThresholds
	sched      *sched.Scheduler

	mu     sync.Mutex
	states map[string]*raidState
}

func NewRaidAnalyzer(s *sched.Scheduler) *RaidAnalyzer {
	return &RaidAnalyzer{
		joins:      window.New(),
		thresholds: config.DefaultRaidThresholds(),
		sched:      s,
		states:     make(map[string]*raidState),
	}
}

func raidKey(guildID string) string {
	return "raid:" + guildID
}

// Analyze records the join, scores it against the risk factors and
// advances the guild raid state. Nil when raid handling is off for the
// guild.
func (d *RaidAnalyzer) Analyze(ev *models.JoinEvent, settings *config.GuildSettings, now int64) *RaidResult {
	if settings == nil {
		settings = config.DefaultGuildSettings(ev.GuildID)
	}
	if !settings.AntiRaidEnabled || settings.AntiRaidMode == config.RaidModeOff {
		return nil
	}

	key := raidKey(ev.GuildID)
	d.joins.Record(key, now, ev.Username, d.thresholds.JoinBurst.WindowMs)
	entries := d.joins.EntriesSince(key, d.thresholds.JoinBurst.WindowMs, now)
	burst := len(entries) >= d.thresholds.JoinBurst.Limit

	res := &RaidResult{}

	ageMs := now - ev.AccountCreated
	if ageMs < int64(d.thresholds.AccountAgeDays)*24*60*60*1000 {
		res.Factors = append(res.Factors, RaidFactor{factorYoungAccount, 3})
	}
	if !ev.HasAvatar {
		res.Factors = append(res.Factors, RaidFactor{factorNoAvatar, 2})
	}
	if suspiciousUsername(ev.Username) {
		res.Factors = append(res.Factors, RaidFactor{factorSuspiciousName, 3})
	}
	if burst {
		res.Factors = append(res.Factors, RaidFactor{factorRapidJoin, 5})
	}
	if d.coordinatedNames(ev.Username, entries) {
		res.Factors = append(res.Factors, RaidFactor{factorCoordinatedNames, 4})
	}
	for _, f := range res.Factors {
		res.Score += f.Severity
	}

	if burst {
		res.RaidActivated = d.activate(ev.GuildID, now)
	}
	res.RaidActive = d.Active(ev.GuildID)
	res.WantLockdown = res.RaidActivated && settings.AntiRaidMode == config.RaidModeLockdown

	res.Verdict = d.verdict(res, settings)
	return res
}

func (d *RaidAnalyzer) verdict(res *RaidResult, settings *config.GuildSettings) decision.Verdict {
	var v decision.Verdict
	switch {
	case res.RaidActive:
		v = decision.VerdictBan
	case res.Score >= 10:
		v = decision.VerdictBan
	case res.Score >= 7:
		v = decision.VerdictKick
	case res.Score >= 5:
		v = decision.VerdictQuarantine
	case res.Score >= 3:
		v = decision.VerdictMonitor
	default:
		return decision.VerdictNone
	}
	if settings.AntiRaidMode == config.RaidModeDetection && v > decision.VerdictMonitor {
		return decision.VerdictMonitor
	}
	return v
}

// coordinatedNames reports whether the joining name closely matches more
// than similarNameCount names from the current window.
func (d *RaidAnalyzer) coordinatedNames(name string, entries []window.Entry) bool {
	if name == "" {
		return false
	}
	similar := 0
	for _, e := range entries {
		if e.Payload == "" || e.Payload == name {
			continue
		}
		if Similarity(name, e.Payload) > similarNameThreshold {
			similar++
			if similar > similarNameCount {
				return true
			}
		}
	}
	return false
}

// activate flips the guild into raid mode. Returns true only on the
// transition; a raid already active keeps its original activatedAt.
func (d *RaidAnalyzer) activate(guildID string, now int64) bool {
	d.mu.Lock()
	st, ok := d.states[guildID]
	if !ok {
		st = &raidState{}
		d.states[guildID] = st
	}
	if st.active {
		d.mu.Unlock()
		return false
	}
	st.active = true
	st.activatedAt = now
	st.recheck = d.scheduleRecheck(guildID)
	d.mu.Unlock()

	logging.Warn("raid mode activated for guild %s", guildID)
	return true
}

func (d *RaidAnalyzer) scheduleRecheck(guildID string) *sched.Handle {
	if d.sched == nil {
		return nil
	}
	return d.sched.Schedule(time.Duration(d.thresholds.QuietPeriodMs)*time.Millisecond, func() {
		d.Recheck(guildID, time.Now().UnixMilli())
	})
}

// Recheck ends the raid when the join window quieted below the low-water
// mark, otherwise keeps watching for another quiet period.
func (d *RaidAnalyzer) Recheck(guildID string, now int64) {
	quiet := d.joins.CountSince(raidKey(guildID), d.thresholds.JoinBurst.WindowMs, now) < d.thresholds.LowWaterMark

	d.mu.Lock()
	st, ok := d.states[guildID]
	if !ok || !st.active {
		d.mu.Unlock()
		return
	}
	if !quiet {
		st.recheck = d.scheduleRecheck(guildID)
		d.mu.Unlock()
		return
	}
	st.active = false
	st.recheck = nil
	d.mu.Unlock()

	logging.Info("raid mode cleared for guild %s", guildID)
}

// Active reports the guild raid flag.
func (d *RaidAnalyzer) Active(guildID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[guildID]
	return ok && st.active
}

// ActivatedAt returns when the current raid began, zero when none is
// active.
func (d *RaidAnalyzer) ActivatedAt(guildID string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[guildID]; ok && st.active {
		return st.activatedAt
	}
	return 0
}

// Deactivate force-clears the raid flag, used by operator commands.
func (d *RaidAnalyzer) Deactivate(guildID string) {
	d.mu.Lock()
	st, ok := d.states[guildID]
	if ok && st.active {
		st.active = false
		if st.recheck != nil {
			st.recheck.Cancel()
			st.recheck = nil
		}
	}
	d.mu.Unlock()
}

// Sweep evicts stale join windows.
func (d *RaidAnalyzer) Sweep(maxAgeMs, now int64) {
	d.joins.SweepAll(maxAgeMs, now)
}

// suspiciousUsername flags throwaway-looking handles: a long run of one
// character, a generic stem with a numeric tail, or a name too short to
// be anything but generated.
func suspiciousUsername(name string) bool {
	if len([]rune(name)) <= 2 {
		return true
	}
	if longestRun(name) >= 5 {
		return true
	}
	return throwawayName.MatchString(name)
}
