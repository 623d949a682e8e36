package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/platform"
	"go-theoprotect/internal/sched"
)

// syncExec runs enforcement inline so tests observe effects immediately.
type syncExec struct{}

func (syncExec) Do(task func()) { task() }

type fakePersist struct {
	mu           sync.Mutex
	settings     map[string]*config.GuildSettings
	failRead     bool
	settingReads int
	decisions    []*decision.Decision
	rep          map[string]int
}

func newFakePersist() *fakePersist {
	return &fakePersist{
		settings: make(map[string]*config.GuildSettings),
		rep:      make(map[string]int),
	}
}

func (p *fakePersist) LogAction(d *decision.Decision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, d)
	return nil
}

func (p *fakePersist) GuildSettings(guildID string) (*config.GuildSettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settingReads++
	if p.failRead {
		return nil, errors.New("storage down")
	}
	if gs, ok := p.settings[guildID]; ok {
		return gs, nil
	}
	return nil, errors.New("no row")
}

func (p *fakePersist) UpdateReputation(guildID, userID string, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rep[guildID+":"+userID] += delta
	return nil
}

func (p *fakePersist) byDetector(name string) []*decision.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*decision.Decision
	for _, d := range p.decisions {
		if d.Detector == name {
			out = append(out, d)
		}
	}
	return out
}

type enforcerCall struct {
	kind   string
	userID string
}

// fakeEnforcer is the platform side: records calls, can fail bans.
type fakeEnforcer struct {
	mu      sync.Mutex
	calls   []enforcerCall
	failBan bool
	roles   []platform.Role
}

func (f *fakeEnforcer) record(kind, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enforcerCall{kind: kind, userID: userID})
}

func (f *fakeEnforcer) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeEnforcer) DeleteMessage(channelID, messageID string) error {
	f.record("delete", messageID)
	return nil
}

func (f *fakeEnforcer) BulkDeleteMessages(channelID string, ids []string) error {
	f.record("bulk", channelID)
	return nil
}

func (f *fakeEnforcer) TimeoutMember(guildID, userID string, durationMs int64, reason string) error {
	f.record("timeout", userID)
	return nil
}

func (f *fakeEnforcer) KickMember(guildID, userID, reason string) error {
	f.record("kick", userID)
	return nil
}

func (f *fakeEnforcer) BanMember(guildID, userID, reason string, purgeSeconds int) error {
	if f.failBan {
		return errors.New("missing permissions")
	}
	f.record("ban", userID)
	return nil
}

func (f *fakeEnforcer) SetChannelPermissionOverwrite(string, string, int64, int64) error { return nil }
func (f *fakeEnforcer) RemoveChannelPermissionOverwrite(string, string) error            { return nil }

func (f *fakeEnforcer) AddRole(guildID, userID, roleID string) error {
	f.record("addrole", userID)
	return nil
}

func (f *fakeEnforcer) RemoveRole(guildID, userID, roleID string) error {
	f.record("removerole", userID)
	return nil
}

func (f *fakeEnforcer) MemberRoles(guildID, userID string) ([]platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles, nil
}

func (f *fakeEnforcer) GuildChannels(guildID string) ([]platform.Channel, error) {
	return []platform.Channel{{ID: "c1"}}, nil
}

func (f *fakeEnforcer) GuildInvites(guildID string) ([]string, error) { return nil, nil }
func (f *fakeEnforcer) DeleteInvite(code, reason string) error        { return nil }

func (f *fakeEnforcer) RecentChannelMessages(string, int64, int) ([]platform.ChannelMessage, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, p *fakePersist, fe *fakeEnforcer) *Engine {
	t.Helper()
	s := sched.New()
	t.Cleanup(s.Close)
	return New(Deps{
		Persist:   p,
		Actions:   fe,
		Exec:      syncExec{},
		Owner:     func(string) string { return "owner" },
		Scheduler: s,
	})
}

func msgEvent(id, author, content string, at int64) *models.MessageEvent {
	return &models.MessageEvent{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: id,
		AuthorID:  author,
		Content:   content,
		Source:    models.SourceHuman,
		Timestamp: at,
	}
}

func TestMessageFloodScenarioEndToEnd(t *testing.T) {
	p := newFakePersist()
	gs := config.DefaultGuildSettings("g1")
	gs.AntiSpamLevel = config.SpamLevelMedium
	p.settings["g1"] = gs
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000)
	for i := 0; i < 6; i++ {
		e.HandleMessage(msgEvent(fmt.Sprintf("m%d", i), "u1", fmt.Sprintf("message %d", i), base+int64(i)*400))
	}

	spam := p.byDetector("spam")
	if len(spam) != 1 {
		t.Fatalf("got %d spam decisions, want 1 (on the 6th message)", len(spam))
	}
	d := spam[0]
	if d.Verdict < decision.VerdictDelete {
		t.Fatalf("verdict = %v, want at minimum DELETE", d.Verdict)
	}
	if fe.count("delete") == 0 {
		t.Fatal("the flagged message should be deleted")
	}
	if p.rep["g1:u1"] >= 0 {
		t.Fatalf("reputation = %d, want negative", p.rep["g1:u1"])
	}
}

func TestBadWordLadder(t *testing.T) {
	p := newFakePersist()
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	e.HandleMessage(msgEvent("m1", "u1", "you are a bastard", 1000))
	tf := p.byDetector("textfilter")
	if len(tf) != 1 || tf[0].Verdict != decision.VerdictWarn {
		t.Fatalf("first offense = %+v, want WARN", tf)
	}
	if fe.count("delete") != 1 {
		t.Fatal("offending message should be deleted")
	}

	e.HandleMessage(msgEvent("m2", "u1", "bastard again", 2000))
	tf = p.byDetector("textfilter")
	if len(tf) != 2 || tf[1].Verdict != decision.VerdictTimeout {
		t.Fatalf("second offense verdict = %v, want TIMEOUT", tf[1].Verdict)
	}
	if fe.count("timeout") != 1 {
		t.Fatal("second offense should mute")
	}

	// Counter reset after the mute: next offense is a warning again.
	e.HandleMessage(msgEvent("m3", "u1", "bastard once more", 3000))
	tf = p.byDetector("textfilter")
	if tf[2].Verdict != decision.VerdictWarn {
		t.Fatalf("post-reset offense verdict = %v, want WARN", tf[2].Verdict)
	}
}

func TestHighSeverityTermMutesImmediately(t *testing.T) {
	p := newFakePersist()
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	e.HandleMessage(msgEvent("m1", "u1", "shut up nigger", 1000))
	tf := p.byDetector("textfilter")
	if len(tf) != 1 || tf[0].Verdict != decision.VerdictTimeout {
		t.Fatalf("high-severity first offense = %+v, want TIMEOUT", tf)
	}
}

func TestRaidScenarioEndToEnd(t *testing.T) {
	p := newFakePersist()
	gs := config.DefaultGuildSettings("g1")
	gs.AntiRaidMode = config.RaidModeProtection
	p.settings["g1"] = gs
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000_000)
	old := base - 365*24*60*60*1000
	for i := 0; i < 12; i++ {
		at := base + int64(i)*400
		e.HandleJoin(&models.JoinEvent{
			GuildID: "g1", UserID: fmt.Sprintf("u%d", i), Username: fmt.Sprintf("user_%d", i),
			AccountCreated: old, HasAvatar: true, Timestamp: at,
		})
	}
	if !e.Raid().Active("g1") {
		t.Fatal("12 joins in 5 seconds should activate raid mode")
	}

	e.HandleJoin(&models.JoinEvent{
		GuildID: "g1", UserID: "u13", Username: "veteran_member",
		AccountCreated: old, HasAvatar: true, Timestamp: base + 5200,
	})

	raid := p.byDetector("raid")
	var last *decision.Decision
	for _, d := range raid {
		if d.SubjectID == "u13" {
			last = d
		}
	}
	if last == nil || last.Verdict != decision.VerdictBan {
		t.Fatalf("13th join decision = %+v, want BAN", last)
	}
	if fe.count("ban") == 0 {
		t.Fatal("the 13th joiner should be banned on the platform")
	}
}

func TestNukeEndToEnd(t *testing.T) {
	p := newFakePersist()
	fe := &fakeEnforcer{roles: []platform.Role{{ID: "r-admin", Dangerous: true}}}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000)
	for i := 0; i < 3; i++ {
		e.HandleAudit(&models.AuditEvent{
			GuildID: "g1", ActorID: "rogue", TargetID: fmt.Sprintf("ch%d", i),
			Action: models.AuditChannelDelete, Timestamp: base + int64(i)*100,
		})
	}

	nuke := p.byDetector("nuke")
	if len(nuke) != 1 || nuke[0].Verdict != decision.VerdictBan {
		t.Fatalf("nuke decisions = %+v, want one BAN", nuke)
	}
	if fe.count("removerole") != 1 {
		t.Fatal("the dangerous role should be stripped before the ban")
	}
	if fe.count("ban") != 1 {
		t.Fatal("the actor should be banned")
	}
}

func TestOwnerAuditActionsIgnored(t *testing.T) {
	p := newFakePersist()
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	for i := 0; i < 10; i++ {
		e.HandleAudit(&models.AuditEvent{
			GuildID: "g1", ActorID: "owner", Action: models.AuditChannelDelete,
			Timestamp: int64(1000 + i),
		})
	}
	if len(p.byDetector("nuke")) != 0 {
		t.Fatal("the guild owner must never trip the nuke guard")
	}
}

func TestFailedActionStillRecorded(t *testing.T) {
	p := newFakePersist()
	fe := &fakeEnforcer{failBan: true, roles: nil}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000)
	for i := 0; i < 3; i++ {
		e.HandleAudit(&models.AuditEvent{
			GuildID: "g1", ActorID: "rogue", Action: models.AuditChannelDelete,
			Timestamp: base + int64(i),
		})
	}

	nuke := p.byDetector("nuke")
	if len(nuke) != 1 {
		t.Fatalf("got %d nuke decisions, want 1", len(nuke))
	}
	if !nuke[0].ActionFailed {
		t.Fatal("a failed platform action must be recorded with ActionFailed set")
	}
}

func TestSettingsFallbackKeepsDetecting(t *testing.T) {
	p := newFakePersist()
	p.failRead = true
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000)
	// Default level is medium: 6 messages in-window must still flag.
	for i := 0; i < 6; i++ {
		e.HandleMessage(msgEvent(fmt.Sprintf("m%d", i), "u1", fmt.Sprintf("msg %d", i), base+int64(i)*100))
	}
	if len(p.byDetector("spam")) == 0 {
		t.Fatal("detection must continue on defaults when settings cannot be read")
	}
}

func TestChallengeExhaustionKicks(t *testing.T) {
	p := newFakePersist()
	gs := config.DefaultGuildSettings("g1")
	gs.CaptchaEnabled = true
	p.settings["g1"] = gs
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	e.HandleJoin(&models.JoinEvent{
		GuildID: "g1", UserID: "u1", Username: "newcomer",
		AccountCreated: 0, HasAvatar: true, Timestamp: 1000,
	})

	for i := 0; i < 3; i++ {
		if _, err := e.VerifyChallenge("g1", "u1", "WRONG"); err != nil {
			t.Fatalf("VerifyChallenge: %v", err)
		}
	}
	if fe.count("kick") != 1 {
		t.Fatal("exhausted verification should kick the user")
	}
	ch := p.byDetector("challenge")
	if len(ch) != 1 || ch[0].Verdict != decision.VerdictKick {
		t.Fatalf("challenge decisions = %+v, want one KICK", ch)
	}
}

func TestSettingsCachedOnScoringPath(t *testing.T) {
	p := newFakePersist()
	p.settings["g1"] = config.DefaultGuildSettings("g1")
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000_000)
	for i := 0; i < 5; i++ {
		e.HandleMessage(msgEvent(fmt.Sprintf("m%d", i), "u1", fmt.Sprintf("hello there %d", i), base+int64(i)*2000))
	}

	p.mu.Lock()
	reads := p.settingReads
	p.mu.Unlock()
	if reads != 1 {
		t.Fatalf("settings storage reads = %d, want 1 (cached within TTL)", reads)
	}

	// A settings write invalidates the cache; the next event rereads.
	e.InvalidateSettings("g1")
	e.HandleMessage(msgEvent("m9", "u1", "hello again", base+20000))

	p.mu.Lock()
	reads = p.settingReads
	p.mu.Unlock()
	if reads != 2 {
		t.Fatalf("settings storage reads after invalidation = %d, want 2", reads)
	}
}

func TestQuarantinedJoinerStillGetsChallenge(t *testing.T) {
	p := newFakePersist()
	gs := config.DefaultGuildSettings("g1")
	gs.AntiRaidMode = config.RaidModeProtection
	gs.CaptchaEnabled = true
	gs.QuarantineRoleID = "r-hold"
	p.settings["g1"] = gs
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	// Young account with no avatar: score 5, quarantine. The member
	// stays in the guild, so verification still applies.
	now := int64(1_000_000_000)
	e.HandleJoin(&models.JoinEvent{
		GuildID: "g1", UserID: "u1", Username: "quietnewcomer",
		AccountCreated: now - 1000, HasAvatar: false, Timestamp: now,
	})

	raid := p.byDetector("raid")
	if len(raid) != 1 || raid[0].Verdict != decision.VerdictQuarantine {
		t.Fatalf("raid decisions = %+v, want one QUARANTINE", raid)
	}
	if _, err := e.VerifyChallenge("g1", "u1", "WRONG"); err != nil {
		t.Fatalf("quarantined member should hold a pending challenge, got %v", err)
	}
}

func TestMonitorVerdictTakesNoAction(t *testing.T) {
	p := newFakePersist()
	gs := config.DefaultGuildSettings("g1")
	gs.AntiRaidMode = config.RaidModeDetection
	p.settings["g1"] = gs
	fe := &fakeEnforcer{}
	e := newTestEngine(t, p, fe)

	base := int64(1_000_000_000)
	for i := 0; i < 11; i++ {
		e.HandleJoin(&models.JoinEvent{
			GuildID: "g1", UserID: fmt.Sprintf("u%d", i), Username: "x",
			AccountCreated: base - 1000, HasAvatar: false, Timestamp: base + int64(i)*100,
		})
	}

	if fe.count("ban")+fe.count("kick")+fe.count("removerole") != 0 {
		t.Fatal("detection mode must never enforce")
	}
	if len(p.byDetector("raid")) == 0 {
		t.Fatal("detection mode still records monitor decisions")
	}
}
