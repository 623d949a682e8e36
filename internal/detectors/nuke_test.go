package detectors

import (
	"errors"
	"testing"

	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/platform"
)

func audit(actor string, action models.AuditAction, at int64) *models.AuditEvent {
	return &models.AuditEvent{
		GuildID:   "g1",
		ActorID:   actor,
		TargetID:  "t1",
		Action:    action,
		Timestamp: at,
	}
}

func TestNukeTriggersOnLimitThAction(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	// CHANNEL_DELETE threshold is 3 in 10s.
	for i := 0; i < 2; i++ {
		if res := d.Analyze(audit("u1", models.AuditChannelDelete, base+int64(i)*100), "owner", base+int64(i)*100); res != nil {
			t.Fatalf("action %d flagged, below the limit", i+1)
		}
	}
	res := d.Analyze(audit("u1", models.AuditChannelDelete, base+200), "owner", base+200)
	if res == nil {
		t.Fatal("3rd channel delete in 10s must trigger on the 3rd, not the 4th")
	}
	if res.Count != 3 || res.Limit != 3 {
		t.Fatalf("count/limit = %d/%d, want 3/3", res.Count, res.Limit)
	}
	if res.Verdict != decision.VerdictBan {
		t.Fatalf("verdict = %v, want BAN", res.Verdict)
	}
}

func TestNukeNeverTriggersAcrossAPause(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	d.Analyze(audit("u1", models.AuditChannelDelete, base), "owner", base)
	d.Analyze(audit("u1", models.AuditChannelDelete, base+100), "owner", base+100)

	// Pause past the 10s window, then two more. Never reaches 3 in-window.
	later := base + 11_000
	if res := d.Analyze(audit("u1", models.AuditChannelDelete, later), "owner", later); res != nil {
		t.Fatal("first action after the pause flagged")
	}
	if res := d.Analyze(audit("u1", models.AuditChannelDelete, later+100), "owner", later+100); res != nil {
		t.Fatal("limit-1 actions, pause, limit-1 actions must not trigger")
	}
}

func TestNukeThresholdsArePerActionType(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	// 2 channel deletes and 2 role deletes interleaved: neither type
	// reaches its own limit of 3.
	for i := 0; i < 2; i++ {
		at := base + int64(i)*100
		if res := d.Analyze(audit("u1", models.AuditChannelDelete, at), "owner", at); res != nil {
			t.Fatal("channel deletes below limit flagged")
		}
		if res := d.Analyze(audit("u1", models.AuditRoleDelete, at+50), "owner", at+50); res != nil {
			t.Fatal("role deletes below limit flagged")
		}
	}
}

func TestNukeCountsArePerActor(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	d.Analyze(audit("u1", models.AuditBan, base), "owner", base)
	d.Analyze(audit("u1", models.AuditBan, base+1), "owner", base+1)
	d.Analyze(audit("u2", models.AuditBan, base+2), "owner", base+2)

	// u2 has 1 ban, u1 has 2; BAN limit is 5, nobody triggers.
	if res := d.Analyze(audit("u2", models.AuditBan, base+3), "owner", base+3); res != nil {
		t.Fatal("actors must not share counters")
	}
}

func TestGuildOwnerExempt(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	for i := 0; i < 10; i++ {
		at := base + int64(i)*10
		if res := d.Analyze(audit("owner", models.AuditChannelDelete, at), "owner", at); res != nil {
			t.Fatal("the guild owner is never tracked")
		}
	}
}

func TestNukeResponseStripsRolesThenBans(t *testing.T) {
	d := NewNukeGuard()
	fa := newFakeActions()
	fa.memberRoles = []platform.Role{
		{ID: "r-admin", Dangerous: true},
		{ID: "r-member", Dangerous: false},
		{ID: "r-mod", Dangerous: true},
	}

	if err := d.Respond(fa, "g1", "u1", "mass channel deletion"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(fa.rolesTaken) != 2 {
		t.Fatalf("removed %d roles, want the 2 dangerous ones", len(fa.rolesTaken))
	}
	if len(fa.banned) != 1 || fa.banned[0] != "u1" {
		t.Fatalf("banned = %v, want [u1]", fa.banned)
	}
}

func TestNukeResponseBansDespiteRoleFailures(t *testing.T) {
	d := NewNukeGuard()

	fa := newFakeActions()
	fa.failRoles = true
	if err := d.Respond(fa, "g1", "u1", "x"); err != nil {
		t.Fatalf("Respond with role-fetch failure: %v", err)
	}
	if len(fa.banned) != 1 {
		t.Fatal("role-fetch failure must not block the ban")
	}

	fa = newFakeActions()
	fa.memberRoles = []platform.Role{{ID: "r1", Dangerous: true}}
	fa.removeErrors["r1"] = errors.New("missing permissions")
	if err := d.Respond(fa, "g1", "u1", "x"); err != nil {
		t.Fatalf("Respond with role-removal failure: %v", err)
	}
	if len(fa.banned) != 1 {
		t.Fatal("partial role-removal failure must not block the ban")
	}
}

func TestNukeResetClearsCounters(t *testing.T) {
	d := NewNukeGuard()
	base := int64(1_000_000)

	d.Analyze(audit("u1", models.AuditChannelDelete, base), "owner", base)
	d.Analyze(audit("u1", models.AuditChannelDelete, base+1), "owner", base+1)
	d.Reset("g1", "u1")

	if res := d.Analyze(audit("u1", models.AuditChannelDelete, base+2), "owner", base+2); res != nil {
		t.Fatal("counters should start over after a reset")
	}
}
