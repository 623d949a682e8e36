package detectors

import (
	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/platform"
	"go-theoprotect/internal/window"
)

type NukeResult struct {
	ActorID string
	Action  models.AuditAction
	Count   int
	Limit   int
	Verdict decision.Verdict
}

// NukeGuard rate-limits destructive administrative actions per actor.
// Triggering on the limit-th action inside the window, not the one
// after, is the whole point: a nuke script's third channel delete must
// already be the one that gets its author banned.
type NukeGuard struct {
	actions    *window.Window
	thresholds map[models.AuditAction]config.RateThreshold
}

func NewNukeGuard() *NukeGuard {
	return &NukeGuard{
		actions:    window.New(),
		thresholds: config.NukeThresholds,
	}
}

func nukeKey(ev *models.AuditEvent) string {
	return "nuke:" + ev.GuildID + ":" + ev.ActorID + ":" + ev.Action.String()
}

// Analyze records the audit entry and reports whether the actor crossed
// the per-action threshold. The guild owner is never flagged; neither is
// a whitelisted actor per the caller's judgement.
func (d *NukeGuard) Analyze(ev *models.AuditEvent, ownerID string, now int64) *NukeResult {
	if ev.ActorID == "" || ev.ActorID == ownerID {
		return nil
	}
	th, ok := d.thresholds[ev.Action]
	if !ok {
		return nil
	}

	key := nukeKey(ev)
	d.actions.Record(key, now, ev.TargetID, th.WindowMs)
	count := d.actions.CountSince(key, th.WindowMs, now)
	if count < th.Limit {
		return nil
	}

	logging.Critical("nuke detected: actor %s hit %d %s in %dms (guild %s)",
		ev.ActorID, count, ev.Action, th.WindowMs, ev.GuildID)

	return &NukeResult{
		ActorID: ev.ActorID,
		Action:  ev.Action,
		Count:   count,
		Limit:   th.Limit,
		Verdict: decision.VerdictBan,
	}
}

// Respond strips the actor's dangerous roles before banning. Role removal
// is fail-safe: any failure is logged and the ban still goes out, since
// the ban is what actually stops the nuke.
func (d *NukeGuard) Respond(actions platform.Actions, guildID, actorID, reason string) error {
	roles, err := actions.MemberRoles(guildID, actorID)
	if err != nil {
		logging.Warn("nuke response: role fetch for %s failed, banning anyway: %v", actorID, err)
	}
	for _, r := range roles {
		if !r.Dangerous {
			continue
		}
		if err := actions.RemoveRole(guildID, actorID, r.ID); err != nil {
			logging.Warn("nuke response: removing role %s from %s failed: %v", r.ID, actorID, err)
		}
	}
	return actions.BanMember(guildID, actorID, reason, 0)
}

// Reset clears an actor's counters after an operator pardon.
func (d *NukeGuard) Reset(guildID, actorID string) {
	for action := range d.thresholds {
		d.actions.Clear("nuke:" + guildID + ":" + actorID + ":" + action.String())
	}
}

// Sweep evicts stale actor windows.
func (d *NukeGuard) Sweep(maxAgeMs, now int64) {
	d.actions.SweepAll(maxAgeMs, now)
}
