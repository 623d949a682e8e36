// Package lockdown freezes guild channels at escalating severity levels
// and restores them bit-exactly afterwards. The snapshot taken on
// activation is the single source of truth for restoration; escalation
// reuses it, so the guild always unwinds to its pre-lockdown state no
// matter how many times the level was raised in between.
package lockdown

import (
	"errors"
	"fmt"
	"sync"

	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/platform"
)

type Level uint8

const (
	LevelSoft Level = iota + 1
	LevelMedium
	LevelHard
	LevelRaid
)

func (l Level) String() string {
	switch l {
	case LevelSoft:
		return "SOFT"
	case LevelMedium:
		return "MEDIUM"
	case LevelHard:
		return "HARD"
	case LevelRaid:
		return "RAID"
	default:
		return "NONE"
	}
}

// denyMask returns the permission bits a level removes from @everyone.
// Each level is a strict superset of the one below it.
func (l Level) denyMask() int64 {
	var mask int64
	switch l {
	case LevelRaid:
		mask |= platform.PermViewChannel
		fallthrough
	case LevelHard:
		mask |= platform.PermConnect | platform.PermSpeak
		fallthrough
	case LevelMedium:
		mask |= platform.PermAttachFiles | platform.PermCreatePublicThreads | platform.PermSendMessagesInThread
		fallthrough
	case LevelSoft:
		mask |= platform.PermSendMessages
	}
	return mask
}

// revokesInvites reports whether the level also kills outstanding invite
// links. Only the two highest levels do.
func (l Level) revokesInvites() bool {
	return l >= LevelHard
}

// LevelForThreat maps an externally supplied threat score to the level
// auto-escalation should reach. False when the score warrants nothing.
func LevelForThreat(score int) (Level, bool) {
	switch {
	case score >= 9:
		return LevelRaid, true
	case score >= 7:
		return LevelHard, true
	case score >= 5:
		return LevelMedium, true
	default:
		return 0, false
	}
}

var (
	ErrAlreadyActive = errors.New("lockdown already active")
	ErrNotActive     = errors.New("no lockdown active")
)

// channelSnapshot remembers one channel's @everyone overwrite as it was
// before the lockdown. A nil Overwrite means no overwrite existed, which
// restoration must reproduce by deleting ours, not by writing zeros.
type channelSnapshot struct {
	ChannelID string
	Overwrite *platform.OverwriteBits
}

type guildLock struct {
	Level       Level
	Reason      string
	ActivatedAt int64
	Snapshot    []channelSnapshot
}

type Controller struct {
	actions platform.Actions

	mu    sync.Mutex
	locks map[string]*guildLock
}

func New(actions platform.Actions) *Controller {
	return &Controller{
		actions: actions,
		locks:   make(map[string]*guildLock),
	}
}

// Active reports the current lockdown level for the guild, if any.
func (c *Controller) Active(guildID string) (Level, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[guildID]; ok {
		return l.Level, true
	}
	return 0, false
}

// Activate snapshots every channel's @everyone overwrite and applies the
// level's denials. Rejected when a lockdown is already active; use
// Escalate to raise the level of a running one.
func (c *Controller) Activate(guildID string, level Level, reason string, now int64) error {
	c.mu.Lock()
	if _, ok := c.locks[guildID]; ok {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	// Reserve the slot before touching the platform so a concurrent
	// activation cannot double-snapshot.
	lock := &guildLock{Level: level, Reason: reason, ActivatedAt: now}
	c.locks[guildID] = lock
	c.mu.Unlock()

	channels, err := c.actions.GuildChannels(guildID)
	if err != nil {
		c.mu.Lock()
		delete(c.locks, guildID)
		c.mu.Unlock()
		return fmt.Errorf("lockdown: channel list for %s: %w", guildID, err)
	}

	for _, ch := range channels {
		lock.Snapshot = append(lock.Snapshot, channelSnapshot{ChannelID: ch.ID, Overwrite: ch.Overwrite})
	}

	c.apply(guildID, lock.Snapshot, level)
	if level.revokesInvites() {
		c.revokeInvites(guildID, reason)
	}

	logging.Warn("lockdown %s active on guild %s: %s", level, guildID, reason)
	return nil
}

// Escalate raises a running lockdown to the level the threat score
// demands, keeping the original snapshot. Starts a fresh lockdown when
// none is active. Returns the resulting level and whether anything
// changed.
func (c *Controller) Escalate(guildID string, threat int, reason string, now int64) (Level, bool, error) {
	target, ok := LevelForThreat(threat)
	if !ok {
		cur, _ := c.Active(guildID)
		return cur, false, nil
	}

	c.mu.Lock()
	lock, active := c.locks[guildID]
	if active && lock.Level >= target {
		cur := lock.Level
		c.mu.Unlock()
		return cur, false, nil
	}
	if active {
		lock.Level = target
		snapshot := lock.Snapshot
		c.mu.Unlock()

		c.apply(guildID, snapshot, target)
		if target.revokesInvites() {
			c.revokeInvites(guildID, reason)
		}
		logging.Warn("lockdown escalated to %s on guild %s: %s", target, guildID, reason)
		return target, true, nil
	}
	c.mu.Unlock()

	if err := c.Activate(guildID, target, reason, now); err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// Deactivate replays the snapshot and forgets the lockdown. Channels
// whose restore fails are logged and skipped; one broken channel must
// not leave the rest of the guild frozen.
func (c *Controller) Deactivate(guildID string) error {
	c.mu.Lock()
	lock, ok := c.locks[guildID]
	if !ok {
		c.mu.Unlock()
		return ErrNotActive
	}
	delete(c.locks, guildID)
	c.mu.Unlock()

	for _, snap := range lock.Snapshot {
		var err error
		if snap.Overwrite == nil {
			err = c.actions.RemoveChannelPermissionOverwrite(snap.ChannelID, guildID)
		} else {
			err = c.actions.SetChannelPermissionOverwrite(snap.ChannelID, guildID, snap.Overwrite.Allow, snap.Overwrite.Deny)
		}
		if err != nil {
			logging.Warn("lockdown restore: channel %s: %v", snap.ChannelID, err)
		}
	}

	logging.Info("lockdown lifted on guild %s", guildID)
	return nil
}

// apply writes the level's denials on top of each channel's snapshotted
// bits. Denied bits are also stripped from the allow side so an explicit
// allow cannot shadow the lockdown.
func (c *Controller) apply(guildID string, snapshot []channelSnapshot, level Level) {
	mask := level.denyMask()
	for _, snap := range snapshot {
		var allow, deny int64
		if snap.Overwrite != nil {
			allow = snap.Overwrite.Allow &^ mask
			deny = snap.Overwrite.Deny | mask
		} else {
			deny = mask
		}
		if err := c.actions.SetChannelPermissionOverwrite(snap.ChannelID, guildID, allow, deny); err != nil {
			logging.Warn("lockdown apply: channel %s: %v", snap.ChannelID, err)
		}
	}
}

func (c *Controller) revokeInvites(guildID, reason string) {
	codes, err := c.actions.GuildInvites(guildID)
	if err != nil {
		logging.Warn("lockdown: invite list for %s: %v", guildID, err)
		return
	}
	for _, code := range codes {
		if err := c.actions.DeleteInvite(code, reason); err != nil {
			logging.Warn("lockdown: revoking invite %s: %v", code, err)
		}
	}
}
