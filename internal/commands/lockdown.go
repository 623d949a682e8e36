package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/lockdown"
	"go-theoprotect/internal/logging"
)

func parseLockdownLevel(s string) (lockdown.Level, error) {
	switch s {
	case "soft":
		return lockdown.LevelSoft, nil
	case "medium":
		return lockdown.LevelMedium, nil
	case "hard":
		return lockdown.LevelHard, nil
	case "raid":
		return lockdown.LevelRaid, nil
	}
	return 0, fmt.Errorf("unknown lockdown level: %s", s)
}

func (h *Handler) handleLockdownStart(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	opts := optionMap(sub)
	level, err := parseLockdownLevel(opts["level"].StringValue())
	if err != nil {
		return err
	}
	reason := "Manual lockdown"
	if r, ok := opts["reason"]; ok && r.StringValue() != "" {
		reason = r.StringValue()
	}

	now := time.Now().UnixMilli()
	if err := h.engine.Lockdown().Activate(i.GuildID, level, reason, now); err != nil {
		if errors.Is(err, lockdown.ErrAlreadyActive) {
			cur, _ := h.engine.Lockdown().Active(i.GuildID)
			return fmt.Errorf("a %s lockdown is already active; lift it first", cur)
		}
		return fmt.Errorf("lockdown failed: %w", err)
	}

	logging.Warn("guild %s: manual %s lockdown by %s (%s)",
		i.GuildID, level, i.Member.User.ID, reason)
	return respondOK(s, i, fmt.Sprintf("Server locked down at level **%s**. Use `/lockdown lift` to restore.", level))
}

func (h *Handler) handleLockdownLift(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	if err := h.engine.Lockdown().Deactivate(i.GuildID); err != nil {
		if errors.Is(err, lockdown.ErrNotActive) {
			return fmt.Errorf("no lockdown is active")
		}
		return fmt.Errorf("failed to lift lockdown: %w", err)
	}

	logging.Info("guild %s: lockdown lifted by %s", i.GuildID, i.Member.User.ID)
	return respondOK(s, i, "Lockdown lifted. Channel permissions restored.")
}

func (h *Handler) handleRaidClear(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	if !h.engine.Raid().Active(i.GuildID) {
		return fmt.Errorf("no raid alert is active")
	}
	h.engine.Raid().Deactivate(i.GuildID)

	logging.Info("guild %s: raid alert cleared by %s", i.GuildID, i.Member.User.ID)
	return respondOK(s, i, "Raid alert cleared. Joins are scored normally again.")
}
