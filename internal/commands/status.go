package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/config"
)

// guildSettings loads the stored settings or falls back to defaults for
// guilds that have never been configured.
func (h *Handler) guildSettings(guildID string) (*config.GuildSettings, error) {
	gs, err := h.store.GuildSettings(guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return config.DefaultGuildSettings(guildID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return gs, nil
}

func onOff(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

func channelMention(id string) string {
	if id == "" {
		return "Not set"
	}
	return fmt.Sprintf("<#%s>", id)
}

func (h *Handler) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	guildID := i.GuildID
	gs, err := h.guildSettings(guildID)
	if err != nil {
		return err
	}

	raidLine := "No active raid"
	if h.engine.Raid().Active(guildID) {
		since := h.engine.Raid().ActivatedAt(guildID) / 1000
		raidLine = fmt.Sprintf("⚠️ **Raid active** since <t:%d:R>", since)
	}

	lockLine := "Not locked down"
	if level, ok := h.engine.Lockdown().Active(guildID); ok {
		lockLine = fmt.Sprintf("🔒 **%s** lockdown active", level)
	}

	quarantineRole := "Not set"
	if gs.QuarantineRoleID != "" {
		quarantineRole = fmt.Sprintf("<@&%s>", gs.QuarantineRoleID)
	}

	embed := &discordgo.MessageEmbed{
		Title: "🛡️ Protection Status",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Anti-Spam",
				Value: fmt.Sprintf("%s (level: %s)",
					onOff(gs.AntiSpamEnabled), gs.AntiSpamLevel),
				Inline: true,
			},
			{
				Name: "Anti-Raid",
				Value: fmt.Sprintf("%s (mode: %s)",
					onOff(gs.AntiRaidEnabled), gs.AntiRaidMode),
				Inline: true,
			},
			{
				Name:   "Join Verification",
				Value:  onOff(gs.CaptchaEnabled),
				Inline: true,
			},
			{Name: "Raid State", Value: raidLine, Inline: false},
			{Name: "Lockdown", Value: lockLine, Inline: false},
			{Name: "Log Channel", Value: channelMention(gs.LogChannelID), Inline: true},
			{Name: "Captcha Channel", Value: channelMention(gs.CaptchaChannelID), Inline: true},
			{Name: "Quarantine Role", Value: quarantineRole, Inline: true},
			{
				Name: "Spam Ladder",
				Value: fmt.Sprintf("Warn ≥ %d · Mute ≥ %d · Kick ≥ %d · Ban ≥ %d",
					gs.WarnThreshold, gs.MuteThreshold, gs.KickThreshold, gs.BanThreshold),
				Inline: false,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "TheoProtect"},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	return respondEmbed(s, i, embed)
}
