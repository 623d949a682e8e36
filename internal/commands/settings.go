package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/logging"
)

func (h *Handler) saveSettings(gs *config.GuildSettings) error {
	if err := h.store.SaveGuildSettings(gs); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	h.engine.InvalidateSettings(gs.GuildID)
	return nil
}

func respondOK(s *discordgo.Session, i *discordgo.InteractionCreate, message string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("✅ %s", message),
		},
	})
}

func (h *Handler) handleSetAntiSpam(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	gs, err := h.guildSettings(i.GuildID)
	if err != nil {
		return err
	}

	opts := optionMap(sub)
	gs.AntiSpamEnabled = opts["enabled"].BoolValue()
	if level, ok := opts["level"]; ok {
		gs.AntiSpamLevel = config.ParseSpamLevel(level.StringValue())
	}

	if err := h.saveSettings(gs); err != nil {
		return err
	}

	logging.Info("guild %s: antispam %s level=%s (by %s)",
		i.GuildID, onOff(gs.AntiSpamEnabled), gs.AntiSpamLevel, i.Member.User.ID)
	return respondOK(s, i, fmt.Sprintf("Anti-spam is now **%s** at level **%s**.",
		onOff(gs.AntiSpamEnabled), gs.AntiSpamLevel))
}

func (h *Handler) handleSetAntiRaid(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	gs, err := h.guildSettings(i.GuildID)
	if err != nil {
		return err
	}

	opts := optionMap(sub)
	mode := config.ParseAntiRaidMode(opts["mode"].StringValue())
	gs.AntiRaidMode = mode
	gs.AntiRaidEnabled = mode != config.RaidModeOff

	if err := h.saveSettings(gs); err != nil {
		return err
	}

	logging.Info("guild %s: antiraid mode=%s (by %s)", i.GuildID, mode, i.Member.User.ID)
	if mode == config.RaidModeOff {
		return respondOK(s, i, "Anti-raid is now **disabled**.")
	}
	return respondOK(s, i, fmt.Sprintf("Anti-raid is now in **%s** mode.", mode))
}

func (h *Handler) handleSetCaptcha(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	gs, err := h.guildSettings(i.GuildID)
	if err != nil {
		return err
	}

	opts := optionMap(sub)
	gs.CaptchaEnabled = opts["enabled"].BoolValue()
	if ch, ok := opts["channel"]; ok {
		gs.CaptchaChannelID = ch.ChannelValue(nil).ID
	}
	if gs.CaptchaEnabled && gs.CaptchaChannelID == "" {
		return fmt.Errorf("a captcha channel is required to enable join verification")
	}

	if err := h.saveSettings(gs); err != nil {
		return err
	}

	logging.Info("guild %s: captcha %s channel=%s (by %s)",
		i.GuildID, onOff(gs.CaptchaEnabled), gs.CaptchaChannelID, i.Member.User.ID)
	if gs.CaptchaEnabled {
		return respondOK(s, i, fmt.Sprintf("Join verification is now **enabled** in %s.",
			channelMention(gs.CaptchaChannelID)))
	}
	return respondOK(s, i, "Join verification is now **disabled**.")
}

func (h *Handler) handleSetLogChannel(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	gs, err := h.guildSettings(i.GuildID)
	if err != nil {
		return err
	}

	opts := optionMap(sub)
	gs.LogChannelID = opts["channel"].ChannelValue(nil).ID

	if err := h.saveSettings(gs); err != nil {
		return err
	}

	logging.Info("guild %s: log channel=%s (by %s)", i.GuildID, gs.LogChannelID, i.Member.User.ID)
	return respondOK(s, i, fmt.Sprintf("Enforcement logs will be posted in %s.",
		channelMention(gs.LogChannelID)))
}

func (h *Handler) handleSetQuarantine(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	gs, err := h.guildSettings(i.GuildID)
	if err != nil {
		return err
	}

	opts := optionMap(sub)
	role := opts["role"].RoleValue(s, i.GuildID)
	if role == nil {
		return fmt.Errorf("role not found")
	}
	gs.QuarantineRoleID = role.ID

	if err := h.saveSettings(gs); err != nil {
		return err
	}

	logging.Info("guild %s: quarantine role=%s (by %s)", i.GuildID, role.ID, i.Member.User.ID)
	return respondOK(s, i, fmt.Sprintf("Quarantined members will receive <@&%s>.", role.ID))
}
