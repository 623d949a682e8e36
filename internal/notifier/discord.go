// Package notifier renders finalized decisions and verification
// challenges into the guild's configured log channels.
package notifier

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/challenge"
	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
)

// SettingsFunc resolves a guild's settings; the notifier needs the log
// and captcha channel IDs.
type SettingsFunc func(guildID string) *config.GuildSettings

type DiscordNotifier struct {
	session  *discordgo.Session
	settings SettingsFunc
}

func New(session *discordgo.Session, settings SettingsFunc) *DiscordNotifier {
	return &DiscordNotifier{session: session, settings: settings}
}

func verdictColor(v decision.Verdict) int {
	switch v {
	case decision.VerdictBan, decision.VerdictKick:
		return 0xED4245
	case decision.VerdictQuarantine, decision.VerdictTimeout:
		return 0xFEE75C
	case decision.VerdictWarn, decision.VerdictDelete:
		return 0xE67E22
	default:
		return 0x95A5A6
	}
}

// NotifyDecision posts the decision embed to the guild's log channel.
// Fire-and-forget; a missing or misconfigured channel is silently
// skipped.
func (n *DiscordNotifier) NotifyDecision(d *decision.Decision) {
	gs := n.settings(d.GuildID)
	if gs == nil || gs.LogChannelID == "" {
		return
	}

	status := "✅ Applied"
	if d.ActionFailed {
		status = "⚠️ Failed"
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🛡️ %s — %s", d.Detector, d.Verdict),
		Color:       verdictColor(d.Verdict),
		Description: d.Reason,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "👤 Subject",
				Value:  fmt.Sprintf("<@%s> (`%s`)", d.SubjectID, d.SubjectID),
				Inline: true,
			},
			{
				Name:   "⚙️ Enforcement",
				Value:  status,
				Inline: true,
			},
			{
				Name:   "🕐 Timestamp",
				Value:  fmt.Sprintf("<t:%d:F>", d.Timestamp/1000),
				Inline: false,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "TheoProtect",
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	go n.session.ChannelMessageSendEmbed(gs.LogChannelID, embed)
}

// NotifyChallenge posts the verification prompt for a newly joined
// member to the guild's captcha channel.
func (n *DiscordNotifier) NotifyChallenge(guildID, userID string, ch challenge.Challenge) {
	gs := n.settings(guildID)
	if gs == nil || gs.CaptchaChannelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🔐 Verification Required",
		Color:       0x5865F2,
		Description: fmt.Sprintf("<@%s>, reply with the code below within 5 minutes to keep access.", userID),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Code",
				Value: fmt.Sprintf("`%s`", ch.Code),
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "TheoProtect",
		},
	}

	go n.session.ChannelMessageSendEmbed(gs.CaptchaChannelID, embed)
}
