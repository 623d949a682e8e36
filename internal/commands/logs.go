package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultLogLimit = 10
	maxLogLimit     = 25
)

func (h *Handler) handleRecentActions(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	limit := defaultLogLimit
	if opt, ok := optionMap(sub)["limit"]; ok {
		limit = int(opt.IntValue())
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	records, err := h.store.RecentActions(i.GuildID, limit)
	if err != nil {
		return fmt.Errorf("failed to read action log: %w", err)
	}

	if len(records) == 0 {
		return respondOK(s, i, "No enforcement actions recorded yet.")
	}

	var lines []string
	for _, r := range records {
		status := ""
		if r.ActionFailed {
			status = " ⚠️ failed"
		}
		lines = append(lines, fmt.Sprintf("<t:%d:R> **%s** → <@%s> (%s)%s",
			r.Timestamp/1000, r.Verdict, r.SubjectID, r.Detector, status))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📋 Recent Actions",
		Color:       0x5865F2,
		Description: strings.Join(lines, "\n"),
		Footer:      &discordgo.MessageEmbedFooter{Text: "TheoProtect"},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	return respondEmbed(s, i, embed)
}
