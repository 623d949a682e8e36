package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/health"
)

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// handleStats shows host, process and component health in one embed.
func (h *Handler) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	allowed, err := requireAdmin(s, i)
	if err != nil || !allowed {
		return err
	}

	// Defer: the CPU probe can take a moment.
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		return err
	}

	snap := health.Gather()

	var componentLines []string
	status := h.dog.Status()
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mark := "✅"
		if !status[name] {
			mark = "⚠️"
		}
		componentLines = append(componentLines, fmt.Sprintf("%s %s", mark, name))
	}
	componentText := "No components registered"
	if len(componentLines) > 0 {
		componentText = strings.Join(componentLines, "\n")
	}

	embed := &discordgo.MessageEmbed{
		Title: "📊 Bot Statistics",
		Color: 0x57F287,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "🖥️ Host",
				Value: fmt.Sprintf("`%s` (%s)\nUptime: %s",
					snap.Hostname, snap.OS, formatUptime(snap.Uptime)),
				Inline: true,
			},
			{
				Name: "⚙️ CPU",
				Value: fmt.Sprintf("%.1f%% across %d cores",
					snap.CPUUsage, snap.CPUCores),
				Inline: true,
			},
			{
				Name: "🧠 Memory",
				Value: fmt.Sprintf("%s / %s (%.1f%%)",
					formatBytes(snap.UsedMemory), formatBytes(snap.TotalMemory), snap.MemoryPercent),
				Inline: true,
			},
			{
				Name: "🐹 Runtime",
				Value: fmt.Sprintf("%s · %d goroutines\nHeap: %s · GC cycles: %d",
					snap.GoVersion, snap.Goroutines, formatBytes(snap.HeapAlloc), snap.NumGC),
				Inline: true,
			},
			{
				Name:   "⏱️ Process Uptime",
				Value:  formatUptime(snap.ProcessUptime),
				Inline: true,
			},
			{
				Name:   "🔌 Latency",
				Value:  fmt.Sprintf("`%dms` websocket", s.HeartbeatLatency().Milliseconds()),
				Inline: true,
			},
			{
				Name:   "🧩 Components",
				Value:  componentText,
				Inline: false,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "TheoProtect"},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
	return err
}
