// Package bot owns the gateway connection and translates Discord events
// into the engine's event model.
package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/logging"
)

type Session struct {
	discord *discordgo.Session
	BotID   string
}

func NewSession(token string) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildModeration |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildWebhooks |
		discordgo.IntentsMessageContent

	return &Session{discord: dg}, nil
}

// Discord exposes the underlying session for the notifier and platform
// adapter.
func (s *Session) Discord() *discordgo.Session {
	return s.discord
}

func (s *Session) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if s.discord.State.User != nil {
		s.BotID = s.discord.State.User.ID
		logging.Info("bot connected as %s (%s)", s.discord.State.User.Username, s.BotID)
	}
	return nil
}

func (s *Session) Close() error {
	if s.discord != nil {
		return s.discord.Close()
	}
	return nil
}

// GuildOwner resolves a guild's owner from state, falling back to the
// API when the guild is not cached yet.
func (s *Session) GuildOwner(guildID string) string {
	if g, err := s.discord.State.Guild(guildID); err == nil && g.OwnerID != "" {
		return g.OwnerID
	}
	g, err := s.discord.Guild(guildID)
	if err != nil {
		logging.Warn("owner lookup for guild %s failed: %v", guildID, err)
		return ""
	}
	return g.OwnerID
}

// RegisterCommands creates the slash commands globally.
func (s *Session) RegisterCommands(commands []*discordgo.ApplicationCommand) error {
	for _, cmd := range commands {
		if _, err := s.discord.ApplicationCommandCreate(s.discord.State.User.ID, "", cmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		logging.Info("registered command /%s", cmd.Name)
	}
	return nil
}
