package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/bot"
	"go-theoprotect/internal/engine"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/store"
	"go-theoprotect/internal/watchdog"
)

// Handler manages all command interactions
type Handler struct {
	session *bot.Session
	engine  *engine.Engine
	store   *store.Store
	dog     *watchdog.Watchdog
}

var globalHandler *Handler

// Initialize creates the command handler and registers the slash commands.
func Initialize(session *bot.Session, eng *engine.Engine, st *store.Store, dog *watchdog.Watchdog) error {
	globalHandler = &Handler{
		session: session,
		engine:  eng,
		store:   st,
		dog:     dog,
	}

	session.Discord().AddHandler(globalHandler.handleInteraction)

	commands := GetAllCommands()
	if err := session.RegisterCommands(commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	logging.Info("Command handler initialized with %d commands", len(commands))
	return nil
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	h.handleCommand(s, i)
}

// handleCommand routes slash commands to their handlers
func (h *Handler) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil {
		respondError(s, i, "this command only works inside a server")
		return
	}

	data := i.ApplicationCommandData()

	var err error
	switch data.Name {
	case "protect":
		if len(data.Options) > 0 {
			switch data.Options[0].Name {
			case "status":
				err = h.handleStatus(s, i)
			case "stats":
				err = h.handleStats(s, i)
			case "antispam":
				err = h.handleSetAntiSpam(s, i, data.Options[0])
			case "antiraid":
				err = h.handleSetAntiRaid(s, i, data.Options[0])
			case "captcha":
				err = h.handleSetCaptcha(s, i, data.Options[0])
			case "logchannel":
				err = h.handleSetLogChannel(s, i, data.Options[0])
			case "quarantine":
				err = h.handleSetQuarantine(s, i, data.Options[0])
			}
		}
	case "lockdown":
		if len(data.Options) > 0 {
			switch data.Options[0].Name {
			case "start":
				err = h.handleLockdownStart(s, i, data.Options[0])
			case "lift":
				err = h.handleLockdownLift(s, i)
			}
		}
	case "raid":
		if len(data.Options) > 0 && data.Options[0].Name == "clear" {
			err = h.handleRaidClear(s, i)
		}
	case "actions":
		if len(data.Options) > 0 && data.Options[0].Name == "recent" {
			err = h.handleRecentActions(s, i, data.Options[0])
		}
	default:
		err = fmt.Errorf("unknown command: %s", data.Name)
	}

	if err != nil {
		logging.Error("Command error [%s]: %v", data.Name, err)
		respondError(s, i, err.Error())
	}
}

// respondError sends an ephemeral error message
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ Error: %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondEmbed sends a single-embed response.
func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// optionMap flattens a subcommand's options for lookup by name.
func optionMap(sub *discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(sub.Options))
	for _, opt := range sub.Options {
		m[opt.Name] = opt
	}
	return m
}
