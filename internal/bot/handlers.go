package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/engine"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/watchdog"
)

// SettingsFunc resolves per-guild settings for the event path.
type SettingsFunc func(guildID string) *config.GuildSettings

// Handlers translates gateway events into engine events. All heavy work
// happens inside the engine; these stay thin.
type Handlers struct {
	session  *Session
	engine   *engine.Engine
	settings SettingsFunc
	dog      *watchdog.Watchdog
}

func NewHandlers(session *Session, eng *engine.Engine, settings SettingsFunc, dog *watchdog.Watchdog) *Handlers {
	return &Handlers{
		session:  session,
		engine:   eng,
		settings: settings,
		dog:      dog,
	}
}

func mapAuditAction(t discordgo.AuditLogAction) (models.AuditAction, bool) {
	switch t {
	case discordgo.AuditLogActionChannelDelete:
		return models.AuditChannelDelete, true
	case discordgo.AuditLogActionChannelCreate:
		return models.AuditChannelCreate, true
	case discordgo.AuditLogActionRoleDelete:
		return models.AuditRoleDelete, true
	case discordgo.AuditLogActionRoleCreate:
		return models.AuditRoleCreate, true
	case discordgo.AuditLogActionMemberBanAdd:
		return models.AuditBan, true
	case discordgo.AuditLogActionMemberKick:
		return models.AuditKick, true
	case discordgo.AuditLogActionWebhookCreate:
		return models.AuditWebhookCreate, true
	}
	return 0, false
}

// Register wires every gateway handler onto the session.
func (h *Handlers) Register() {
	dg := h.session.Discord()
	dg.AddHandler(h.onGuildCreate)
	dg.AddHandler(h.onMessageCreate)
	dg.AddHandler(h.onMemberAdd)
	dg.AddHandler(h.onMemberRemove)
	dg.AddHandler(h.onAuditLogEntry)
}

func (h *Handlers) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	logging.Info("guild loaded: %s (%s), %d members", g.Name, g.ID, g.MemberCount)
}

func (h *Handlers) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.dog.Heartbeat("gateway")

	if m.Author == nil || m.GuildID == "" || m.Author.ID == h.session.BotID {
		return
	}

	source := models.SourceHuman
	if m.WebhookID != "" {
		source = models.SourceWebhook
	} else if m.Author.Bot {
		source = models.SourceBot
	}

	gs := h.settings(m.GuildID)

	// Messages in the captcha channel are challenge answers first.
	if source == models.SourceHuman && gs.CaptchaEnabled && gs.CaptchaChannelID == m.ChannelID {
		if _, err := h.engine.VerifyChallenge(m.GuildID, m.Author.ID, m.Content); err == nil {
			s.ChannelMessageDelete(m.ChannelID, m.ID)
			return
		}
		// No pending challenge for this user; treat as a normal message.
	}

	admin := false
	if perms, err := s.State.MessagePermissions(m.Message); err == nil {
		admin = perms&discordgo.PermissionAdministrator != 0
	}

	h.engine.HandleMessage(&models.MessageEvent{
		GuildID:      m.GuildID,
		ChannelID:    m.ChannelID,
		MessageID:    m.ID,
		AuthorID:     m.Author.ID,
		Content:      m.Content,
		MentionCount: len(m.Mentions),
		Source:       source,
		AuthorAdmin:  admin,
		Timestamp:    m.Timestamp.UnixMilli(),
	})
}

func (h *Handlers) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	h.dog.Heartbeat("gateway")

	if m.User == nil || m.User.ID == h.session.BotID {
		return
	}

	created, err := discordgo.SnowflakeTimestamp(m.User.ID)
	if err != nil {
		created = time.Time{}
	}

	joined := m.JoinedAt
	if joined.IsZero() {
		joined = time.Now()
	}

	h.engine.HandleJoin(&models.JoinEvent{
		GuildID:        m.GuildID,
		UserID:         m.User.ID,
		Username:       m.User.Username,
		AccountCreated: created.UnixMilli(),
		HasAvatar:      m.User.Avatar != "",
		Timestamp:      joined.UnixMilli(),
	})
}

func (h *Handlers) onMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.User == nil {
		return
	}
	h.engine.CancelChallenge(m.GuildID, m.User.ID)
}

// onAuditLogEntry is the nuke guard's feed: one gateway event per
// destructive administrative action, actor included, no audit-log
// polling needed.
func (h *Handlers) onAuditLogEntry(s *discordgo.Session, e *discordgo.GuildAuditLogEntryCreate) {
	h.dog.Heartbeat("gateway")

	if e.ActionType == nil || e.UserID == h.session.BotID {
		return
	}
	action, ok := mapAuditAction(*e.ActionType)
	if !ok {
		return
	}

	actorBot := false
	if member, err := s.State.Member(e.GuildID, e.UserID); err == nil && member.User != nil {
		actorBot = member.User.Bot
	}

	h.engine.HandleAudit(&models.AuditEvent{
		GuildID:   e.GuildID,
		ActorID:   e.UserID,
		ActorBot:  actorBot,
		TargetID:  e.TargetID,
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	})
}
