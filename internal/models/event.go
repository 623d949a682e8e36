package models

// MessageSource distinguishes who produced a message. Flood detection is
// source-agnostic, but sanctions and look-back sweeps depend on it.
type MessageSource uint8

const (
	SourceHuman MessageSource = iota
	SourceBot
	SourceWebhook
)

// MessageEvent is one inbound guild message, flattened to what the
// detectors need. No platform types cross this boundary.
type MessageEvent struct {
	GuildID      string
	ChannelID    string
	MessageID    string
	AuthorID     string
	Content      string
	MentionCount int
	Source       MessageSource
	AuthorAdmin  bool
	Timestamp    int64 // unix ms
}

// JoinEvent is one member joining a guild.
type JoinEvent struct {
	GuildID        string
	UserID         string
	Username       string
	AccountCreated int64 // unix ms
	HasAvatar      bool
	Timestamp      int64 // unix ms
}

// AuditAction identifies a destructive administrative action observed
// through the audit log.
type AuditAction uint8

const (
	AuditChannelDelete AuditAction = iota
	AuditChannelCreate
	AuditRoleDelete
	AuditRoleCreate
	AuditBan
	AuditKick
	AuditWebhookCreate
)

func (a AuditAction) String() string {
	switch a {
	case AuditChannelDelete:
		return "CHANNEL_DELETE"
	case AuditChannelCreate:
		return "CHANNEL_CREATE"
	case AuditRoleDelete:
		return "ROLE_DELETE"
	case AuditRoleCreate:
		return "ROLE_CREATE"
	case AuditBan:
		return "BAN"
	case AuditKick:
		return "KICK"
	case AuditWebhookCreate:
		return "WEBHOOK_CREATE"
	default:
		return "UNKNOWN"
	}
}

// AuditEvent is one destructive action attributed to an actor.
type AuditEvent struct {
	GuildID   string
	ActorID   string
	ActorBot  bool
	TargetID  string
	Action    AuditAction
	Timestamp int64 // unix ms
}
