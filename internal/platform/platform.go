// Package platform is the boundary to the chat platform. The engine only
// ever talks to the Actions interface; failures stay at this boundary and
// are reported back, never propagated up to abort a decision record.
package platform

// Permission bits shared with the platform's overwrite model. Values are
// the Discord permission flags.
const (
	PermViewChannel          int64 = 1 << 10
	PermSendMessages         int64 = 1 << 11
	PermAddReactions         int64 = 1 << 6
	PermAttachFiles          int64 = 1 << 15
	PermConnect              int64 = 1 << 20
	PermSpeak                int64 = 1 << 21
	PermCreatePublicThreads  int64 = 1 << 35
	PermSendMessagesInThread int64 = 1 << 38
)

// OverwriteBits is one channel permission overwrite, allow and deny.
type OverwriteBits struct {
	Allow int64
	Deny  int64
}

// Channel is the slice of channel state the engine needs: identity plus
// the @everyone overwrite, nil when no overwrite exists.
type Channel struct {
	ID        string
	Overwrite *OverwriteBits
}

// Role carries the platform's judgement of whether the role grants a
// dangerous capability (administrative, channel/role management, ban/kick).
type Role struct {
	ID        string
	Dangerous bool
}

// ChannelMessage is one message from a recent-history fetch.
type ChannelMessage struct {
	ID        string
	AuthorID  string
	AuthorBot bool
	Timestamp int64 // unix ms
}

// Actions is the platform capability surface the engine consumes. Every
// method may fail for platform reasons (permissions, rate limits, target
// gone); callers log and continue.
type Actions interface {
	DeleteMessage(channelID, messageID string) error
	BulkDeleteMessages(channelID string, messageIDs []string) error
	TimeoutMember(guildID, userID string, durationMs int64, reason string) error
	KickMember(guildID, userID, reason string) error
	BanMember(guildID, userID, reason string, purgeSeconds int) error

	SetChannelPermissionOverwrite(channelID, subjectID string, allow, deny int64) error
	RemoveChannelPermissionOverwrite(channelID, subjectID string) error

	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	MemberRoles(guildID, userID string) ([]Role, error)

	GuildChannels(guildID string) ([]Channel, error)
	GuildInvites(guildID string) ([]string, error)
	DeleteInvite(code, reason string) error

	RecentChannelMessages(channelID string, sinceMs int64, limit int) ([]ChannelMessage, error)
}
