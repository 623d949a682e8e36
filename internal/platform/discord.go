package platform

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const dangerousPerms = discordgo.PermissionAdministrator |
	discordgo.PermissionManageServer |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageRoles |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers

// DiscordActions implements Actions on top of a discordgo session.
type DiscordActions struct {
	session *discordgo.Session
}

func NewDiscordActions(session *discordgo.Session) *DiscordActions {
	return &DiscordActions{session: session}
}

func (d *DiscordActions) DeleteMessage(channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID)
}

func (d *DiscordActions) BulkDeleteMessages(channelID string, messageIDs []string) error {
	return d.session.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (d *DiscordActions) TimeoutMember(guildID, userID string, durationMs int64, reason string) error {
	until := time.Now().Add(time.Duration(durationMs) * time.Millisecond)
	return d.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithAuditLogReason(reason))
}

func (d *DiscordActions) KickMember(guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (d *DiscordActions) BanMember(guildID, userID, reason string, purgeSeconds int) error {
	days := purgeSeconds / 86400
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, days)
}

func (d *DiscordActions) SetChannelPermissionOverwrite(channelID, subjectID string, allow, deny int64) error {
	return d.session.ChannelPermissionSet(channelID, subjectID, discordgo.PermissionOverwriteTypeRole, allow, deny)
}

func (d *DiscordActions) RemoveChannelPermissionOverwrite(channelID, subjectID string) error {
	return d.session.ChannelPermissionDelete(channelID, subjectID)
}

func (d *DiscordActions) AddRole(guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *DiscordActions) RemoveRole(guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (d *DiscordActions) MemberRoles(guildID, userID string) ([]Role, error) {
	member, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}

	guildRoles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch roles for guild %s: %w", guildID, err)
	}
	byID := make(map[string]*discordgo.Role, len(guildRoles))
	for _, r := range guildRoles {
		byID[r.ID] = r
	}

	roles := make([]Role, 0, len(member.Roles))
	for _, roleID := range member.Roles {
		r, ok := byID[roleID]
		if !ok {
			continue
		}
		roles = append(roles, Role{
			ID:        r.ID,
			Dangerous: r.Permissions&int64(dangerousPerms) != 0,
		})
	}
	return roles, nil
}

func (d *DiscordActions) GuildChannels(guildID string) ([]Channel, error) {
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch channels for guild %s: %w", guildID, err)
	}

	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			continue
		}
		c := Channel{ID: ch.ID}
		for _, ow := range ch.PermissionOverwrites {
			// @everyone overwrite shares the guild's ID
			if ow.ID == guildID {
				c.Overwrite = &OverwriteBits{Allow: ow.Allow, Deny: ow.Deny}
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *DiscordActions) GuildInvites(guildID string) ([]string, error) {
	invites, err := d.session.GuildInvites(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch invites for guild %s: %w", guildID, err)
	}
	codes := make([]string, 0, len(invites))
	for _, inv := range invites {
		codes = append(codes, inv.Code)
	}
	return codes, nil
}

func (d *DiscordActions) DeleteInvite(code, reason string) error {
	_, err := d.session.InviteDelete(code, discordgo.WithAuditLogReason(reason))
	return err
}

func (d *DiscordActions) RecentChannelMessages(channelID string, sinceMs int64, limit int) ([]ChannelMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("fetch messages for channel %s: %w", channelID, err)
	}

	out := make([]ChannelMessage, 0, len(msgs))
	for _, m := range msgs {
		ts := m.Timestamp.UnixMilli()
		if ts < sinceMs {
			continue
		}
		out = append(out, ChannelMessage{
			ID:        m.ID,
			AuthorID:  m.Author.ID,
			AuthorBot: m.Author.Bot,
			Timestamp: ts,
		})
	}
	return out, nil
}
