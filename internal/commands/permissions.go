package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// checkPermissions checks if the user may run a configuration command.
// Returns true if:
// 1. User is the server owner, OR
// 2. User has Administrator permission AND their highest role is higher than the bot's
func checkPermissions(s *discordgo.Session, i *discordgo.InteractionCreate) (bool, error) {
	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		guild, err = s.Guild(i.GuildID)
		if err != nil {
			return false, fmt.Errorf("failed to get guild: %w", err)
		}
	}

	if i.Member.User.ID == guild.OwnerID {
		return true, nil
	}

	permissions, err := s.State.UserChannelPermissions(i.Member.User.ID, i.ChannelID)
	if err != nil {
		permissions, err = s.UserChannelPermissions(i.Member.User.ID, i.ChannelID)
		if err != nil {
			return false, fmt.Errorf("failed to get permissions: %w", err)
		}
	}

	hasAdmin := permissions&discordgo.PermissionAdministrator != 0
	if !hasAdmin {
		return false, nil
	}

	botMember, err := s.State.Member(i.GuildID, s.State.User.ID)
	if err != nil {
		botMember, err = s.GuildMember(i.GuildID, s.State.User.ID)
		if err != nil {
			return false, fmt.Errorf("failed to get bot member: %w", err)
		}
	}

	botHighestRole := getHighestRole(guild, botMember.Roles)
	userHighestRole := getHighestRole(guild, i.Member.Roles)

	if userHighestRole != nil && botHighestRole != nil {
		return userHighestRole.Position > botHighestRole.Position, nil
	}

	return hasAdmin, nil
}

func getHighestRole(guild *discordgo.Guild, roleIDs []string) *discordgo.Role {
	var highest *discordgo.Role
	for _, id := range roleIDs {
		for _, role := range guild.Roles {
			if role.ID != id {
				continue
			}
			if highest == nil || role.Position > highest.Position {
				highest = role
			}
		}
	}
	return highest
}

// respondPermissionError sends an ephemeral permission denial.
func respondPermissionError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("🚫 %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// requireAdmin runs the permission check and answers the interaction
// itself when the caller is not allowed.
func requireAdmin(s *discordgo.Session, i *discordgo.InteractionCreate) (bool, error) {
	allowed, err := checkPermissions(s, i)
	if err != nil {
		return false, err
	}
	if !allowed {
		respondPermissionError(s, i, "You need Administrator permission and a role higher than the bot.")
		return false, nil
	}
	return true, nil
}
