package commands

import "github.com/bwmarrin/discordgo"

// GetAllCommands returns all application commands
func GetAllCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "protect",
			Description: "Manage abuse protection",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "status",
					Description: "Show protection status for this server",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "stats",
					Description: "Show bot and host statistics",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "antispam",
					Description: "Configure the spam detector",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "enabled",
							Description: "Enable or disable spam detection",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    true,
						},
						{
							Name:        "level",
							Description: "Detection sensitivity",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    false,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Low", Value: "low"},
								{Name: "Medium", Value: "medium"},
								{Name: "High", Value: "high"},
								{Name: "Extreme", Value: "extreme"},
							},
						},
					},
				},
				{
					Name:        "antiraid",
					Description: "Configure the raid detector",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "mode",
							Description: "What happens when a raid is detected",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Off", Value: "off"},
								{Name: "Detection only", Value: "detection"},
								{Name: "Protection", Value: "protection"},
								{Name: "Protection + lockdown", Value: "lockdown"},
							},
						},
					},
				},
				{
					Name:        "captcha",
					Description: "Configure join verification",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "enabled",
							Description: "Require new members to answer a challenge",
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Required:    true,
						},
						{
							Name:        "channel",
							Description: "Channel where challenges are posted and answered",
							Type:        discordgo.ApplicationCommandOptionChannel,
							Required:    false,
						},
					},
				},
				{
					Name:        "logchannel",
					Description: "Set the channel for enforcement logs",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "channel",
							Description: "Log channel",
							Type:        discordgo.ApplicationCommandOptionChannel,
							Required:    true,
						},
					},
				},
				{
					Name:        "quarantine",
					Description: "Set the role given to quarantined members",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "role",
							Description: "Quarantine role",
							Type:        discordgo.ApplicationCommandOptionRole,
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "lockdown",
			Description: "Manage channel lockdowns",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "start",
					Description: "Lock the server down",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "level",
							Description: "How much gets restricted",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Soft (no new messages)", Value: "soft"},
								{Name: "Medium (no attachments or threads)", Value: "medium"},
								{Name: "Hard (no voice, invites revoked)", Value: "hard"},
								{Name: "Raid (channels hidden)", Value: "raid"},
							},
						},
						{
							Name:        "reason",
							Description: "Reason recorded in the audit log",
							Type:        discordgo.ApplicationCommandOptionString,
							Required:    false,
						},
					},
				},
				{
					Name:        "lift",
					Description: "Lift the lockdown and restore channel permissions",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{
			Name:        "raid",
			Description: "Raid response controls",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "clear",
					Description: "Clear an active raid alert",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{
			Name:        "actions",
			Description: "Recent enforcement actions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "recent",
					Description: "Show the most recent enforcement actions",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Name:        "limit",
							Description: "How many entries to show (default 10)",
							Type:        discordgo.ApplicationCommandOptionInteger,
							Required:    false,
						},
					},
				},
			},
		},
	}
}
