package config

import "go-theoprotect/internal/models"

// RateThreshold is a (limit, window) pair. All detector thresholds reduce
// to this shape; the values below are the tuned defaults carried over from
// production, exposed as configuration rather than burned-in constants.
type RateThreshold struct {
	Limit    int
	WindowMs int64
}

// SpamRateMatrix maps the guild's anti-spam level to the message-rate
// threshold. Stricter levels flag on fewer messages in the same window.
var SpamRateMatrix = map[SpamLevel]RateThreshold{
	SpamLevelLow:     {Limit: 8, WindowMs: 5000},
	SpamLevelMedium:  {Limit: 6, WindowMs: 5000},
	SpamLevelHigh:    {Limit: 5, WindowMs: 5000},
	SpamLevelExtreme: {Limit: 4, WindowMs: 5000},
}

func SpamRateFor(level SpamLevel) RateThreshold {
	if t, ok := SpamRateMatrix[level]; ok {
		return t
	}
	return SpamRateMatrix[SpamLevelMedium]
}

// SpamLimits are the remaining per-message ceilings.
type SpamLimits struct {
	MaxDuplicates   int
	DuplicateWindow int64
	MaxMentions     int
	MaxEmojis       int
	MaxLinks        int
}

func DefaultSpamLimits() SpamLimits {
	return SpamLimits{
		MaxDuplicates:   3,
		DuplicateWindow: 30000,
		MaxMentions:     5,
		MaxEmojis:       10,
		MaxLinks:        3,
	}
}

// NukeThresholds is the per-action-type table for the destructive-action
// guard. Crossing Limit within WindowMs on the Limit-th action triggers.
var NukeThresholds = map[models.AuditAction]RateThreshold{
	models.AuditChannelDelete: {Limit: 3, WindowMs: 10000},
	models.AuditChannelCreate: {Limit: 5, WindowMs: 10000},
	models.AuditRoleDelete:    {Limit: 3, WindowMs: 10000},
	models.AuditRoleCreate:    {Limit: 5, WindowMs: 10000},
	models.AuditBan:           {Limit: 5, WindowMs: 30000},
	models.AuditKick:          {Limit: 5, WindowMs: 30000},
	models.AuditWebhookCreate: {Limit: 3, WindowMs: 10000},
}

// FloodThresholds drive the channel-granularity burst detector.
type FloodThresholds struct {
	Burst         RateThreshold
	LookbackMs    int64
	MaxLength     int
	MaxLines      int
	MaxCharRepeat int
}

func DefaultFloodThresholds() FloodThresholds {
	return FloodThresholds{
		Burst:         RateThreshold{Limit: 10, WindowMs: 5000},
		LookbackMs:    30000,
		MaxLength:     1500,
		MaxLines:      30,
		MaxCharRepeat: 20,
	}
}

// RaidThresholds drive join-velocity detection and raid-mode lifecycle.
type RaidThresholds struct {
	JoinBurst      RateThreshold
	AccountAgeDays float64
	QuietPeriodMs  int64
	LowWaterMark   int
}

func DefaultRaidThresholds() RaidThresholds {
	return RaidThresholds{
		JoinBurst:      RateThreshold{Limit: 10, WindowMs: 10000},
		AccountAgeDays: 7,
		QuietPeriodMs:  600000,
		LowWaterMark:   3,
	}
}
