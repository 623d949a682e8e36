package config

// AntiRaidMode controls what happens to suspicious joins.
type AntiRaidMode uint8

const (
	RaidModeOff AntiRaidMode = iota
	RaidModeDetection
	RaidModeProtection
	RaidModeLockdown
)

func (m AntiRaidMode) String() string {
	switch m {
	case RaidModeOff:
		return "off"
	case RaidModeDetection:
		return "detection"
	case RaidModeProtection:
		return "protection"
	case RaidModeLockdown:
		return "lockdown"
	default:
		return "off"
	}
}

func ParseAntiRaidMode(s string) AntiRaidMode {
	switch s {
	case "detection":
		return RaidModeDetection
	case "protection":
		return RaidModeProtection
	case "lockdown":
		return RaidModeLockdown
	case "off":
		return RaidModeOff
	default:
		return RaidModeDetection
	}
}

// SpamLevel selects the message-rate threshold pair.
type SpamLevel uint8

const (
	SpamLevelLow SpamLevel = iota
	SpamLevelMedium
	SpamLevelHigh
	SpamLevelExtreme
)

func (l SpamLevel) String() string {
	switch l {
	case SpamLevelLow:
		return "low"
	case SpamLevelHigh:
		return "high"
	case SpamLevelExtreme:
		return "extreme"
	default:
		return "medium"
	}
}

func ParseSpamLevel(s string) SpamLevel {
	switch s {
	case "low":
		return SpamLevelLow
	case "high":
		return SpamLevelHigh
	case "extreme":
		return SpamLevelExtreme
	default:
		return SpamLevelMedium
	}
}

// GuildSettings is the per-guild configuration surface, read through the
// persistence layer and defaulted/validated once per read. Detectors take
// it as an explicit argument and never reach back into storage.
type GuildSettings struct {
	GuildID string

	AntiSpamEnabled bool
	AntiSpamLevel   SpamLevel

	AntiRaidEnabled bool
	AntiRaidMode    AntiRaidMode

	CaptchaEnabled bool

	LogChannelID     string
	CaptchaChannelID string
	QuarantineRoleID string

	// Spam score ladder, cumulative per user.
	WarnThreshold int
	MuteThreshold int
	KickThreshold int
	BanThreshold  int
}

// DefaultGuildSettings is the defensive fallback: if the settings row
// cannot be read, the engine still detects and logs but keeps thresholds
// conservative. Detection-only, never silently disabled.
func DefaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{
		GuildID:         guildID,
		AntiSpamEnabled: true,
		AntiSpamLevel:   SpamLevelMedium,
		AntiRaidEnabled: true,
		AntiRaidMode:    RaidModeDetection,
		CaptchaEnabled:  false,
		WarnThreshold:   3,
		MuteThreshold:   5,
		KickThreshold:   7,
		BanThreshold:    10,
	}
}

// Normalize repairs values that came out of storage malformed.
func (s *GuildSettings) Normalize() {
	def := DefaultGuildSettings(s.GuildID)
	if s.WarnThreshold <= 0 {
		s.WarnThreshold = def.WarnThreshold
	}
	if s.MuteThreshold <= s.WarnThreshold {
		s.MuteThreshold = s.WarnThreshold + 2
	}
	if s.KickThreshold <= s.MuteThreshold {
		s.KickThreshold = s.MuteThreshold + 2
	}
	if s.BanThreshold <= s.KickThreshold {
		s.BanThreshold = s.KickThreshold + 3
	}
}
