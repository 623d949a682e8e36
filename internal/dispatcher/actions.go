package dispatcher

import (
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/platform"
)

// FastActions wraps a platform adapter and routes bans and kicks through
// the fast HTTP executor. When the fast path refuses (rate limited) or
// fails, the wrapped adapter is the fallback.
type FastActions struct {
	platform.Actions
	fast *FastBanExecutor
}

func NewFastActions(base platform.Actions, fast *FastBanExecutor) *FastActions {
	return &FastActions{Actions: base, fast: fast}
}

func (fa *FastActions) BanMember(guildID, userID, reason string, purgeSeconds int) error {
	elapsed, err := fa.fast.ExecuteBan(guildID, userID, reason, purgeSeconds)
	if err == nil {
		logging.Info("fast ban %s in guild %s took %dµs", userID, guildID, elapsed)
		return nil
	}
	logging.Warn("fast ban %s in guild %s failed (%v), falling back", userID, guildID, err)
	return fa.Actions.BanMember(guildID, userID, reason, purgeSeconds)
}

func (fa *FastActions) KickMember(guildID, userID, reason string) error {
	err := fa.fast.ExecuteKick(guildID, userID, reason)
	if err == nil {
		return nil
	}
	logging.Warn("fast kick %s in guild %s failed (%v), falling back", userID, guildID, err)
	return fa.Actions.KickMember(guildID, userID, reason)
}
