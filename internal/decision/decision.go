package decision

// Verdict is the graduated enforcement outcome, ordered least to most
// severe. Threshold ladders always pick the most severe verdict whose
// threshold is met.
type Verdict uint8

const (
	VerdictNone Verdict = iota
	VerdictMonitor
	VerdictDelete
	VerdictWarn
	VerdictTimeout
	VerdictKick
	VerdictQuarantine
	VerdictBan
)

func (v Verdict) String() string {
	switch v {
	case VerdictMonitor:
		return "MONITOR"
	case VerdictDelete:
		return "DELETE"
	case VerdictWarn:
		return "WARN"
	case VerdictTimeout:
		return "TIMEOUT"
	case VerdictKick:
		return "KICK"
	case VerdictQuarantine:
		return "QUARANTINE"
	case VerdictBan:
		return "BAN"
	default:
		return "NONE"
	}
}

// ReputationDelta is the per-verdict reputation adjustment applied after
// enforcement.
func (v Verdict) ReputationDelta() int {
	switch v {
	case VerdictDelete:
		return -2
	case VerdictWarn:
		return -5
	case VerdictTimeout:
		return -10
	case VerdictKick:
		return -20
	case VerdictBan:
		return -50
	default:
		return 0
	}
}

// Decision is the record every detector analysis produces. It is emitted
// to the persistence log whether or not the platform action succeeded.
type Decision struct {
	GuildID      string
	SubjectID    string
	ChannelID    string
	MessageID    string
	Detector     string
	Verdict      Verdict
	Reason       string
	Evidence     map[string]interface{}
	TimeoutMs    int64 // only for VerdictTimeout
	PurgeSeconds int   // only for VerdictBan
	ActionFailed bool
	Timestamp    int64 // unix ms
}
