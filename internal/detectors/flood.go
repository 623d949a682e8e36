package detectors

import (
	"strings"
	"sync"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
	"go-theoprotect/internal/logging"
	"go-theoprotect/internal/models"
	"go-theoprotect/internal/platform"
	"go-theoprotect/internal/window"
)

// Discord caps bulk deletion at 100 messages per call.
const bulkDeleteChunk = 100

// sweepStaleMs expires a look-back sweep flag that never cleared, so a
// crashed sweep cannot block the channel forever.
const sweepStaleMs = 60000

type FloodSanction struct {
	UserID    string
	Verdict   decision.Verdict
	TimeoutMs int64
	Offense   int
}

type FloodResult struct {
	FloodDetected bool
	Oversized     bool
	MessageCount  int
	MessageIDs    []string
	Sanctions     []FloodSanction
	WantsSweep    bool // automated oversized source: look back for siblings
}

// FloodGuard watches channel saturation regardless of who causes it.
// Humans, bots and webhooks all count toward the burst; only humans are
// individually sanctioned.
type FloodGuard struct {
	msgs       *window.Window
	thresholds config.FloodThresholds

	mu       sync.Mutex
	offenses map[string]*offenseEntry
	sweeps   map[string]int64 // channelID -> sweep start ms
}

type offenseEntry struct {
	count  int
	lastAt int64
}

func NewFloodGuard() *FloodGuard {
	return &FloodGuard{
		msgs:       window.New(),
		thresholds: config.DefaultFloodThresholds(),
		offenses:   make(map[string]*offenseEntry),
		sweeps:     make(map[string]int64),
	}
}

func floodKey(guildID, channelID string) string {
	return "flood:" + guildID + ":" + channelID
}

func encodeFloodEntry(ev *models.MessageEvent) string {
	src := "h"
	switch ev.Source {
	case models.SourceBot:
		src = "b"
	case models.SourceWebhook:
		src = "w"
	}
	return ev.MessageID + "|" + ev.AuthorID + "|" + src
}

// Analyze records the message and reports whether the channel crossed the
// burst threshold or the single message is degenerate on its own. The
// returned result carries everything remediation needs; no platform call
// happens here.
func (d *FloodGuard) Analyze(ev *models.MessageEvent, now int64) *FloodResult {
	res := &FloodResult{}
	key := floodKey(ev.GuildID, ev.ChannelID)

	d.msgs.Record(key, now, encodeFloodEntry(ev), d.thresholds.Burst.WindowMs)
	entries := d.msgs.EntriesSince(key, d.thresholds.Burst.WindowMs, now)

	if len(entries) >= d.thresholds.Burst.Limit {
		res.FloodDetected = true
		res.MessageCount = len(entries)

		humans := make(map[string]struct{})
		for _, e := range entries {
			msgID, authorID, src := decodeFloodEntry(e.Payload)
			res.MessageIDs = append(res.MessageIDs, msgID)
			if src == "h" {
				humans[authorID] = struct{}{}
			}
		}
		for userID := range humans {
			res.Sanctions = append(res.Sanctions, d.escalate(ev.GuildID, userID, now))
		}

		d.msgs.Clear(key)
		return res
	}

	if d.isDegenerate(ev.Content) {
		res.Oversized = true
		res.MessageIDs = []string{ev.MessageID}
		if ev.Source != models.SourceHuman {
			res.WantsSweep = true
		} else {
			res.Sanctions = append(res.Sanctions, d.escalate(ev.GuildID, ev.AuthorID, now))
		}
	}

	return res
}

// escalate advances the per-user sanction counter: mute, longer mute,
// then removal.
func (d *FloodGuard) escalate(guildID, userID string, now int64) FloodSanction {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := guildID + ":" + userID
	e, ok := d.offenses[key]
	if !ok {
		e = &offenseEntry{}
		d.offenses[key] = e
	}
	e.count++
	e.lastAt = now

	switch e.count {
	case 1:
		return FloodSanction{UserID: userID, Verdict: decision.VerdictTimeout, TimeoutMs: 5 * 60 * 1000, Offense: 1}
	case 2:
		return FloodSanction{UserID: userID, Verdict: decision.VerdictTimeout, TimeoutMs: 30 * 60 * 1000, Offense: 2}
	default:
		return FloodSanction{UserID: userID, Verdict: decision.VerdictKick, Offense: e.count}
	}
}

func (d *FloodGuard) isDegenerate(content string) bool {
	if len(content) > d.thresholds.MaxLength {
		return true
	}
	if strings.Count(content, "\n")+1 > d.thresholds.MaxLines {
		return true
	}
	return longestRun(content) > d.thresholds.MaxCharRepeat
}

func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// Purge bulk-deletes the flagged messages, chunked to the platform limit,
// falling back to single deletes when the batch call is rejected.
func (d *FloodGuard) Purge(actions platform.Actions, channelID string, messageIDs []string) {
	for start := 0; start < len(messageIDs); start += bulkDeleteChunk {
		end := start + bulkDeleteChunk
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		chunk := messageIDs[start:end]

		if len(chunk) == 1 {
			if err := actions.DeleteMessage(channelID, chunk[0]); err != nil {
				logging.Warn("flood purge: delete %s failed: %v", chunk[0], err)
			}
			continue
		}

		if err := actions.BulkDeleteMessages(channelID, chunk); err != nil {
			logging.Warn("flood purge: bulk delete rejected, falling back to singles: %v", err)
			for _, id := range chunk {
				if err := actions.DeleteMessage(channelID, id); err != nil {
					logging.Warn("flood purge: delete %s failed: %v", id, err)
				}
			}
		}
	}
}

// SweepRecent looks back over the channel's recent history for sibling
// messages from the same automated burst and removes them. At most one
// sweep runs per channel; the in-progress flag self-expires.
func (d *FloodGuard) SweepRecent(actions platform.Actions, channelID string, now int64) {
	d.mu.Lock()
	if start, busy := d.sweeps[channelID]; busy && now-start < sweepStaleMs {
		d.mu.Unlock()
		return
	}
	d.sweeps[channelID] = now
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.sweeps, channelID)
		d.mu.Unlock()
	}()

	msgs, err := actions.RecentChannelMessages(channelID, now-d.thresholds.LookbackMs, bulkDeleteChunk)
	if err != nil {
		logging.Warn("flood sweep: history fetch for %s failed: %v", channelID, err)
		return
	}

	var ids []string
	for _, m := range msgs {
		if m.AuthorBot {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) > 0 {
		logging.Info("flood sweep: removing %d automated messages from %s", len(ids), channelID)
		d.Purge(actions, channelID, ids)
	}
}

// Sweep is the periodic eviction pass; offense counters decay after an
// hour of good behavior.
func (d *FloodGuard) Sweep(maxAgeMs, now int64) {
	d.msgs.SweepAll(maxAgeMs, now)

	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.offenses {
		if now-e.lastAt > 60*60*1000 {
			delete(d.offenses, key)
		}
	}
	for ch, start := range d.sweeps {
		if now-start >= sweepStaleMs {
			delete(d.sweeps, ch)
		}
	}
}

func decodeFloodEntry(payload string) (msgID, authorID, src string) {
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return payload, "", "h"
	}
	return parts[0], parts[1], parts[2]
}
