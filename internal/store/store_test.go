package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGuildSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := config.DefaultGuildSettings("g1")
	in.AntiSpamLevel = config.SpamLevelHigh
	in.AntiRaidMode = config.RaidModeLockdown
	in.CaptchaEnabled = true
	in.LogChannelID = "log123"
	in.BanThreshold = 12

	if err := s.SaveGuildSettings(in); err != nil {
		t.Fatalf("SaveGuildSettings: %v", err)
	}
	out, err := s.GuildSettings("g1")
	if err != nil {
		t.Fatalf("GuildSettings: %v", err)
	}

	if out.AntiSpamLevel != config.SpamLevelHigh {
		t.Errorf("spam level = %v, want high", out.AntiSpamLevel)
	}
	if out.AntiRaidMode != config.RaidModeLockdown {
		t.Errorf("raid mode = %v, want lockdown", out.AntiRaidMode)
	}
	if !out.CaptchaEnabled {
		t.Error("captcha flag lost")
	}
	if out.LogChannelID != "log123" {
		t.Errorf("log channel = %q, want log123", out.LogChannelID)
	}
	if out.BanThreshold != 12 {
		t.Errorf("ban threshold = %d, want 12", out.BanThreshold)
	}
}

func TestGuildSettingsMissingRow(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GuildSettings("unknown")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestGuildSettingsUpsert(t *testing.T) {
	s := openTestStore(t)

	in := config.DefaultGuildSettings("g1")
	if err := s.SaveGuildSettings(in); err != nil {
		t.Fatalf("first save: %v", err)
	}
	in.AntiSpamLevel = config.SpamLevelExtreme
	if err := s.SaveGuildSettings(in); err != nil {
		t.Fatalf("second save: %v", err)
	}

	out, err := s.GuildSettings("g1")
	if err != nil {
		t.Fatalf("GuildSettings: %v", err)
	}
	if out.AntiSpamLevel != config.SpamLevelExtreme {
		t.Errorf("spam level after upsert = %v, want extreme", out.AntiSpamLevel)
	}
}

func TestMalformedThresholdsNormalizedOnRead(t *testing.T) {
	s := openTestStore(t)

	in := config.DefaultGuildSettings("g1")
	in.WarnThreshold = 5
	in.MuteThreshold = 2 // below warn, storage should not be trusted
	if err := s.SaveGuildSettings(in); err != nil {
		t.Fatalf("SaveGuildSettings: %v", err)
	}

	out, err := s.GuildSettings("g1")
	if err != nil {
		t.Fatalf("GuildSettings: %v", err)
	}
	if out.MuteThreshold <= out.WarnThreshold {
		t.Errorf("thresholds not repaired: warn %d mute %d", out.WarnThreshold, out.MuteThreshold)
	}
	if out.KickThreshold <= out.MuteThreshold || out.BanThreshold <= out.KickThreshold {
		t.Errorf("ladder not ascending: %d %d %d %d",
			out.WarnThreshold, out.MuteThreshold, out.KickThreshold, out.BanThreshold)
	}
}

func TestActionLogAppendAndRead(t *testing.T) {
	s := openTestStore(t)

	for i, v := range []decision.Verdict{decision.VerdictWarn, decision.VerdictBan} {
		d := &decision.Decision{
			GuildID:   "g1",
			SubjectID: "u1",
			Detector:  "spam",
			Verdict:   v,
			Reason:    "test",
			Evidence:  map[string]interface{}{"count": 6},
			Timestamp: int64(1000 + i),
		}
		if err := s.LogAction(d); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	recs, err := s.RecentActions("g1", 10)
	if err != nil {
		t.Fatalf("RecentActions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Verdict != "BAN" {
		t.Errorf("newest first: got %s, want BAN", recs[0].Verdict)
	}
	if recs[0].Evidence == "" {
		t.Error("evidence JSON missing")
	}

	other, err := s.RecentActions("g2", 10)
	if err != nil {
		t.Fatalf("RecentActions g2: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("guild isolation broken, got %d rows", len(other))
	}
}

func TestReputationAccumulates(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpdateReputation("g1", "u1", -5); err != nil {
		t.Fatalf("UpdateReputation: %v", err)
	}
	if err := s.UpdateReputation("g1", "u1", -10); err != nil {
		t.Fatalf("UpdateReputation: %v", err)
	}

	score, err := s.Reputation("g1", "u1")
	if err != nil {
		t.Fatalf("Reputation: %v", err)
	}
	if score != -15 {
		t.Errorf("score = %d, want -15", score)
	}

	score, err = s.Reputation("g1", "nobody")
	if err != nil || score != 0 {
		t.Errorf("unknown user = (%d, %v), want (0, nil)", score, err)
	}
}
