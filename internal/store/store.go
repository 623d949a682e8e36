// Package store is the SQLite persistence layer: per-guild settings,
// the action log, and user reputation. The engine only writes through
// it; losing the database degrades to defaults, never to silence.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-theoprotect/internal/config"
	"go-theoprotect/internal/decision"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and prepares the
// schema. WAL keeps the event path from blocking on log writes.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guild_settings (
		guild_id TEXT PRIMARY KEY,
		antispam_enabled INTEGER DEFAULT 1,
		antispam_level TEXT DEFAULT 'medium',
		antiraid_enabled INTEGER DEFAULT 1,
		antiraid_mode TEXT DEFAULT 'detection',
		captcha_enabled INTEGER DEFAULT 0,
		log_channel_id TEXT DEFAULT '',
		captcha_channel_id TEXT DEFAULT '',
		quarantine_role_id TEXT DEFAULT '',
		warn_threshold INTEGER DEFAULT 3,
		mute_threshold INTEGER DEFAULT 5,
		kick_threshold INTEGER DEFAULT 7,
		ban_threshold INTEGER DEFAULT 10,
		created_at INTEGER DEFAULT 0,
		updated_at INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS action_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		detector TEXT NOT NULL,
		verdict TEXT NOT NULL,
		reason TEXT NOT NULL,
		evidence TEXT DEFAULT '',
		action_failed INTEGER DEFAULT 0,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_action_logs_guild ON action_logs(guild_id);
	CREATE INDEX IF NOT EXISTS idx_action_logs_subject ON action_logs(guild_id, subject_id);
	CREATE INDEX IF NOT EXISTS idx_action_logs_timestamp ON action_logs(timestamp);

	CREATE TABLE IF NOT EXISTS reputation (
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		score INTEGER DEFAULT 0,
		updated_at INTEGER DEFAULT 0,
		PRIMARY KEY (guild_id, user_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GuildSettings loads the guild's row, normalized. sql.ErrNoRows is
// passed through so the caller can fall back to defaults explicitly.
func (s *Store) GuildSettings(guildID string) (*config.GuildSettings, error) {
	row := s.db.QueryRow(`
		SELECT antispam_enabled, antispam_level, antiraid_enabled, antiraid_mode,
		       captcha_enabled, log_channel_id, captcha_channel_id, quarantine_role_id,
		       warn_threshold, mute_threshold, kick_threshold, ban_threshold
		FROM guild_settings WHERE guild_id = ?`, guildID)

	var (
		gs        config.GuildSettings
		spamLevel string
		raidMode  string
		spamOn    int
		raidOn    int
		captchaOn int
	)
	err := row.Scan(&spamOn, &spamLevel, &raidOn, &raidMode, &captchaOn,
		&gs.LogChannelID, &gs.CaptchaChannelID, &gs.QuarantineRoleID,
		&gs.WarnThreshold, &gs.MuteThreshold, &gs.KickThreshold, &gs.BanThreshold)
	if err != nil {
		return nil, err
	}

	gs.GuildID = guildID
	gs.AntiSpamEnabled = spamOn != 0
	gs.AntiSpamLevel = config.ParseSpamLevel(spamLevel)
	gs.AntiRaidEnabled = raidOn != 0
	gs.AntiRaidMode = config.ParseAntiRaidMode(raidMode)
	gs.CaptchaEnabled = captchaOn != 0
	gs.Normalize()
	return &gs, nil
}

// SaveGuildSettings upserts the guild's row.
func (s *Store) SaveGuildSettings(gs *config.GuildSettings) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO guild_settings (
			guild_id, antispam_enabled, antispam_level, antiraid_enabled, antiraid_mode,
			captcha_enabled, log_channel_id, captcha_channel_id, quarantine_role_id,
			warn_threshold, mute_threshold, kick_threshold, ban_threshold,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			antispam_enabled = excluded.antispam_enabled,
			antispam_level = excluded.antispam_level,
			antiraid_enabled = excluded.antiraid_enabled,
			antiraid_mode = excluded.antiraid_mode,
			captcha_enabled = excluded.captcha_enabled,
			log_channel_id = excluded.log_channel_id,
			captcha_channel_id = excluded.captcha_channel_id,
			quarantine_role_id = excluded.quarantine_role_id,
			warn_threshold = excluded.warn_threshold,
			mute_threshold = excluded.mute_threshold,
			kick_threshold = excluded.kick_threshold,
			ban_threshold = excluded.ban_threshold,
			updated_at = excluded.updated_at`,
		gs.GuildID, boolInt(gs.AntiSpamEnabled), gs.AntiSpamLevel.String(),
		boolInt(gs.AntiRaidEnabled), gs.AntiRaidMode.String(), boolInt(gs.CaptchaEnabled),
		gs.LogChannelID, gs.CaptchaChannelID, gs.QuarantineRoleID,
		gs.WarnThreshold, gs.MuteThreshold, gs.KickThreshold, gs.BanThreshold,
		now, now)
	return err
}

// ActionRecord is one persisted decision, read back for audit commands.
type ActionRecord struct {
	ID           int64
	GuildID      string
	SubjectID    string
	Detector     string
	Verdict      string
	Reason       string
	Evidence     string
	ActionFailed bool
	Timestamp    int64
}

// LogAction appends the decision to the action log. Evidence is stored
// as JSON; a marshal failure drops the evidence, not the record.
func (s *Store) LogAction(d *decision.Decision) error {
	evidence := ""
	if len(d.Evidence) > 0 {
		if b, err := json.Marshal(d.Evidence); err == nil {
			evidence = string(b)
		}
	}
	_, err := s.db.Exec(`
		INSERT INTO action_logs (guild_id, subject_id, detector, verdict, reason, evidence, action_failed, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.GuildID, d.SubjectID, d.Detector, d.Verdict.String(), d.Reason,
		evidence, boolInt(d.ActionFailed), d.Timestamp)
	return err
}

// RecentActions returns the newest log rows for a guild.
func (s *Store) RecentActions(guildID string, limit int) ([]ActionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, guild_id, subject_id, detector, verdict, reason, evidence, action_failed, timestamp
		FROM action_logs WHERE guild_id = ?
		ORDER BY timestamp DESC LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var failed int
		if err := rows.Scan(&r.ID, &r.GuildID, &r.SubjectID, &r.Detector, &r.Verdict,
			&r.Reason, &r.Evidence, &failed, &r.Timestamp); err != nil {
			return nil, err
		}
		r.ActionFailed = failed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateReputation applies a delta to the user's standing in the guild.
func (s *Store) UpdateReputation(guildID, userID string, delta int) error {
	_, err := s.db.Exec(`
		INSERT INTO reputation (guild_id, user_id, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			score = score + excluded.score,
			updated_at = excluded.updated_at`,
		guildID, userID, delta, time.Now().UnixMilli())
	return err
}

// Reputation reads the user's standing; unknown users are at 0.
func (s *Store) Reputation(guildID, userID string) (int, error) {
	var score int
	err := s.db.QueryRow(`SELECT score FROM reputation WHERE guild_id = ? AND user_id = ?`,
		guildID, userID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return score, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
