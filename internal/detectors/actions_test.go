package detectors

import (
	"errors"
	"sync"

	"go-theoprotect/internal/platform"
)

// fakeActions records platform calls and lets tests inject failures.
type fakeActions struct {
	mu sync.Mutex

	deleted     []string
	bulkDeleted [][]string
	timeouts    []fakeTimeout
	kicked      []string
	banned      []string
	rolesTaken  []string

	memberRoles []platform.Role
	recent      []platform.ChannelMessage

	failBulk     bool
	failRoles    bool
	failRecent   bool
	removeErrors map[string]error
}

type fakeTimeout struct {
	userID     string
	durationMs int64
}

func newFakeActions() *fakeActions {
	return &fakeActions{removeErrors: make(map[string]error)}
}

func (f *fakeActions) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeActions) BulkDeleteMessages(channelID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBulk {
		return errors.New("bulk delete rejected")
	}
	f.bulkDeleted = append(f.bulkDeleted, append([]string(nil), messageIDs...))
	return nil
}

func (f *fakeActions) TimeoutMember(guildID, userID string, durationMs int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, fakeTimeout{userID: userID, durationMs: durationMs})
	return nil
}

func (f *fakeActions) KickMember(guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakeActions) BanMember(guildID, userID, reason string, purgeSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakeActions) SetChannelPermissionOverwrite(channelID, subjectID string, allow, deny int64) error {
	return nil
}

func (f *fakeActions) RemoveChannelPermissionOverwrite(channelID, subjectID string) error {
	return nil
}

func (f *fakeActions) AddRole(guildID, userID, roleID string) error {
	return nil
}

func (f *fakeActions) RemoveRole(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErrors[roleID]; err != nil {
		return err
	}
	f.rolesTaken = append(f.rolesTaken, roleID)
	return nil
}

func (f *fakeActions) MemberRoles(guildID, userID string) ([]platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRoles {
		return nil, errors.New("member fetch failed")
	}
	return f.memberRoles, nil
}

func (f *fakeActions) GuildChannels(guildID string) ([]platform.Channel, error) {
	return nil, nil
}

func (f *fakeActions) GuildInvites(guildID string) ([]string, error) {
	return nil, nil
}

func (f *fakeActions) DeleteInvite(code, reason string) error {
	return nil
}

func (f *fakeActions) RecentChannelMessages(channelID string, sinceMs int64, limit int) ([]platform.ChannelMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecent {
		return nil, errors.New("history fetch failed")
	}
	return f.recent, nil
}
