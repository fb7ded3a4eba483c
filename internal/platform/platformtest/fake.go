// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// SentMessage records a Send call.
type SentMessage struct {
	ChatID int64
	ID     int
	Text   string
	Opts   platform.SendOptions
}

// Restriction records a Restrict call.
type Restriction struct {
	ChatID int64
	UserID int64
	Perms  platform.Permissions
	Until  time.Time
}

// BanCall records a Ban or Unban call.
type BanCall struct {
	ChatID int64
	UserID int64
	Until  time.Time
	Unban  bool
}

// FakeClient implements platform.Client for testing.
type FakeClient struct {
	mu sync.Mutex

	self    platform.Actor
	members map[string]platform.Member
	chats   map[int64]platform.Chat
	errs    map[string]error
	nextID  int

	Sent         []SentMessage
	Edited       map[int]string
	Deleted      []int
	Restrictions []Restriction
	Bans         []BanCall
	ChatPerms    map[int64]platform.Permissions
	Titles       map[int64]string
	Descriptions map[int64]string
	Pinned       []int
	Unpinned     []int
	UnpinAlls    int
	Answered     []string

	MemberLookups int
}

// NewFakeClient creates a fake whose own user is bot id 1000.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		self:         platform.Actor{ID: 1000, DisplayName: "GroupGuard", Username: "groupguard_bot", IsBot: true},
		members:      make(map[string]platform.Member),
		chats:        make(map[int64]platform.Chat),
		errs:         make(map[string]error),
		nextID:       100,
		Edited:       make(map[int]string),
		ChatPerms:    make(map[int64]platform.Permissions),
		Titles:       make(map[int64]string),
		Descriptions: make(map[int64]string),
	}
}

func memberKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// SetMember registers a member's status in a chat.
func (f *FakeClient) SetMember(chatID int64, user platform.Actor, status platform.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[memberKey(chatID, user.ID)] = platform.Member{User: user, Status: status}
}

// SetBotAdmin gives the bot itself administrator status in a chat.
func (f *FakeClient) SetBotAdmin(chatID int64) {
	f.SetMember(chatID, f.self, platform.StatusAdministrator)
}

// SetChat registers a chat returned by GetChat.
func (f *FakeClient) SetChat(chat platform.Chat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chat.ID] = chat
}

// FailOn makes the named method return err until cleared with a nil err.
func (f *FakeClient) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Texts returns the text of every sent message.
func (f *FakeClient) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Sent))
	for _, m := range f.Sent {
		out = append(out, m.Text)
	}
	return out
}

// LastText returns the most recently sent text, or "".
func (f *FakeClient) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return f.Sent[len(f.Sent)-1].Text
}

// Reset clears recorded calls but keeps members, chats and failures.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = nil
	f.Edited = make(map[int]string)
	f.Deleted = nil
	f.Restrictions = nil
	f.Bans = nil
	f.Pinned = nil
	f.Unpinned = nil
	f.UnpinAlls = 0
	f.Answered = nil
	f.MemberLookups = 0
}

func (f *FakeClient) Self() platform.Actor {
	return f.self
}

func (f *FakeClient) Send(_ context.Context, chatID int64, text string, opts platform.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Send"]; err != nil {
		return 0, err
	}
	f.nextID++
	f.Sent = append(f.Sent, SentMessage{ChatID: chatID, ID: f.nextID, Text: text, Opts: opts})
	return f.nextID, nil
}

func (f *FakeClient) Edit(_ context.Context, _ int64, messageID int, text string, _ platform.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Edit"]; err != nil {
		return err
	}
	f.Edited[messageID] = text
	return nil
}

func (f *FakeClient) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Delete"]; err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *FakeClient) Restrict(_ context.Context, chatID, userID int64, perms platform.Permissions, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Restrict"]; err != nil {
		return err
	}
	f.Restrictions = append(f.Restrictions, Restriction{ChatID: chatID, UserID: userID, Perms: perms, Until: until})
	return nil
}

func (f *FakeClient) Ban(_ context.Context, chatID, userID int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Ban"]; err != nil {
		return err
	}
	f.Bans = append(f.Bans, BanCall{ChatID: chatID, UserID: userID, Until: until})
	return nil
}

func (f *FakeClient) Unban(_ context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Unban"]; err != nil {
		return err
	}
	f.Bans = append(f.Bans, BanCall{ChatID: chatID, UserID: userID, Unban: true})
	return nil
}

func (f *FakeClient) GetMember(_ context.Context, chatID, userID int64) (platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MemberLookups++
	if err := f.errs["GetMember"]; err != nil {
		return platform.Member{}, err
	}
	m, ok := f.members[memberKey(chatID, userID)]
	if !ok {
		return platform.Member{User: platform.Actor{ID: userID}, Status: platform.StatusLeft}, nil
	}
	return m, nil
}

func (f *FakeClient) GetChat(_ context.Context, chatID int64) (platform.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["GetChat"]; err != nil {
		return platform.Chat{}, err
	}
	c, ok := f.chats[chatID]
	if !ok {
		return platform.Chat{}, fmt.Errorf("get chat %d: %w", chatID, platform.ErrNotFound)
	}
	return c, nil
}

func (f *FakeClient) SetChatPermissions(_ context.Context, chatID int64, perms platform.Permissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["SetChatPermissions"]; err != nil {
		return err
	}
	f.ChatPerms[chatID] = perms
	return nil
}

func (f *FakeClient) SetChatTitle(_ context.Context, chatID int64, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["SetChatTitle"]; err != nil {
		return err
	}
	f.Titles[chatID] = title
	return nil
}

func (f *FakeClient) SetChatDescription(_ context.Context, chatID int64, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["SetChatDescription"]; err != nil {
		return err
	}
	f.Descriptions[chatID] = description
	return nil
}

func (f *FakeClient) Pin(_ context.Context, _ int64, messageID int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Pin"]; err != nil {
		return err
	}
	f.Pinned = append(f.Pinned, messageID)
	return nil
}

func (f *FakeClient) Unpin(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Unpin"]; err != nil {
		return err
	}
	f.Unpinned = append(f.Unpinned, messageID)
	return nil
}

func (f *FakeClient) UnpinAll(_ context.Context, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["UnpinAll"]; err != nil {
		return err
	}
	f.UnpinAlls++
	return nil
}

func (f *FakeClient) AnswerCallback(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answered = append(f.Answered, text)
	return nil
}

var _ platform.Client = (*FakeClient)(nil)
