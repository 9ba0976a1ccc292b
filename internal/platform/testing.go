package platform

import (
	"context"
	"fmt"
	"os"
	"sync"

	"tg-exchange/internal/models"
)

// FakeClient is an in-memory Client for tests. It records every call and can
// be told to fail specific methods.
type FakeClient struct {
	mu     sync.Mutex
	self   int64
	nextID int

	Messages  []FakeMessage
	Documents []FakeDocument
	Forwards  []FakeForward
	Deleted   map[int64][]int

	Kicked       []Membership
	Restricted   []Membership
	Unrestricted []Membership
	Unbanned     []Membership
	Purged       []Membership
	Left         []int64

	Common map[int64][]int64
	Admins map[int64][]Member
	Infos  map[int64]models.GroupInfo

	failures map[string]*fakeFailure
}

type FakeMessage struct {
	ID     int
	ChatID int64
	Text   string
	Opts   SendOptions
}

type FakeDocument struct {
	ID      int
	ChatID  int64
	Caption string
	Content []byte
	Path    string
}

type FakeForward struct {
	ID         int
	ToChatID   int64
	FromChatID int64
	MessageID  int
}

type Membership struct {
	ChatID int64
	UserID int64
}

type fakeFailure struct {
	err       error
	remaining int
}

func NewFakeClient(self int64) *FakeClient {
	return &FakeClient{
		self:     self,
		Deleted:  make(map[int64][]int),
		Common:   make(map[int64][]int64),
		Admins:   make(map[int64][]Member),
		Infos:    make(map[int64]models.GroupInfo),
		failures: make(map[string]*fakeFailure),
	}
}

func failureKey(method string, chatID int64) string {
	return fmt.Sprintf("%s:%d", method, chatID)
}

// Fail makes method fail for chatID times times; times < 0 means forever.
// A chatID of 0 matches every chat.
func (f *FakeClient) Fail(method string, chatID int64, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[failureKey(method, chatID)] = &fakeFailure{err: err, remaining: times}
}

// caller holds f.mu
func (f *FakeClient) failure(method string, chatID int64) error {
	for _, key := range []string{failureKey(method, chatID), failureKey(method, 0)} {
		fl, ok := f.failures[key]
		if !ok || fl.remaining == 0 {
			continue
		}
		if fl.remaining > 0 {
			fl.remaining--
		}
		return fl.err
	}
	return nil
}

func (f *FakeClient) id() int {
	f.nextID++
	return f.nextID
}

func (f *FakeClient) SelfID() int64 { return f.self }

func (f *FakeClient) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("SendMessage", chatID); err != nil {
		return 0, err
	}
	id := f.id()
	f.Messages = append(f.Messages, FakeMessage{ID: id, ChatID: chatID, Text: text, Opts: opts})
	return id, nil
}

func (f *FakeClient) SendDocument(ctx context.Context, chatID int64, path, caption string, opts SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("SendDocument", chatID); err != nil {
		return 0, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	id := f.id()
	f.Documents = append(f.Documents, FakeDocument{ID: id, ChatID: chatID, Caption: caption, Content: content, Path: path})
	return id, nil
}

func (f *FakeClient) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ForwardMessage", toChatID); err != nil {
		return 0, err
	}
	id := f.id()
	f.Forwards = append(f.Forwards, FakeForward{ID: id, ToChatID: toChatID, FromChatID: fromChatID, MessageID: messageID})
	return id, nil
}

func (f *FakeClient) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("DeleteMessages", chatID); err != nil {
		return err
	}
	f.Deleted[chatID] = append(f.Deleted[chatID], messageIDs...)
	return nil
}

func (f *FakeClient) member(method string, list *[]Membership, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure(method, chatID); err != nil {
		return err
	}
	*list = append(*list, Membership{ChatID: chatID, UserID: userID})
	return nil
}

func (f *FakeClient) KickMember(ctx context.Context, chatID, userID int64) error {
	return f.member("KickMember", &f.Kicked, chatID, userID)
}

func (f *FakeClient) RestrictMember(ctx context.Context, chatID, userID int64) error {
	return f.member("RestrictMember", &f.Restricted, chatID, userID)
}

func (f *FakeClient) UnrestrictMember(ctx context.Context, chatID, userID int64) error {
	return f.member("UnrestrictMember", &f.Unrestricted, chatID, userID)
}

func (f *FakeClient) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return f.member("UnbanMember", &f.Unbanned, chatID, userID)
}

func (f *FakeClient) DeleteHistory(ctx context.Context, chatID, userID int64) error {
	return f.member("DeleteHistory", &f.Purged, chatID, userID)
}

func (f *FakeClient) CommonChats(ctx context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CommonChats", 0); err != nil {
		return nil, err
	}
	return append([]int64(nil), f.Common[userID]...), nil
}

func (f *FakeClient) ChatAdmins(ctx context.Context, chatID int64) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ChatAdmins", chatID); err != nil {
		return nil, err
	}
	return append([]Member(nil), f.Admins[chatID]...), nil
}

func (f *FakeClient) ChatInfo(ctx context.Context, chatID int64) (models.GroupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if info, ok := f.Infos[chatID]; ok {
		return info, nil
	}
	return models.NewGroupInfo(chatID, fmt.Sprintf("group %d", chatID), ""), nil
}

func (f *FakeClient) DownloadFile(ctx context.Context, fileID, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("DownloadFile", 0); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(fileID), 0o600)
}

func (f *FakeClient) LeaveChat(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("LeaveChat", chatID); err != nil {
		return err
	}
	f.Left = append(f.Left, chatID)
	return nil
}

// MessagesTo returns the messages sent to one chat.
func (f *FakeClient) MessagesTo(chatID int64) []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeMessage
	for _, m := range f.Messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns copies of the member action lists.
func (f *FakeClient) Snapshot() (kicked, restricted, purged, unbanned []Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := func(l []Membership) []Membership { return append([]Membership(nil), l...) }
	return cp(f.Kicked), cp(f.Restricted), cp(f.Purged), cp(f.Unbanned)
}
