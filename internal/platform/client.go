// Package platform is the narrow view of the Telegram Bot API the rest of the
// node works against.
package platform

import (
	"context"

	"tg-exchange/internal/models"
)

type SendOptions struct {
	ReplyTo int
	Silent  bool
	HTML    bool
}

// Member is one administrator of a chat.
type Member struct {
	UserID      int64
	IsBot       bool
	IsOwner     bool
	CanDelete   bool
	CanRestrict bool
}

// Client is implemented by TelegoClient and, in tests, FakeClient. Errors are
// classified: see RateLimitError, ErrInvalidDestination and ErrForbidden.
type Client interface {
	SelfID() int64
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	SendDocument(ctx context.Context, chatID int64, path, caption string, opts SendOptions) (int, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error

	KickMember(ctx context.Context, chatID, userID int64) error
	RestrictMember(ctx context.Context, chatID, userID int64) error
	UnrestrictMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	// DeleteHistory removes the user's recent messages in the chat.
	DeleteHistory(ctx context.Context, chatID, userID int64) error

	// CommonChats lists the managed chats the user is currently a member of.
	CommonChats(ctx context.Context, userID int64) ([]int64, error)
	ChatAdmins(ctx context.Context, chatID int64) ([]Member, error)
	ChatInfo(ctx context.Context, chatID int64) (models.GroupInfo, error)
	DownloadFile(ctx context.Context, fileID, dest string) error
	LeaveChat(ctx context.Context, chatID int64) error
}
