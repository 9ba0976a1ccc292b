package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mymmrac/telego"

	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// deleteMessages accepts at most this many ids per call
const deleteBatch = 100

// TelegoClient implements Client over the Bot API.
type TelegoClient struct {
	bot    *telego.Bot
	groups func() []int64
	index  *MessageIndex
	chats  *expirable.LRU[int64, models.GroupInfo]
	http   *retryablehttp.Client
}

// NewTelegoClient wraps bot. groups lists the managed groups, which is where
// CommonChats looks for the user.
func NewTelegoClient(bot *telego.Bot, groups func() []int64, index *MessageIndex) *TelegoClient {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = time.Second
	hc.RetryWaitMax = 10 * time.Second
	hc.Logger = nil

	return &TelegoClient{
		bot:    bot,
		groups: groups,
		index:  index,
		chats:  expirable.NewLRU[int64, models.GroupInfo](1024, nil, time.Hour),
		http:   hc,
	}
}

func (c *TelegoClient) SelfID() int64 {
	return c.bot.ID()
}

func (c *TelegoClient) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	params := &telego.SendMessageParams{
		ChatID:              telego.ChatID{ID: chatID},
		Text:                text,
		DisableNotification: opts.Silent,
		LinkPreviewOptions:  &telego.LinkPreviewOptions{IsDisabled: true},
	}
	if opts.HTML {
		params.ParseMode = telego.ModeHTML
	}
	if opts.ReplyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: opts.ReplyTo, AllowSendingWithoutReply: true}
	}

	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, Classify(err)
	}
	return msg.MessageID, nil
}

func (c *TelegoClient) SendDocument(ctx context.Context, chatID int64, path, caption string, opts SendOptions) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	params := &telego.SendDocumentParams{
		ChatID:              telego.ChatID{ID: chatID},
		Document:            telego.InputFile{File: f},
		Caption:             caption,
		DisableNotification: opts.Silent,
	}
	if opts.HTML {
		params.ParseMode = telego.ModeHTML
	}
	if opts.ReplyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: opts.ReplyTo, AllowSendingWithoutReply: true}
	}

	msg, err := c.bot.SendDocument(ctx, params)
	if err != nil {
		return 0, Classify(err)
	}
	return msg.MessageID, nil
}

func (c *TelegoClient) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	msg, err := c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:              telego.ChatID{ID: toChatID},
		FromChatID:          telego.ChatID{ID: fromChatID},
		MessageID:           messageID,
		DisableNotification: true,
	})
	if err != nil {
		return 0, Classify(err)
	}
	return msg.MessageID, nil
}

func (c *TelegoClient) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error {
	_, err := c.deleteBatches(ctx, chatID, messageIDs)
	return err
}

// deleteBatches reports how many leading ids were deleted before a failure.
func (c *TelegoClient) deleteBatches(ctx context.Context, chatID int64, messageIDs []int) (int, error) {
	for start := 0; start < len(messageIDs); start += deleteBatch {
		end := min(start+deleteBatch, len(messageIDs))
		err := c.bot.DeleteMessages(ctx, &telego.DeleteMessagesParams{
			ChatID:     telego.ChatID{ID: chatID},
			MessageIDs: messageIDs[start:end],
		})
		if err != nil {
			return start, Classify(err)
		}
	}
	return len(messageIDs), nil
}

func (c *TelegoClient) KickMember(ctx context.Context, chatID, userID int64) error {
	err := c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
	return Classify(err)
}

// RestrictMember takes away every permission.
func (c *TelegoClient) RestrictMember(ctx context.Context, chatID, userID int64) error {
	err := c.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      telego.ChatID{ID: chatID},
		UserID:      userID,
		Permissions: telego.ChatPermissions{},
	})
	return Classify(err)
}

// UnrestrictMember gives back the chat's default permissions.
func (c *TelegoClient) UnrestrictMember(ctx context.Context, chatID, userID int64) error {
	permissions := telego.ChatPermissions{}
	chatInfo, err := c.bot.GetChat(ctx, &telego.GetChatParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err == nil && chatInfo.Permissions != nil {
		permissions = *chatInfo.Permissions
	}

	err = c.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      telego.ChatID{ID: chatID},
		UserID:      userID,
		Permissions: permissions,
	})
	return Classify(err)
}

func (c *TelegoClient) UnbanMember(ctx context.Context, chatID, userID int64) error {
	err := c.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: chatID},
		UserID:       userID,
		OnlyIfBanned: true,
	})
	return Classify(err)
}

// DeleteHistory deletes the messages the index saw from the user. Older
// messages cannot be deleted by bots anyway. Ids stay in the index until
// their batch is deleted, so a retry picks up what is left.
func (c *TelegoClient) DeleteHistory(ctx context.Context, chatID, userID int64) error {
	ids := c.index.Peek(chatID, userID)
	if len(ids) == 0 {
		return nil
	}
	logger.Debugf("Deleting %d messages of user %d in chat %d", len(ids), userID, chatID)
	n, err := c.deleteBatches(ctx, chatID, ids)
	c.index.Forget(chatID, userID, ids[:n])
	return err
}

// CommonChats asks every managed group whether the user is a member. The Bot
// API has no direct way to list the chats shared with a user.
func (c *TelegoClient) CommonChats(ctx context.Context, userID int64) ([]int64, error) {
	var chats []int64
	for _, gid := range c.groups() {
		member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
			ChatID: telego.ChatID{ID: gid},
			UserID: userID,
		})
		if err != nil {
			err = Classify(err)
			if IsTerminal(err) {
				continue
			}
			return chats, err
		}
		switch member.MemberStatus() {
		case telego.MemberStatusCreator, telego.MemberStatusAdministrator, telego.MemberStatusMember:
			chats = append(chats, gid)
		case telego.MemberStatusRestricted:
			if member.MemberIsMember() {
				chats = append(chats, gid)
			}
		}
	}
	return chats, nil
}

func (c *TelegoClient) ChatAdmins(ctx context.Context, chatID int64) ([]Member, error) {
	admins, err := c.bot.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err != nil {
		return nil, Classify(err)
	}

	members := make([]Member, 0, len(admins))
	for _, admin := range admins {
		user := admin.MemberUser()
		m := Member{UserID: user.ID, IsBot: user.IsBot}
		switch a := admin.(type) {
		case *telego.ChatMemberOwner:
			m.IsOwner, m.CanDelete, m.CanRestrict = true, true, true
		case *telego.ChatMemberAdministrator:
			m.CanDelete, m.CanRestrict = a.CanDeleteMessages, a.CanRestrictMembers
		}
		members = append(members, m)
	}
	return members, nil
}

func (c *TelegoClient) ChatInfo(ctx context.Context, chatID int64) (models.GroupInfo, error) {
	if info, ok := c.chats.Get(chatID); ok {
		return info, nil
	}
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err != nil {
		return models.NewGroupInfo(chatID, "", ""), Classify(err)
	}
	info := models.NewGroupInfo(chatID, chat.Title, chat.Username)
	c.chats.Add(chatID, info)
	return info, nil
}

// DownloadFile streams a file from the Bot API file endpoint to dest.
func (c *TelegoClient) DownloadFile(ctx context.Context, fileID, dest string) error {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return Classify(err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", fileID, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	return out.Close()
}

func (c *TelegoClient) LeaveChat(ctx context.Context, chatID int64) error {
	c.chats.Remove(chatID)
	err := c.bot.LeaveChat(ctx, &telego.LeaveChatParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	return Classify(err)
}

// Record feeds the message index used by DeleteHistory.
func (c *TelegoClient) Record(chatID, userID int64, messageID int) {
	c.index.Record(chatID, userID, messageID)
}
