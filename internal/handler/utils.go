package handler

import (
	"strings"
	"unicode/utf16"

	"github.com/mymmrac/telego"
)

func isGroup(chat telego.Chat) bool {
	return chat.Type == telego.ChatTypeGroup || chat.Type == telego.ChatTypeSupergroup
}

// messageText returns the text or the caption of a message.
func messageText(m telego.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// entityText cuts an entity out of text. Entity offsets count UTF-16 units.
func entityText(text string, e telego.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

// messageURLs lists the distinct links of a message, in order.
func messageURLs(m telego.Message) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	scan := func(text string, entities []telego.MessageEntity) {
		for _, e := range entities {
			switch e.Type {
			case telego.EntityTypeURL:
				add(entityText(text, e))
			case telego.EntityTypeTextLink:
				add(e.URL)
			}
		}
	}
	scan(m.Text, m.Entities)
	scan(m.Caption, m.CaptionEntities)
	if m.LinkPreviewOptions != nil {
		add(m.LinkPreviewOptions.URL)
	}
	return urls
}

// forwardSource returns the user or the chat a message was forwarded from.
func forwardSource(m telego.Message) (uid, cid int64) {
	switch o := m.ForwardOrigin.(type) {
	case *telego.MessageOriginUser:
		return o.SenderUser.ID, 0
	case *telego.MessageOriginChat:
		return 0, o.SenderChat.ID
	case *telego.MessageOriginChannel:
		return 0, o.Chat.ID
	}
	return 0, 0
}

// parseCommand splits "/cmd@bot arg1 arg2". ok is false for non-commands.
func parseCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd = strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}
