package models

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

type GroupInfo struct {
	GroupID   int64
	GroupName string
	GroupLink string
}

// NewGroupInfo builds the display info for a group. Groups without a public
// username get a private t.me/c link.
func NewGroupInfo(groupID int64, title, username string) GroupInfo {
	info := GroupInfo{GroupID: groupID, GroupName: title}
	if info.GroupName == "" {
		info.GroupName = strconv.FormatInt(groupID, 10)
	}
	if username != "" {
		info.GroupLink = "https://t.me/" + username
	} else {
		id := strings.TrimPrefix(strconv.FormatInt(groupID, 10), "-100")
		info.GroupLink = "https://t.me/c/" + id
	}
	return info
}

func (g GroupInfo) GetLinkedGroupName() string {
	return fmt.Sprintf("<a href=\"%s\">%s</a>", g.GroupLink, html.EscapeString(g.GroupName))
}

// MessageLink points at one message of the group.
func (g GroupInfo) MessageLink(messageID int) string {
	return fmt.Sprintf("%s/%d", g.GroupLink, messageID)
}
