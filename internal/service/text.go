package service

import (
	"fmt"
	"html"
	"strings"

	"tg-exchange/internal/models"
)

// textBuilder writes "key: value" lines with translated keys.
type textBuilder struct {
	strings.Builder
}

func (b *textBuilder) field(key, value string) *textBuilder {
	b.WriteString(models.T(key))
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
	return b
}

func code(v any) string {
	return "<code>" + escape(fmt.Sprint(v)) + "</code>"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func linkTo(url, text string) string {
	return fmt.Sprintf("<a href=\"%s\">%s</a>", url, escape(text))
}

func mention(uid int64) string {
	return linkTo(fmt.Sprintf("tg://user?id=%d", uid), fmt.Sprint(uid))
}
