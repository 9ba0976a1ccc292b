// Package exchange implements the protocol nodes use to talk to each other
// over a shared Telegram channel: the envelope text format, the transport
// that publishes envelopes, and the router that dispatches received ones.
package exchange

import (
	"strings"

	"github.com/bytedance/sonic"
)

// Envelope is one message on the exchange channel.
type Envelope struct {
	From   string   `json:"from"`
	To     []string `json:"to"`
	Action string   `json:"action"`
	Type   string   `json:"type"`
	Data   any      `json:"data"`

	// FileID is the attachment of the received post, if any.
	FileID string `json:"-"`
}

// wire form used for decoding, so that missing fields can be told apart from
// empty ones
type wireEnvelope struct {
	From   *string   `json:"from"`
	To     *[]string `json:"to"`
	Action *string   `json:"action"`
	Type   *string   `json:"type"`
	Data   any       `json:"data"`
}

// Encode renders an envelope as indented JSON. from is removed from to.
func Encode(from string, to []string, action, typ string, data any) (string, error) {
	receivers := make([]string, 0, len(to))
	for _, r := range to {
		if r != from {
			receivers = append(receivers, r)
		}
	}
	raw, err := sonic.ConfigStd.MarshalIndent(Envelope{
		From:   from,
		To:     receivers,
		Action: action,
		Type:   typ,
		Data:   data,
	}, "", "    ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses the envelope carried by a channel post. Text around the JSON
// object is ignored. It never panics; anything that is not a well-formed
// envelope yields ok == false.
func Decode(text string) (env Envelope, ok bool) {
	defer func() {
		if recover() != nil {
			env, ok = Envelope{}, false
		}
	}()

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Envelope{}, false
	}

	var w wireEnvelope
	if err := sonic.ConfigStd.UnmarshalFromString(text[start:end+1], &w); err != nil {
		return Envelope{}, false
	}
	if w.From == nil || w.To == nil || w.Action == nil || w.Type == nil {
		return Envelope{}, false
	}
	if *w.From == "" || *w.Action == "" || *w.Type == "" {
		return Envelope{}, false
	}

	return Envelope{
		From:   *w.From,
		To:     *w.To,
		Action: *w.Action,
		Type:   *w.Type,
		Data:   w.Data,
	}, true
}

// For reports whether the envelope lists name among its receivers.
func (e Envelope) For(name string) bool {
	for _, r := range e.To {
		if r == name {
			return true
		}
	}
	return false
}
