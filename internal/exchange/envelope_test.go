package exchange

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		to   []string
		data any
	}{
		{[]string{Clean, NoSpam}, map[string]any{"group_id": float64(-1001234567890), "message_id": float64(42)}},
		{[]string{Manage}, true},
		{[]string{Captcha}, "text"},
		{[]string{Backup, Manage}, []any{float64(1), "two", nil}},
		{[]string{Warn}, nil},
	}
	for _, c := range cases {
		text, err := Encode(User, c.to, ActionUpdate, TypeDeclare, c.data)
		assert.NoError(err)

		env, ok := Decode(text)
		assert.True(ok)
		assert.Equal(Envelope{From: User, To: c.to, Action: ActionUpdate, Type: TypeDeclare, Data: c.data}, env)
	}
}

func TestEncodeDropsSender(t *testing.T) {
	assert := assert.New(t)

	text, err := Encode(User, []string{Clean, User, Warn}, ActionAdd, TypeBad, nil)
	assert.NoError(err)

	env, ok := Decode(text)
	assert.True(ok)
	assert.Equal([]string{Clean, Warn}, env.To)
	assert.False(env.For(User))
}

func TestEncodeIsIndentedJSON(t *testing.T) {
	text, err := Encode(User, []string{Manage}, ActionBackup, TypeHide, true)
	assert.NoError(t, err)
	assert.Contains(t, text, "\n    \"from\": \"USER\"")
}

func TestDecodeToleratesSurroundingText(t *testing.T) {
	env, ok := Decode("```\n{\"from\": \"CLEAN\", \"to\": [\"USER\"], \"action\": \"help\", \"type\": \"ban\", \"data\": {\"group_id\": -100, \"user_id\": 7}}\n```")
	assert.True(t, ok)
	assert.Equal(t, Clean, env.From)
	assert.True(t, env.For(User))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"{",
		"}{",
		"[1, 2, 3]",
		`{"from": "CLEAN"}`,
		`{"from": "CLEAN", "to": ["USER"], "action": "help"}`,
		`{"from": "", "to": ["USER"], "action": "help", "type": "ban"}`,
		`{"from": 1, "to": ["USER"], "action": "help", "type": "ban"}`,
		`{"from": "CLEAN", "to": "USER", "action": "help", "type": "ban"}`,
		`{"from": "CLEAN", "to": [1], "action": "help", "type": "ban"}`,
		`{"from": "CLEAN", "to": ["USER"], "action": "help", "type": "ban"`,
	}
	for _, in := range inputs {
		_, ok := Decode(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	rnd := rand.New(rand.NewSource(79))
	alphabet := []byte(`{}[]":,\ abcdefUSERtofromactiontypedata0123456789-.truefalsenull`)
	for i := 0; i < 2000; i++ {
		b := make([]byte, rnd.Intn(64))
		for j := range b {
			b[j] = alphabet[rnd.Intn(len(alphabet))]
		}
		assert.NotPanics(t, func() { Decode(string(b)) })
	}
}

func TestDecodeData(t *testing.T) {
	assert := assert.New(t)

	env, ok := Decode(`{"from": "CONFIG", "to": ["USER"], "action": "config", "type": "commit",
		"data": {"group_id": "-1001", "config": {"default": false, "delete": true, "gb": false, "gr": true, "sb": true}}}`)
	assert.True(ok)

	var p ConfigCommitPayload
	assert.NoError(DecodeData(env.Data, &p))
	assert.Equal(int64(-1001), p.GroupID)
	assert.True(p.Config.GlobalRestrict)
	assert.True(p.Config.SubscribeBan)
	assert.True(p.Config.Delete)
	assert.False(p.Config.GlobalBan)
}
