package exchange

import (
	"github.com/go-viper/mapstructure/v2"

	"tg-exchange/internal/models"
)

// Node names.
const (
	Analyze   = "ANALYZE"
	Avatar    = "AVATAR"
	Backup    = "BACKUP"
	Captcha   = "CAPTCHA"
	Clean     = "CLEAN"
	Config    = "CONFIG"
	Emergency = "EMERGENCY"
	Lang      = "LANG"
	Long      = "LONG"
	Manage    = "MANAGE"
	NoFlood   = "NOFLOOD"
	NoPorn    = "NOPORN"
	NoSpam    = "NOSPAM"
	Recheck   = "RECHECK"
	Tip       = "TIP"
	User      = "USER"
	Warn      = "WARN"
	Watch     = "WATCH"
)

// Helpers are the detector nodes that ask for help with bans and deletions.
var Helpers = []string{Clean, Lang, Long, NoFlood, NoPorn, NoSpam, Recheck}

// Actions.
const (
	ActionAdd    = "add"
	ActionBackup = "backup"
	ActionConfig = "config"
	ActionHelp   = "help"
	ActionLeave  = "leave"
	ActionRemove = "remove"
	ActionStatus = "status"
	ActionUpdate = "update"
)

// Types.
const (
	TypeAsk     = "ask"
	TypeApprove = "approve"
	TypeBad     = "bad"
	TypeBan     = "ban"
	TypeCommit  = "commit"
	TypeData    = "data"
	TypeDeclare = "declare"
	TypeDelete  = "delete"
	TypeExcept  = "except"
	TypeForgive = "forgive"
	TypeHide    = "hide"
	TypeIgnore  = "ignore"
	TypeInfo    = "info"
	TypePreview = "preview"
	TypeRefresh = "refresh"
	TypeReply   = "reply"
	TypeRequest = "request"
	TypeScore   = "score"
	TypeStatus  = "status"
	TypeWatch   = "watch"
)

// ID kinds carried by add/remove payloads.
const (
	KindUser    = "user"
	KindChannel = "channel"
)

// Help/delete scopes.
const (
	ScopeGlobal = "global"
	ScopeSingle = "single"
)

type DeclarePayload struct {
	GroupID   int64 `json:"group_id"`
	MessageID int   `json:"message_id"`
}

// IDPayload names a user or channel for add and remove envelopes.
type IDPayload struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type HelpPayload struct {
	GroupID int64  `json:"group_id"`
	UserID  int64  `json:"user_id"`
	Type    string `json:"type"`
}

type ConfigCommitPayload struct {
	GroupID int64         `json:"group_id"`
	Config  models.Config `json:"config"`
}

type ConfigAskPayload struct {
	ProjectName string        `json:"project_name"`
	ProjectLink string        `json:"project_link"`
	GroupID     int64         `json:"group_id"`
	GroupName   string        `json:"group_name"`
	GroupLink   string        `json:"group_link"`
	UserID      int64         `json:"user_id"`
	Config      models.Config `json:"config"`
	Default     models.Config `json:"default"`
}

type ConfigReplyPayload struct {
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
	ConfigLink string `json:"config_link"`
}

type LeavePayload struct {
	AdminID int64  `json:"admin_id"`
	GroupID int64  `json:"group_id"`
	Reason  string `json:"reason"`
}

type LeaveInfoPayload struct {
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
	GroupLink string `json:"group_link"`
	Reason    string `json:"reason"`
}

type StatusAskPayload struct {
	AdminID   int64 `json:"admin_id"`
	MessageID int   `json:"message_id"`
}

type StatusReplyPayload struct {
	AdminID   int64 `json:"admin_id"`
	MessageID int   `json:"message_id"`
}

type WatchPayload struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Until int64  `json:"until"`
}

type ScorePayload struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}

// PreviewPayload points at the message whose link preview is attached.
type PreviewPayload struct {
	GroupID   int64 `json:"group_id"`
	UserID    int64 `json:"user_id"`
	MessageID int   `json:"message_id"`
}

type BackupStatusPayload struct {
	Type   string `json:"type"`
	Backup bool   `json:"backup"`
}

type ForgivePayload struct {
	UserID int64 `json:"user_id"`
}

// DecodeData converts an envelope's data into out, a pointer to a payload
// type. Numbers sent as strings and similar loose encodings are accepted.
func DecodeData(data any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
