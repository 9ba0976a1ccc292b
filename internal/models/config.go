package models

import (
	"fmt"
	"time"
)

// Action is what the engine does to a user in one chat.
type Action string

const (
	ActionNone     Action = ""
	ActionBan      Action = "ban"
	ActionRestrict Action = "restrict"
	ActionDelete   Action = "delete"

	ActionUnban      Action = "unban"
	ActionUnrestrict Action = "unrestrict"
)

// Flag names a boolean field of Config as it appears in commands and envelopes.
type Flag string

const (
	FlagDelete            Flag = "delete"
	FlagGlobalBan         Flag = "gb"
	FlagGlobalRestrict    Flag = "gr"
	FlagGlobalDelete      Flag = "gd"
	FlagSubscribeBan      Flag = "sb"
	FlagSubscribeRestrict Flag = "sr"
	FlagSubscribeDelete   Flag = "sd"
)

// Config is the per-group moderation policy.
//
// The global triple (gb, gr, gd) applies when the user is acted upon because of
// something that happened in another group. The subscription triple (sb, sr, sd)
// applies to the group where the trigger happened. Within each triple at most
// one flag is true.
type Config struct {
	Default           bool  `json:"default"`
	Lock              int64 `json:"lock"`
	Delete            bool  `json:"delete"`
	GlobalBan         bool  `json:"gb"`
	GlobalRestrict    bool  `json:"gr"`
	GlobalDelete      bool  `json:"gd"`
	SubscribeBan      bool  `json:"sb"`
	SubscribeRestrict bool  `json:"sr"`
	SubscribeDelete   bool  `json:"sd"`
}

func DefaultConfig() Config {
	return Config{
		Default:      true,
		Delete:       true,
		GlobalBan:    true,
		SubscribeBan: true,
	}
}

// Set changes one flag. Turning on a member of a triple turns the other two
// off. Any change marks the config as non-default.
func (c *Config) Set(flag Flag, on bool) error {
	switch flag {
	case FlagDelete:
		c.Delete = on
	case FlagGlobalBan, FlagGlobalRestrict, FlagGlobalDelete:
		setTriple(&c.GlobalBan, &c.GlobalRestrict, &c.GlobalDelete, flag, FlagGlobalBan, FlagGlobalRestrict, on)
	case FlagSubscribeBan, FlagSubscribeRestrict, FlagSubscribeDelete:
		setTriple(&c.SubscribeBan, &c.SubscribeRestrict, &c.SubscribeDelete, flag, FlagSubscribeBan, FlagSubscribeRestrict, on)
	default:
		return fmt.Errorf("unknown config flag %q", flag)
	}
	c.Default = false
	return nil
}

func setTriple(ban, restrict, del *bool, flag, banFlag, restrictFlag Flag, on bool) {
	target := del
	switch flag {
	case banFlag:
		target = ban
	case restrictFlag:
		target = restrict
	}
	if on {
		*ban, *restrict, *del = false, false, false
	}
	*target = on
}

// Normalize enforces the one-of-three rule on a config received from
// elsewhere, keeping the strongest action of each triple.
func (c *Config) Normalize() {
	normalizeTriple(&c.GlobalBan, &c.GlobalRestrict, &c.GlobalDelete)
	normalizeTriple(&c.SubscribeBan, &c.SubscribeRestrict, &c.SubscribeDelete)
}

func normalizeTriple(ban, restrict, del *bool) {
	switch {
	case *ban:
		*restrict, *del = false, false
	case *restrict:
		*del = false
	}
}

// GlobalAction is the action taken in this group for triggers elsewhere.
func (c Config) GlobalAction() Action {
	return tripleAction(c.GlobalBan, c.GlobalRestrict, c.GlobalDelete)
}

// SubscribeAction is the action taken in this group for its own triggers.
func (c Config) SubscribeAction() Action {
	return tripleAction(c.SubscribeBan, c.SubscribeRestrict, c.SubscribeDelete)
}

func tripleAction(ban, restrict, del bool) Action {
	switch {
	case ban:
		return ActionBan
	case restrict:
		return ActionRestrict
	case del:
		return ActionDelete
	}
	return ActionNone
}

// Locked reports whether a config session started at c.Lock is still open.
func (c Config) Locked(now time.Time, window time.Duration) bool {
	return c.Lock != 0 && now.Sub(time.Unix(c.Lock, 0)) < window
}

// Flags lists every flag with its current value, in display order.
func (c Config) Flags() []FlagValue {
	return []FlagValue{
		{FlagDelete, c.Delete},
		{FlagGlobalBan, c.GlobalBan},
		{FlagGlobalRestrict, c.GlobalRestrict},
		{FlagGlobalDelete, c.GlobalDelete},
		{FlagSubscribeBan, c.SubscribeBan},
		{FlagSubscribeRestrict, c.SubscribeRestrict},
		{FlagSubscribeDelete, c.SubscribeDelete},
	}
}

type FlagValue struct {
	Flag  Flag
	Value bool
}
