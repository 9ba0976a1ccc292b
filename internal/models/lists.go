package models

// BadIDs holds the accounts every group treats as known offenders.
type BadIDs struct {
	Channels IDSet `json:"channels"`
	Users    IDSet `json:"users"`
}

func NewBadIDs() BadIDs {
	return BadIDs{Channels: NewIDSet(), Users: NewIDSet()}
}

// ExceptIDs holds exemptions. Temp maps a user to the groups that have
// forgiven them since the last monthly reset.
type ExceptIDs struct {
	Channels IDSet           `json:"channels"`
	Temp     map[int64]IDSet `json:"temp"`
}

func NewExceptIDs() ExceptIDs {
	return ExceptIDs{Channels: NewIDSet(), Temp: make(map[int64]IDSet)}
}

// Normalize replaces nil collections left by older files.
func (b *BadIDs) Normalize() {
	if b.Channels == nil {
		b.Channels = NewIDSet()
	}
	if b.Users == nil {
		b.Users = NewIDSet()
	}
}

func (e *ExceptIDs) Normalize() {
	if e.Channels == nil {
		e.Channels = NewIDSet()
	}
	if e.Temp == nil {
		e.Temp = make(map[int64]IDSet)
	}
}

// NormalizeUsers fills every status in a users table.
func NormalizeUsers(users map[int64]*UserStatus) {
	for uid, u := range users {
		if u == nil {
			users[uid] = NewUserStatus()
			continue
		}
		u.fill()
	}
}
