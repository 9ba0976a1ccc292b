package models

// UserStatus tracks what has been done to a user across groups.
type UserStatus struct {
	Ban      IDSet              `json:"ban"`
	Restrict IDSet              `json:"restrict"`
	Score    map[string]float64 `json:"score"`
}

// ScoreSources are the detectors that report scores, keyed by lowercase sender.
var ScoreSources = []string{
	"captcha", "clean", "lang", "long", "noflood", "noporn", "nospam", "recheck", "warn",
}

// HighScore is the total at which a user is treated as a known offender.
const HighScore = 3.0

func NewUserStatus() *UserStatus {
	score := make(map[string]float64, len(ScoreSources))
	for _, s := range ScoreSources {
		score[s] = 0
	}
	return &UserStatus{
		Ban:      NewIDSet(),
		Restrict: NewIDSet(),
		Score:    score,
	}
}

func (u *UserStatus) TotalScore() float64 {
	var total float64
	for _, v := range u.Score {
		total += v
	}
	return total
}

func (u *UserStatus) Clone() *UserStatus {
	c := &UserStatus{
		Ban:      u.Ban.Clone(),
		Restrict: u.Restrict.Clone(),
		Score:    make(map[string]float64, len(u.Score)),
	}
	for k, v := range u.Score {
		c.Score[k] = v
	}
	return c
}

// fill replaces nil collections left by older files
func (u *UserStatus) fill() {
	if u.Ban == nil {
		u.Ban = NewIDSet()
	}
	if u.Restrict == nil {
		u.Restrict = NewIDSet()
	}
	if u.Score == nil {
		u.Score = make(map[string]float64)
	}
}
