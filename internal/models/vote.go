package models

import (
	"time"
)

// Vote is one accepted cast in the append-only ledger. OptionText is a
// snapshot taken at cast time and never updated afterwards.
type Vote struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PollID      string    `gorm:"size:36;not null;index" json:"poll_id"`
	UserID      string    `gorm:"size:36;not null;index" json:"user_id"`
	OptionIndex int       `gorm:"not null" json:"option_index"`
	OptionText  string    `gorm:"size:255;not null" json:"option_text"`
	IsAnonymous bool      `gorm:"not null;default:false" json:"is_anonymous"`
	CastAt      time.Time `gorm:"not null" json:"cast_at"`

	// Advisory client metadata; not part of any consistency invariant.
	IPAddress string `gorm:"size:45" json:"-"`
	UserAgent string `gorm:"size:512" json:"-"`
}

func (Vote) TableName() string {
	return "votes"
}

// VoteHistory records that a user voted in a poll, so "has this user
// voted" never needs a ledger scan on the user side.
type VoteHistory struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	UserID  string    `gorm:"size:36;not null;index:idx_history_user_poll" json:"user_id"`
	PollID  string    `gorm:"size:36;not null;index:idx_history_user_poll" json:"poll_id"`
	VotedAt time.Time `gorm:"not null" json:"voted_at"`
}

func (VoteHistory) TableName() string {
	return "vote_history"
}

// CastVoteRequest defines the input for casting a vote.
type CastVoteRequest struct {
	OptionIndex *int  `json:"option_index" binding:"required"`
	Anonymous   *bool `json:"anonymous"`
}

// VoteReceipt is returned to the caller on a successful cast.
type VoteReceipt struct {
	VoteID      string    `json:"vote_id"`
	PollID      string    `json:"poll_id"`
	OptionIndex int       `json:"option_index"`
	OptionText  string    `json:"option_text"`
	CastAt      time.Time `json:"cast_at"`
}

// OptionResult is one option's slice of the tally.
type OptionResult struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the read-only tally for one poll.
type PollResults struct {
	PollID          string         `json:"poll_id"`
	TotalVotes      int            `json:"total_votes"`
	UniqueVoters    int            `json:"unique_voters"`
	Options         []OptionResult `json:"options"`
	EffectiveStatus PollStatus     `json:"effective_status"`
}

// EligibilityResponse answers a pre-flight "can this user vote" check.
type EligibilityResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
