package models

import (
	"time"
)

// PollStatus is the persisted lifecycle state of a poll.
type PollStatus string

const (
	PollStatusDraft     PollStatus = "draft"
	PollStatusActive    PollStatus = "active"
	PollStatusInactive  PollStatus = "inactive"
	PollStatusCompleted PollStatus = "completed"
	PollStatusCancelled PollStatus = "cancelled"
)

const (
	MinPollOptions = 2
	MaxPollOptions = 10
)

// Poll is the aggregate root for one poll: its options, voting window and
// the counters maintained by the voting engine. All counter mutations go
// through the engine; nothing else writes TotalVotes/UniqueVoters.
type Poll struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	CreatorID       string     `gorm:"size:36;not null;index" json:"creator_id"`
	Options         []Option   `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"options"`
	StartDate       time.Time  `gorm:"not null" json:"start_date"`
	EndDate         time.Time  `gorm:"not null" json:"end_date"`
	Status          PollStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	IsPublic        bool       `gorm:"not null;default:true" json:"is_public"`
	MaxVotesPerUser int        `gorm:"not null;default:1" json:"max_votes_per_user"`
	AnonymousVoting bool       `gorm:"not null;default:false" json:"anonymous_voting"`
	ShuffleOptions  bool       `gorm:"not null;default:false" json:"shuffle_options"`

	TotalVotes   int         `gorm:"not null;default:0" json:"total_votes"`
	UniqueVoters int         `gorm:"not null;default:0" json:"unique_voters"`
	Voters       []PollVoter `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Poll) TableName() string {
	return "polls"
}

// AllowMultipleVotes is derived from the quota; MaxVotesPerUser is the
// single source of truth.
func (p *Poll) AllowMultipleVotes() bool {
	return p.MaxVotesPerUser > 1
}

// EffectiveStatus computes the lifecycle state as of now. A persisted
// "active" poll reads as draft before its window opens and completed once
// the window has passed; every other status is taken as stored.
func (p *Poll) EffectiveStatus(now time.Time) PollStatus {
	if p.Status != PollStatusActive {
		return p.Status
	}
	if now.Before(p.StartDate) {
		return PollStatusDraft
	}
	if !now.Before(p.EndDate) {
		return PollStatusCompleted
	}
	return PollStatusActive
}

// HasVoted reports membership in the poll's voter set.
func (p *Poll) HasVoted(userID string) bool {
	for i := range p.Voters {
		if p.Voters[i].UserID == userID {
			return true
		}
	}
	return false
}

// Option is one selectable choice, owned by its poll. Votes mirrors the
// number of voter records attached to the option.
type Option struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PollID   string `gorm:"size:36;not null;index" json:"poll_id"`
	Index    int    `gorm:"column:option_index;not null" json:"index"`
	Text     string `gorm:"size:255;not null" json:"text"`
	ImageURL string `gorm:"size:512" json:"image_url,omitempty"`
	Votes    int    `gorm:"not null;default:0" json:"votes"`

	Records []VoterRecord `gorm:"foreignKey:OptionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Option) TableName() string {
	return "options"
}

// VoterRecord ties one accepted cast to an option: (userId, timestamp).
type VoterRecord struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	OptionID uint      `gorm:"not null;index" json:"-"`
	UserID   string    `gorm:"size:36;not null;index" json:"user_id"`
	VotedAt  time.Time `gorm:"not null" json:"voted_at"`
}

func (VoterRecord) TableName() string {
	return "voter_records"
}

// PollVoter is one row of the poll's voter set, used for fast "has this
// user voted" membership checks. |rows| == Poll.UniqueVoters.
type PollVoter struct {
	PollID  string    `gorm:"size:36;primaryKey" json:"poll_id"`
	UserID  string    `gorm:"size:36;primaryKey" json:"user_id"`
	VotedAt time.Time `gorm:"not null" json:"voted_at"`
}

func (PollVoter) TableName() string {
	return "poll_voters"
}

// CreatePollRequest defines the input for creating a poll.
type CreatePollRequest struct {
	Title           string    `json:"title" binding:"required,max=255"`
	Description     string    `json:"description"`
	Options         []string  `json:"options" binding:"required,min=2,max=10"`
	StartDate       time.Time `json:"start_date" binding:"required"`
	EndDate         time.Time `json:"end_date" binding:"required"`
	IsPublic        *bool     `json:"is_public"`
	MaxVotesPerUser int       `json:"max_votes_per_user"`
	AllowMultiple   bool      `json:"allow_multiple_votes"`
	AnonymousVoting bool      `json:"anonymous_voting"`
	ShuffleOptions  bool      `json:"shuffle_options"`
}

// UpdatePollRequest defines the editable fields of a poll. Option edits are
// rejected once the poll has votes.
type UpdatePollRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Options     []string `json:"options"`
	IsPublic    *bool    `json:"is_public"`
}

// PollResponse is the read shape of a poll, with derived fields resolved.
type PollResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CreatorID       string     `json:"creator_id"`
	Options         []Option   `json:"options"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	Status          PollStatus `json:"status"`
	IsPublic        bool       `json:"is_public"`
	MaxVotesPerUser int        `json:"max_votes_per_user"`
	AllowMultiple   bool       `json:"allow_multiple_votes"`
	AnonymousVoting bool       `json:"anonymous_voting"`
	TotalVotes      int        `json:"total_votes"`
	UniqueVoters    int        `json:"unique_voters"`
	CreatedAt       time.Time  `json:"created_at"`
}
