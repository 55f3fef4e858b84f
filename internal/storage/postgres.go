package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/poll"
	"voting-service/internal/voting"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements the voting store and the poll repository on
// GORM. Per-poll atomicity comes from a SELECT ... FOR UPDATE on the poll
// row inside one transaction; everything staged in that transaction
// commits or aborts together.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetPoll loads the poll, its options and its voter set from one
// repeatable-read snapshot, so the aggregate counters and the option
// counters a reader sees always belong to the same committed state.
func (s *PostgresStore) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	var p models.Poll
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("option_index ASC") }).
			Preload("Voters").
			First(&p, "id = ?", pollID).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, voting.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetVote(ctx context.Context, voteID string) (*models.Vote, error) {
	var v models.Vote
	err := s.db.WithContext(ctx).First(&v, "id = ?", voteID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, voting.ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to load vote: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) CountUserVotes(ctx context.Context, pollID, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return int(count), nil
}

func (s *PostgresStore) UpdatePoll(ctx context.Context, pollID string, fn func(tx voting.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Poll
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", pollID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return voting.ErrPollNotFound
			}
			return fmt.Errorf("failed to lock poll: %w", err)
		}
		err = tx.
			Preload("Records").
			Order("option_index ASC").
			Find(&p.Options, "poll_id = ?", pollID).Error
		if err != nil {
			return fmt.Errorf("failed to load options: %w", err)
		}
		if err := tx.Find(&p.Voters, "poll_id = ?", pollID).Error; err != nil {
			return fmt.Errorf("failed to load voter set: %w", err)
		}
		return fn(&gormTx{tx: tx, poll: &p})
	})
	if isSerializationFailure(err) {
		return voting.ErrStorageConflict
	}
	return err
}

func (s *PostgresStore) DeleteOrphanVote(ctx context.Context, voteID string) error {
	res := s.db.WithContext(ctx).Delete(&models.Vote{}, "id = ?", voteID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return voting.ErrVoteNotFound
	}
	return nil
}

func (s *PostgresStore) CompletePoll(ctx context.Context, pollID string, now time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Poll{}).
		Where("id = ? AND status = ? AND end_date <= ?", pollID, models.PollStatusActive, now).
		Updates(map[string]interface{}{"status": models.PollStatusCompleted, "updated_at": now}).Error
}

// gormTx applies engine mutations inside an open transaction holding the
// poll row lock, keeping the in-memory aggregate in step with the SQL it
// issues.
type gormTx struct {
	tx   *gorm.DB
	poll *models.Poll
}

func (t *gormTx) Poll() *models.Poll { return t.poll }

func (t *gormTx) CountUserVotes(userID, excludeVoteID string) (int, error) {
	q := t.tx.Model(&models.Vote{}).Where("poll_id = ? AND user_id = ?", t.poll.ID, userID)
	if excludeVoteID != "" {
		q = q.Where("id <> ?", excludeVoteID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return int(count), nil
}

func (t *gormTx) AddVote(optionIndex int, rec models.VoterRecord, firstForUser bool) error {
	if optionIndex < 0 || optionIndex >= len(t.poll.Options) {
		return voting.ErrInvalidOption
	}
	opt := &t.poll.Options[optionIndex]

	err := t.tx.Model(&models.Option{}).Where("id = ?", opt.ID).
		UpdateColumn("votes", gorm.Expr("votes + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment option counter: %w", err)
	}
	rec.OptionID = opt.ID
	if err := t.tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create voter record: %w", err)
	}

	updates := map[string]interface{}{"total_votes": gorm.Expr("total_votes + 1")}
	if firstForUser {
		updates["unique_voters"] = gorm.Expr("unique_voters + 1")
		voter := models.PollVoter{PollID: t.poll.ID, UserID: rec.UserID, VotedAt: rec.VotedAt}
		if err := t.tx.Create(&voter).Error; err != nil {
			return fmt.Errorf("failed to add poll voter: %w", err)
		}
		t.poll.Voters = append(t.poll.Voters, voter)
	}
	err = t.tx.Model(&models.Poll{}).Where("id = ?", t.poll.ID).UpdateColumns(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update poll counters: %w", err)
	}

	opt.Votes++
	opt.Records = append(opt.Records, rec)
	t.poll.TotalVotes++
	if firstForUser {
		t.poll.UniqueVoters++
	}
	return nil
}

func (t *gormTx) RemoveVote(optionIndex int, userID string, lastForUser bool) error {
	if optionIndex >= 0 && optionIndex < len(t.poll.Options) {
		opt := &t.poll.Options[optionIndex]

		err := t.tx.Model(&models.Option{}).Where("id = ?", opt.ID).
			UpdateColumn("votes", gorm.Expr("GREATEST(votes - 1, 0)")).Error
		if err != nil {
			return fmt.Errorf("failed to decrement option counter: %w", err)
		}

		var rec models.VoterRecord
		err = t.tx.Where("option_id = ? AND user_id = ?", opt.ID, userID).
			Order("voted_at DESC").First(&rec).Error
		if err == nil {
			if err := t.tx.Delete(&rec).Error; err != nil {
				return fmt.Errorf("failed to delete voter record: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find voter record: %w", err)
		}

		if opt.Votes > 0 {
			opt.Votes--
		}
		for i := len(opt.Records) - 1; i >= 0; i-- {
			if opt.Records[i].UserID == userID {
				opt.Records = append(opt.Records[:i], opt.Records[i+1:]...)
				break
			}
		}
	}

	updates := map[string]interface{}{"total_votes": gorm.Expr("GREATEST(total_votes - 1, 0)")}
	if lastForUser {
		updates["unique_voters"] = gorm.Expr("GREATEST(unique_voters - 1, 0)")
		err := t.tx.Where("poll_id = ? AND user_id = ?", t.poll.ID, userID).
			Delete(&models.PollVoter{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove poll voter: %w", err)
		}
		for i := range t.poll.Voters {
			if t.poll.Voters[i].UserID == userID {
				t.poll.Voters = append(t.poll.Voters[:i], t.poll.Voters[i+1:]...)
				break
			}
		}
	}
	err := t.tx.Model(&models.Poll{}).Where("id = ?", t.poll.ID).UpdateColumns(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update poll counters: %w", err)
	}

	if t.poll.TotalVotes > 0 {
		t.poll.TotalVotes--
	}
	if lastForUser && t.poll.UniqueVoters > 0 {
		t.poll.UniqueVoters--
	}
	return nil
}

func (t *gormTx) AppendVote(vote *models.Vote) error {
	if err := t.tx.Create(vote).Error; err != nil {
		return fmt.Errorf("failed to append vote: %w", err)
	}
	return nil
}

func (t *gormTx) DeleteVote(voteID string) error {
	res := t.tx.Delete(&models.Vote{}, "id = ?", voteID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return voting.ErrVoteNotFound
	}
	return nil
}

func (t *gormTx) RecordHistory(userID string, votedAt time.Time) error {
	h := models.VoteHistory{UserID: userID, PollID: t.poll.ID, VotedAt: votedAt}
	if err := t.tx.Create(&h).Error; err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func (t *gormTx) RemoveHistory(userID string) error {
	err := t.tx.Where("user_id = ? AND poll_id = ?", userID, t.poll.ID).
		Delete(&models.VoteHistory{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove history: %w", err)
	}
	return nil
}

// Poll repository implementation.

func (s *PostgresStore) Create(ctx context.Context, p *models.Poll) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create poll: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	return s.GetPoll(ctx, pollID)
}

func (s *PostgresStore) List(ctx context.Context, filter poll.ListFilter) ([]*models.Poll, error) {
	q := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("option_index ASC") }).
		Order("created_at DESC")
	if filter.PublicOnly {
		q = q.Where("is_public = ? OR creator_id = ?", true, filter.ViewerID)
	}
	if filter.CreatorID != "" {
		q = q.Where("creator_id = ?", filter.CreatorID)
	}
	var polls []*models.Poll
	if err := q.Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	return polls, nil
}

func (s *PostgresStore) UpdateMeta(ctx context.Context, pollID string, fn func(p *models.Poll) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Poll
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", pollID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return voting.ErrPollNotFound
			}
			return fmt.Errorf("failed to lock poll: %w", err)
		}
		if err := tx.Order("option_index ASC").Find(&p.Options, "poll_id = ?", pollID).Error; err != nil {
			return fmt.Errorf("failed to load options: %w", err)
		}

		if err := fn(&p); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":       p.Title,
			"description": p.Description,
			"is_public":   p.IsPublic,
			"status":      p.Status,
			"updated_at":  p.UpdatedAt,
		}
		if err := tx.Model(&models.Poll{}).Where("id = ?", pollID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update poll: %w", err)
		}
		for i := range p.Options {
			opt := &p.Options[i]
			err := tx.Model(&models.Option{}).Where("id = ?", opt.ID).
				Updates(map[string]interface{}{"text": opt.Text, "image_url": opt.ImageURL}).Error
			if err != nil {
				return fmt.Errorf("failed to update option: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ReplaceOptions(ctx context.Context, pollID string, options []models.Option) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Poll
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", pollID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return voting.ErrPollNotFound
			}
			return fmt.Errorf("failed to lock poll: %w", err)
		}
		if p.TotalVotes > 0 {
			return poll.ErrOptionsLocked
		}
		if err := tx.Where("poll_id = ?", pollID).Delete(&models.Option{}).Error; err != nil {
			return fmt.Errorf("failed to clear options: %w", err)
		}
		for i := range options {
			options[i].ID = 0
			options[i].PollID = pollID
		}
		if err := tx.Create(&options).Error; err != nil {
			return fmt.Errorf("failed to create options: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, pollID string) error {
	res := s.db.WithContext(ctx).Select("Options", "Voters").Delete(&models.Poll{ID: pollID})
	if res.Error != nil {
		return fmt.Errorf("failed to delete poll: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return voting.ErrPollNotFound
	}
	return nil
}

// isSerializationFailure detects a lost optimistic race at the database
// level (40001 serialization_failure, 40P01 deadlock_detected); the engine
// retries these with fresh state.
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") || strings.Contains(msg, "SQLSTATE 40P01")
}
