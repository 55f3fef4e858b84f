package poll

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"strings"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/notifier"
	"voting-service/internal/voting"

	"github.com/google/uuid"
)

// defaultMultiVoteQuota is used when a create request asks for multiple
// votes without naming a quota. MaxVotesPerUser stays the single source of
// truth; allow_multiple_votes is only a convenience on input.
const defaultMultiVoteQuota = 3

// ImageStore uploads an option image and returns its public URL.
type ImageStore interface {
	UploadImage(ctx context.Context, file *multipart.FileHeader) (string, error)
}

// Service owns poll administration: creation, lifecycle toggles, metadata
// edits and deletion. Vote-side mutations belong to the voting engine.
type Service struct {
	repo     Repository
	notifier notifier.Notifier
	images   ImageStore
}

func NewService(repo Repository, n notifier.Notifier, images ImageStore) *Service {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Service{repo: repo, notifier: n, images: images}
}

func (s *Service) Create(ctx context.Context, creator models.Identity, req *models.CreatePollRequest) (*models.Poll, error) {
	options, err := buildOptions(req.Options)
	if err != nil {
		return nil, err
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, &ValidationError{Message: "end date must be after start date"}
	}

	quota := req.MaxVotesPerUser
	if quota < 1 {
		quota = 1
		if req.AllowMultiple {
			quota = defaultMultiVoteQuota
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	p := &models.Poll{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		CreatorID:       creator.UserID,
		Options:         options,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Status:          models.PollStatusActive,
		IsPublic:        isPublic,
		MaxVotesPerUser: quota,
		AnonymousVoting: req.AnonymousVoting,
		ShuffleOptions:  req.ShuffleOptions,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	for i := range p.Options {
		p.Options[i].PollID = p.ID
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, pollID string, viewer models.Identity) (*models.PollResponse, error) {
	p, err := s.repo.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !voting.CanView(p, viewer.UserID, viewer.IsAdmin()) {
		return nil, ErrNotAllowed
	}
	return s.toResponse(p), nil
}

func (s *Service) List(ctx context.Context, viewer models.Identity) ([]*models.PollResponse, error) {
	filter := ListFilter{PublicOnly: !viewer.IsAdmin(), ViewerID: viewer.UserID}
	polls, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	out := make([]*models.PollResponse, 0, len(polls))
	for _, p := range polls {
		out = append(out, s.toResponse(p))
	}
	return out, nil
}

// Update edits poll metadata and, while the poll has no votes, its option
// list. Structural option edits after the first vote fail with
// ErrOptionsLocked.
func (s *Service) Update(ctx context.Context, pollID string, actor models.Identity, req *models.UpdatePollRequest) error {
	if err := s.requireOwnership(ctx, pollID, actor); err != nil {
		return err
	}

	if req.Options != nil {
		options, err := buildOptions(req.Options)
		if err != nil {
			return err
		}
		for i := range options {
			options[i].PollID = pollID
		}
		if err := s.repo.ReplaceOptions(ctx, pollID, options); err != nil {
			return err
		}
	}

	err := s.repo.UpdateMeta(ctx, pollID, func(p *models.Poll) error {
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return &ValidationError{Message: "title must not be empty"}
			}
			p.Title = title
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.IsPublic != nil {
			p.IsPublic = *req.IsPublic
		}
		p.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(notifier.Event{Type: notifier.EventPollUpdated, PollID: pollID, Timestamp: time.Now()})
	return nil
}

// SetStatus is the explicit admin toggle between active and inactive. It
// writes unconditionally; derived lifecycle states never block it.
func (s *Service) SetStatus(ctx context.Context, pollID string, actor models.Identity, status models.PollStatus) error {
	if status != models.PollStatusActive && status != models.PollStatusInactive {
		return &ValidationError{Message: "status must be active or inactive"}
	}
	if err := s.requireOwnership(ctx, pollID, actor); err != nil {
		return err
	}
	err := s.repo.UpdateMeta(ctx, pollID, func(p *models.Poll) error {
		p.Status = status
		p.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(notifier.Event{Type: notifier.EventPollUpdated, PollID: pollID, Timestamp: time.Now()})
	return nil
}

func (s *Service) Cancel(ctx context.Context, pollID string, actor models.Identity) error {
	if err := s.requireOwnership(ctx, pollID, actor); err != nil {
		return err
	}
	err := s.repo.UpdateMeta(ctx, pollID, func(p *models.Poll) error {
		p.Status = models.PollStatusCancelled
		p.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.emit(notifier.Event{Type: notifier.EventPollUpdated, PollID: pollID, Timestamp: time.Now()})
	return nil
}

func (s *Service) Delete(ctx context.Context, pollID string, actor models.Identity) error {
	if err := s.requireOwnership(ctx, pollID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, pollID); err != nil {
		return err
	}
	s.emit(notifier.Event{Type: notifier.EventPollDeleted, PollID: pollID, Timestamp: time.Now()})
	return nil
}

// SetOptionImage uploads an image for one option. Images are a display
// concern, not a structural option edit, so the poll may already have
// votes.
func (s *Service) SetOptionImage(ctx context.Context, pollID string, actor models.Identity, optionIndex int, file *multipart.FileHeader) (string, error) {
	if s.images == nil {
		return "", &ValidationError{Message: "image uploads are not enabled"}
	}
	if err := s.requireOwnership(ctx, pollID, actor); err != nil {
		return "", err
	}
	url, err := s.images.UploadImage(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload option image: %w", err)
	}
	err = s.repo.UpdateMeta(ctx, pollID, func(p *models.Poll) error {
		if optionIndex < 0 || optionIndex >= len(p.Options) {
			return voting.ErrInvalidOption
		}
		p.Options[optionIndex].ImageURL = url
		p.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (s *Service) requireOwnership(ctx context.Context, pollID string, actor models.Identity) error {
	p, err := s.repo.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && p.CreatorID != actor.UserID {
		return ErrNotAllowed
	}
	return nil
}

func (s *Service) toResponse(p *models.Poll) *models.PollResponse {
	options := append([]models.Option(nil), p.Options...)
	if p.ShuffleOptions {
		rand.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})
	}
	return &models.PollResponse{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		CreatorID:       p.CreatorID,
		Options:         options,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		Status:          p.EffectiveStatus(time.Now()),
		IsPublic:        p.IsPublic,
		MaxVotesPerUser: p.MaxVotesPerUser,
		AllowMultiple:   p.AllowMultipleVotes(),
		AnonymousVoting: p.AnonymousVoting,
		TotalVotes:      p.TotalVotes,
		UniqueVoters:    p.UniqueVoters,
		CreatedAt:       p.CreatedAt,
	}
}

func (s *Service) emit(event notifier.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.notifier.Emit(ctx, event); err != nil {
		slog.Warn("poll notification failed", "type", event.Type, "pollID", event.PollID, "error", err)
	}
}

func buildOptions(texts []string) ([]models.Option, error) {
	if len(texts) < models.MinPollOptions || len(texts) > models.MaxPollOptions {
		return nil, &ValidationError{
			Message: fmt.Sprintf("polls need between %d and %d options", models.MinPollOptions, models.MaxPollOptions),
		}
	}
	options := make([]models.Option, 0, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, &ValidationError{Message: "option text must not be empty"}
		}
		options = append(options, models.Option{Index: i, Text: text})
	}
	return options, nil
}
