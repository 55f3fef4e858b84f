package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/poll"
	"voting-service/internal/voting"
)

// MemoryStore is an in-process implementation of the voting store and the
// poll repository. Per-poll atomicity comes from one mutex per poll ID;
// readers get deep copies so a caller can never observe a half-applied
// update. Used by the test suite and by local runs without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	locks   map[string]*sync.Mutex
	polls   map[string]*models.Poll
	votes   map[string]*models.Vote
	history map[string][]models.VoteHistory // keyed by userID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   make(map[string]*sync.Mutex),
		polls:   make(map[string]*models.Poll),
		votes:   make(map[string]*models.Vote),
		history: make(map[string][]models.VoteHistory),
	}
}

func (s *MemoryStore) pollLock(pollID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[pollID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[pollID] = l
	}
	return l
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = make([]models.Option, len(p.Options))
	for i := range p.Options {
		cp.Options[i] = p.Options[i]
		cp.Options[i].Records = append([]models.VoterRecord(nil), p.Options[i].Records...)
	}
	cp.Voters = append([]models.PollVoter(nil), p.Voters...)
	return &cp
}

func (s *MemoryStore) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, voting.ErrPollNotFound
	}
	return clonePoll(p), nil
}

func (s *MemoryStore) GetVote(ctx context.Context, voteID string) (*models.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[voteID]
	if !ok {
		return nil, voting.ErrVoteNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) CountUserVotes(ctx context.Context, pollID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countVotesLocked(pollID, userID, ""), nil
}

func (s *MemoryStore) countVotesLocked(pollID, userID, excludeVoteID string) int {
	n := 0
	for _, v := range s.votes {
		if v.PollID == pollID && v.UserID == userID && v.ID != excludeVoteID {
			n++
		}
	}
	return n
}

// UpdatePoll runs fn against a deep copy of the poll under the poll's
// mutex, then swaps the copy in and applies the staged ledger and history
// changes in one critical section. An error from fn discards everything.
func (s *MemoryStore) UpdatePoll(ctx context.Context, pollID string, fn func(tx voting.Tx) error) error {
	lock := s.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	current, ok := s.polls[pollID]
	s.mu.RUnlock()
	if !ok {
		return voting.ErrPollNotFound
	}

	tx := &memTx{store: s, poll: clonePoll(current), deleted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[pollID] = tx.poll
	for _, v := range tx.appended {
		s.votes[v.ID] = v
	}
	for id := range tx.deleted {
		delete(s.votes, id)
	}
	for _, h := range tx.histAppended {
		s.history[h.UserID] = append(s.history[h.UserID], h)
	}
	for _, userID := range tx.histRemoved {
		kept := s.history[userID][:0]
		for _, h := range s.history[userID] {
			if h.PollID != pollID {
				kept = append(kept, h)
			}
		}
		s.history[userID] = kept
	}
	return nil
}

func (s *MemoryStore) DeleteOrphanVote(ctx context.Context, voteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.votes[voteID]; !ok {
		return voting.ErrVoteNotFound
	}
	delete(s.votes, voteID)
	return nil
}

func (s *MemoryStore) CompletePoll(ctx context.Context, pollID string, now time.Time) error {
	lock := s.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return voting.ErrPollNotFound
	}
	if p.Status == models.PollStatusActive && !now.Before(p.EndDate) {
		p.Status = models.PollStatusCompleted
		p.UpdatedAt = now
	}
	return nil
}

// UserHistory returns the user's recorded poll participations.
func (s *MemoryStore) UserHistory(userID string) []models.VoteHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.VoteHistory(nil), s.history[userID]...)
}

// memTx stages one atomic unit against a poll copy.
type memTx struct {
	store        *MemoryStore
	poll         *models.Poll
	appended     []*models.Vote
	deleted      map[string]bool
	histAppended []models.VoteHistory
	histRemoved  []string
}

func (t *memTx) Poll() *models.Poll { return t.poll }

func (t *memTx) CountUserVotes(userID, excludeVoteID string) (int, error) {
	t.store.mu.RLock()
	n := t.store.countVotesLocked(t.poll.ID, userID, excludeVoteID)
	for _, v := range t.store.votes {
		if t.deleted[v.ID] && v.PollID == t.poll.ID && v.UserID == userID && v.ID != excludeVoteID {
			n--
		}
	}
	t.store.mu.RUnlock()
	for _, v := range t.appended {
		if v.UserID == userID && v.ID != excludeVoteID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) AddVote(optionIndex int, rec models.VoterRecord, firstForUser bool) error {
	if optionIndex < 0 || optionIndex >= len(t.poll.Options) {
		return voting.ErrInvalidOption
	}
	opt := &t.poll.Options[optionIndex]
	opt.Votes++
	opt.Records = append(opt.Records, rec)
	t.poll.TotalVotes++
	if firstForUser {
		t.poll.Voters = append(t.poll.Voters, models.PollVoter{
			PollID:  t.poll.ID,
			UserID:  rec.UserID,
			VotedAt: rec.VotedAt,
		})
		t.poll.UniqueVoters++
	}
	return nil
}

func (t *memTx) RemoveVote(optionIndex int, userID string, lastForUser bool) error {
	if optionIndex >= 0 && optionIndex < len(t.poll.Options) {
		opt := &t.poll.Options[optionIndex]
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
	if t.poll.TotalVotes > 0 {
		t.poll.TotalVotes--
	}
	if lastForUser {
		for i := range t.poll.Voters {
			if t.poll.Voters[i].UserID == userID {
				t.poll.Voters = append(t.poll.Voters[:i], t.poll.Voters[i+1:]...)
				break
			}
		}
		if t.poll.UniqueVoters > 0 {
			t.poll.UniqueVoters--
		}
	}
	return nil
}

func (t *memTx) AppendVote(vote *models.Vote) error {
	cp := *vote
	t.appended = append(t.appended, &cp)
	return nil
}

func (t *memTx) DeleteVote(voteID string) error {
	if t.deleted[voteID] {
		return voting.ErrVoteNotFound
	}
	t.store.mu.RLock()
	_, ok := t.store.votes[voteID]
	t.store.mu.RUnlock()
	if !ok {
		return voting.ErrVoteNotFound
	}
	t.deleted[voteID] = true
	return nil
}

func (t *memTx) RecordHistory(userID string, votedAt time.Time) error {
	t.histAppended = append(t.histAppended, models.VoteHistory{
		UserID:  userID,
		PollID:  t.poll.ID,
		VotedAt: votedAt,
	})
	return nil
}

func (t *memTx) RemoveHistory(userID string) error {
	t.histRemoved = append(t.histRemoved, userID)
	return nil
}

// Poll repository implementation, shared with the gorm store so the admin
// surface can run against either substrate.

func (s *MemoryStore) Create(ctx context.Context, p *models.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = clonePoll(p)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	return s.GetPoll(ctx, pollID)
}

func (s *MemoryStore) List(ctx context.Context, filter poll.ListFilter) ([]*models.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Poll
	for _, p := range s.polls {
		if filter.PublicOnly && !p.IsPublic && p.CreatorID != filter.ViewerID {
			continue
		}
		if filter.CreatorID != "" && p.CreatorID != filter.CreatorID {
			continue
		}
		out = append(out, clonePoll(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateMeta(ctx context.Context, pollID string, fn func(p *models.Poll) error) error {
	lock := s.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	current, ok := s.polls[pollID]
	s.mu.RUnlock()
	if !ok {
		return voting.ErrPollNotFound
	}
	cp := clonePoll(current)
	if err := fn(cp); err != nil {
		return err
	}
	s.mu.Lock()
	s.polls[pollID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReplaceOptions(ctx context.Context, pollID string, options []models.Option) error {
	return s.UpdateMeta(ctx, pollID, func(p *models.Poll) error {
		if p.TotalVotes > 0 {
			return poll.ErrOptionsLocked
		}
		p.Options = options
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, pollID string) error {
	lock := s.pollLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[pollID]; !ok {
		return voting.ErrPollNotFound
	}
	delete(s.polls, pollID)
	return nil
}
