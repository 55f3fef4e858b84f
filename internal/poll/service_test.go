package poll_test

import (
	"context"
	"testing"
	"time"

	"voting-service/internal/models"
	"voting-service/internal/poll"
	"voting-service/internal/storage"
	"voting-service/internal/voting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = models.Identity{UserID: "owner", Role: models.RoleVoter}
	admin    = models.Identity{UserID: "admin", Role: models.RoleAdmin}
	stranger = models.Identity{UserID: "stranger", Role: models.RoleVoter}
)

func validCreateRequest() *models.CreatePollRequest {
	return &models.CreatePollRequest{
		Title:     "lunch spot",
		Options:   []string{"Tacos", "Ramen"},
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
	}
}

func newService(t *testing.T) (*poll.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return poll.NewService(store, nil, nil), store
}

func TestCreatePoll(t *testing.T) {
	svc, store := newService(t)

	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "owner", created.CreatorID)
	assert.Equal(t, models.PollStatusActive, created.Status)
	assert.Equal(t, 1, created.MaxVotesPerUser)
	assert.True(t, created.IsPublic)
	require.Len(t, created.Options, 2)
	assert.Equal(t, "Tacos", created.Options[0].Text)
	assert.Equal(t, 0, created.Options[0].Index)

	stored, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, stored.Title)
}

func TestCreatePollValidation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name   string
		mutate func(*models.CreatePollRequest)
	}{
		{"too few options", func(r *models.CreatePollRequest) { r.Options = []string{"only one"} }},
		{"too many options", func(r *models.CreatePollRequest) {
			r.Options = make([]string, 11)
			for i := range r.Options {
				r.Options[i] = "opt"
			}
		}},
		{"blank option text", func(r *models.CreatePollRequest) { r.Options = []string{"a", "   "} }},
		{"window inverted", func(r *models.CreatePollRequest) {
			r.StartDate = time.Now().Add(time.Hour)
			r.EndDate = time.Now()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)
			_, err := svc.Create(context.Background(), owner, req)
			var validation *poll.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestCreatePollQuotaDerivation(t *testing.T) {
	svc, _ := newService(t)

	req := validCreateRequest()
	req.AllowMultiple = true
	created, err := svc.Create(context.Background(), owner, req)
	require.NoError(t, err)
	assert.Equal(t, 3, created.MaxVotesPerUser, "allow_multiple_votes without a quota defaults it")
	assert.True(t, created.AllowMultipleVotes())

	req = validCreateRequest()
	req.MaxVotesPerUser = 5
	req.AllowMultiple = false
	created, err = svc.Create(context.Background(), owner, req)
	require.NoError(t, err)
	assert.Equal(t, 5, created.MaxVotesPerUser, "an explicit quota wins over the boolean")
}

func TestGetPollVisibility(t *testing.T) {
	svc, _ := newService(t)

	req := validCreateRequest()
	isPublic := false
	req.IsPublic = &isPublic
	created, err := svc.Create(context.Background(), owner, req)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), created.ID, stranger)
	assert.ErrorIs(t, err, poll.ErrNotAllowed)

	for _, viewer := range []models.Identity{owner, admin} {
		resp, err := svc.Get(context.Background(), created.ID, viewer)
		require.NoError(t, err)
		assert.Equal(t, created.ID, resp.ID)
	}
}

func TestUpdatePollPermissions(t *testing.T) {
	svc, _ := newService(t)
	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	title := "updated"
	err = svc.Update(context.Background(), created.ID, stranger, &models.UpdatePollRequest{Title: &title})
	assert.ErrorIs(t, err, poll.ErrNotAllowed)

	err = svc.Update(context.Background(), created.ID, owner, &models.UpdatePollRequest{Title: &title})
	require.NoError(t, err)

	resp, err := svc.Get(context.Background(), created.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "updated", resp.Title)
}

func TestUpdateOptionsLockedAfterFirstVote(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := poll.NewService(store, nil, nil)
	engine := voting.NewEngine(store, nil)

	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	// Structural edits are fine while the poll is untouched.
	err = svc.Update(context.Background(), created.ID, owner, &models.UpdatePollRequest{
		Options: []string{"Tacos", "Ramen", "Pho"},
	})
	require.NoError(t, err)

	_, err = engine.CastVote(context.Background(), created.ID, "u1", 0, voting.CastOptions{})
	require.NoError(t, err)

	err = svc.Update(context.Background(), created.ID, owner, &models.UpdatePollRequest{
		Options: []string{"Sushi", "Pizza"},
	})
	assert.ErrorIs(t, err, poll.ErrOptionsLocked)

	// Non-structural edits still work.
	desc := "where to eat"
	err = svc.Update(context.Background(), created.ID, owner, &models.UpdatePollRequest{Description: &desc})
	require.NoError(t, err)
}

func TestSetStatus(t *testing.T) {
	svc, store := newService(t)
	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	err = svc.SetStatus(context.Background(), created.ID, owner, models.PollStatusCompleted)
	var validation *poll.ValidationError
	assert.ErrorAs(t, err, &validation, "only the active/inactive toggle is allowed")

	require.NoError(t, svc.SetStatus(context.Background(), created.ID, owner, models.PollStatusInactive))
	stored, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusInactive, stored.Status)

	require.NoError(t, svc.SetStatus(context.Background(), created.ID, admin, models.PollStatusActive))
	stored, err = store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusActive, stored.Status)
}

func TestCancelPoll(t *testing.T) {
	svc, store := newService(t)
	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), created.ID, admin))
	stored, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusCancelled, stored.Status)
}

func TestDeletePoll(t *testing.T) {
	svc, _ := newService(t)
	created, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, stranger)
	assert.ErrorIs(t, err, poll.ErrNotAllowed)

	require.NoError(t, svc.Delete(context.Background(), created.ID, owner))
	_, err = svc.Get(context.Background(), created.ID, owner)
	assert.ErrorIs(t, err, voting.ErrPollNotFound)
}

func TestListPollsHidesPrivate(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), owner, validCreateRequest())
	require.NoError(t, err)

	req := validCreateRequest()
	isPublic := false
	req.IsPublic = &isPublic
	_, err = svc.Create(context.Background(), owner, req)
	require.NoError(t, err)

	visible, err := svc.List(context.Background(), stranger)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	visible, err = svc.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	visible, err = svc.List(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}
