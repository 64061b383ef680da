//go:build integration

package models

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startMongo(t *testing.T) *MongodbRepo {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start mongo container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongo container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(endpoint))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	require.NoError(t, client.Ping(ctx, nil))

	repo := MongodbNewRepo(client, "eventhub_test")
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func newEvent(id string, date time.Time, max int, attendees ...string) *Event {
	return &Event{
		ID:           id,
		Title:        "Go meetup " + id,
		Description:  "Talks and pizza (bring a friend)",
		Date:         date,
		Location:     "Accra",
		Category:     "tech",
		Creator:      "alice",
		Attendees:    attendees,
		MaxAttendees: max,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestMongoEventsRepo(t *testing.T) {
	repo := startMongo(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := newEvent(fmt.Sprintf("e%d", i), base.AddDate(0, 0, 4-i), 2)
		if i%2 == 1 {
			e.Category = "music"
		}
		require.NoError(t, repo.CreateEvent(ctx, e))
	}
	assert.ErrorIs(t, repo.CreateEvent(ctx, newEvent("e0", base, 1)), ErrDuplicate)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetEventByID(ctx, "e0")
		require.NoError(t, err)
		assert.Equal(t, "Go meetup e0", got.Title)
		assert.Empty(t, got.Attendees)

		_, err = repo.GetEventByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list sorts by date and paginates", func(t *testing.T) {
		page, total, err := repo.ListEvents(ctx, EventFilter{}, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, page, 2)
		assert.Equal(t, "e4", page[0].ID)
		assert.Equal(t, "e3", page[1].ID)

		from := base.AddDate(0, 0, 2)
		page, total, err = repo.ListEvents(ctx, EventFilter{Category: "tech", MinDate: &from}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, page, 2)
		assert.Equal(t, "e2", page[0].ID)
		assert.Equal(t, "e0", page[1].ID)
	})

	t.Run("search treats input literally", func(t *testing.T) {
		found, err := repo.SearchEvents(ctx, "(BRING", "accra")
		require.NoError(t, err)
		assert.Len(t, found, 5)

		found, err = repo.SearchEvents(ctx, ".*", "")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("owner scoped update", func(t *testing.T) {
		title := "Renamed"
		_, err := repo.UpdateEvent(ctx, "e0", "bob", EventChanges{Title: &title})
		assert.ErrorIs(t, err, ErrNoMatch)

		updated, err := repo.UpdateEvent(ctx, "e0", "alice", EventChanges{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, "Accra", updated.Location)
	})

	t.Run("membership", func(t *testing.T) {
		joined, err := repo.AddAttendee(ctx, "e1", "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, joined.Attendees)

		_, err = repo.AddAttendee(ctx, "e1", "bob")
		assert.ErrorIs(t, err, ErrNoMatch)

		_, err = repo.AddAttendee(ctx, "e1", "carol")
		require.NoError(t, err)
		_, err = repo.AddAttendee(ctx, "e1", "dave")
		assert.ErrorIs(t, err, ErrNoMatch, "event is full")

		one := 1
		_, err = repo.UpdateEvent(ctx, "e1", "alice", EventChanges{MaxAttendees: &one})
		assert.ErrorIs(t, err, ErrNoMatch, "capacity below attendee count")

		left, err := repo.RemoveAttendee(ctx, "e1", "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"carol"}, left.Attendees)

		_, err = repo.RemoveAttendee(ctx, "e1", "bob")
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("concurrent joins respect capacity", func(t *testing.T) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := repo.AddAttendee(ctx, "e2", fmt.Sprintf("u%d", i)); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 2, ok)

		got, err := repo.GetEventByID(ctx, "e2")
		require.NoError(t, err)
		assert.Len(t, got.Attendees, 2)
	})

	t.Run("owner scoped delete", func(t *testing.T) {
		_, err := repo.DeleteEvent(ctx, "e3", "bob")
		assert.ErrorIs(t, err, ErrNoMatch)

		deleted, err := repo.DeleteEvent(ctx, "e3", "alice")
		require.NoError(t, err)
		assert.Equal(t, "e3", deleted.ID)

		_, err = repo.GetEventByID(ctx, "e3")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMongoUsersRepo(t *testing.T) {
	repo := startMongo(t)
	ctx := context.Background()

	alice := &User{ID: "alice", Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(ctx, alice))
	assert.ErrorIs(t, repo.CreateUser(ctx, &User{ID: "other", Name: "A", Email: "alice@example.com"}), ErrDuplicate)

	got, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.GetUserByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	upserted, err := repo.UpsertUser(ctx, &User{ID: "bob", Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", upserted.Name)
	assert.False(t, upserted.CreatedAt.IsZero())

	renamed, err := repo.UpsertUser(ctx, &User{ID: "bob", Name: "Robert", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Robert", renamed.Name)
	assert.WithinDuration(t, upserted.CreatedAt, renamed.CreatedAt, time.Millisecond)

	users, err := repo.GetUsersByIDs(ctx, []string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
