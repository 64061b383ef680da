//go:build integration

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisFanoutDeliversAcrossInstances(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// two instances sharing one Redis
	hubA, hubB := NewHub(testLogger()), NewHub(testLogger())
	clientA, clientB := testClient(hubA, 8), testClient(hubB, 8)
	hubA.Register(clientA)
	hubB.Register(clientB)
	hubB.JoinRoom(clientB, "e1")

	pubsubA, pubsubB := NewRedisPubSub(client, testLogger()), NewRedisPubSub(client, testLogger())
	go func() { _ = pubsubA.Run(ctx, hubA.Deliver) }()
	go func() { _ = pubsubB.Run(ctx, hubB.Deliver) }()

	// wait for both pattern subscriptions
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumPat(ctx).Result()
		return err == nil && n >= 2 && pubsubA.Subscribed() && pubsubB.Subscribed()
	}, 10*time.Second, 50*time.Millisecond)

	b := NewBroadcaster(hubA, pubsubA, testLogger())
	b.EventDeleted("e1")
	b.AttendeesChanged(resolvedStub("e1"))

	require.Eventually(t, func() bool { return len(clientB.send) == 2 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(clientA.send) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, KindEventDeleted, (<-clientA.send).Event)
}
