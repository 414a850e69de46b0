// Copyright 2025 James Ross
package queue_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coppersystems/pipelined/internal/queue"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *queue.Error
		want string
	}{
		{&queue.Error{Kind: queue.ErrAlreadyExists, JobID: "j1"}, `queue: job "j1" already exists`},
		{&queue.Error{Kind: queue.ErrNotFound, JobID: "j1"}, `queue: job "j1" not found`},
		{&queue.Error{Kind: queue.ErrNotRunning, JobID: "j1"}, `queue: job "j1" is not running`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Error())
	}
}

func TestRedisPublisherPublishesToChannel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "pipeline:jobs:queued")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publish := queue.RedisPublisher(rdb)
	require.NoError(t, publish(ctx, "pipeline:jobs:queued", "job-123"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-123", msg.Payload)
}
