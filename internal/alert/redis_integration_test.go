//go:build integration

package alert

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_RedisChannel_Publish(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "jobradar-test-alerts")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	ch := NewRedisChannel(client, "jobradar-test-alerts")
	require.NoError(t, ch.Send(ctx, testAlert()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Alert
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "abc123", got.Fingerprint)
}
