//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

func TestManagerAgainstRealMongo(t *testing.T) {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	require.NoError(t, pool.Client.Ping())
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.Run("mongo", "7", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	cfg := testMongoConfig()
	cfg.URI = fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp"))
	cfg.ReconnectMaxAttempts = 30
	cfg.ReconnectInitialInterval = 500 * time.Millisecond
	cfg.ReconnectMaxInterval = 2 * time.Second
	cfg.Debug = true

	m := NewManager(cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := runManager(ctx, m)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, pool.Retry(func() error {
		if m.State() != StateConnected {
			return fmt.Errorf("state %s", m.State())
		}
		return nil
	}))

	db, err := m.Database()
	require.NoError(t, err)

	coll := db.Collection("probe")
	_, err = coll.InsertOne(ctx, bson.M{"name": "probe"})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, coll.FindOne(ctx, bson.M{"name": "probe"}).Decode(&doc))
	assert.Equal(t, "probe", doc["name"])

	m.NotifyDisconnected()
	require.NoError(t, pool.Retry(func() error {
		if m.State() != StateConnected {
			return fmt.Errorf("state %s", m.State())
		}
		return m.Ping(ctx)
	}))
}
