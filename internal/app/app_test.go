package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/service/sending"
)

func TestNewSender(t *testing.T) {
	cfg := &config.Config{}
	cfg.Delivery.APIKey = "re_123"

	s, err := newSender(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &sending.ResendSender{}, s)
	assert.NoError(t, s.Ready())

	cfg.Delivery.Provider = "pigeon"
	_, err = newSender(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	assert.Nil(t, openRedis(context.Background(), ""))

	mr := miniredis.RunT(t)
	c := openRedis(context.Background(), "redis://"+mr.Addr())
	require.NotNil(t, c)
	defer c.Close()

	mr.Close()
	assert.Nil(t, openRedis(context.Background(), "redis://"+mr.Addr()))
}

func TestOpenUploads_Local(t *testing.T) {
	cfg := &config.Config{}
	cfg.Uploads.LocalDir = t.TempDir()
	a := &App{Config: cfg}
	require.NoError(t, a.openUploads(context.Background()))
	assert.IsType(t, &attachment.LocalStore{}, a.Uploads)
	assert.Nil(t, a.S3)
}

func TestOpenUploads_S3RequiresBucket(t *testing.T) {
	cfg := &config.Config{}
	cfg.Uploads.Type = "s3"
	a := &App{Config: cfg}
	assert.Error(t, a.openUploads(context.Background()))
}

func TestNew_RequiresDatabaseURL(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	assert.Error(t, err)
}
