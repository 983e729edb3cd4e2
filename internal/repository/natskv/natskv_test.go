package natskv

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	srvtest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
	"lanwatch/internal/repository/storetest"
)

var _ repository.DeviceStore = (*Repository)(nil)

func startJetStreamServer(t *testing.T) *server.Server {
	t.Helper()
	opts := srvtest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := srvtest.RunServer(&opts)
	t.Cleanup(func() {
		s.Shutdown()
		s.WaitForShutdown()
	})
	return s
}

func jetStreamContext(t *testing.T, s *server.Server) nats.JetStreamContext {
	t.Helper()
	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err, "connect")
	t.Cleanup(nc.Close)

	js, err := nc.JetStream(nats.MaxWait(10 * time.Second))
	require.NoError(t, err, "jetstream")
	return js
}

func TestConformance(t *testing.T) {
	srv := startJetStreamServer(t)
	js := jetStreamContext(t, srv)

	var n atomic.Int32
	storetest.Run(t, func(t *testing.T) repository.DeviceStore {
		repo, err := New(js, Options{Bucket: fmt.Sprintf("devices-%d", n.Add(1))})
		require.NoError(t, err)
		return repo
	})
}

func TestIPv6Keys(t *testing.T) {
	srv := startJetStreamServer(t)
	repo, err := New(jetStreamContext(t, srv), Options{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.InsertDevice(ctx, domain.NewDevice("fd00::5", domain.StatusAllowed, time.Now())))

	got, err := repo.GetDevice(ctx, "fd00::5")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fd00::5", got.Address)

	devices, err := repo.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Device-5", devices[0].DisplayName)
}

func TestReinsertAfterDelete(t *testing.T) {
	srv := startJetStreamServer(t)
	repo, err := New(jetStreamContext(t, srv), Options{Bucket: "reinsert"})
	require.NoError(t, err)

	ctx := context.Background()
	d := domain.NewDevice("10.0.0.5", domain.StatusAllowed, time.Now())
	require.NoError(t, repo.InsertDevice(ctx, d))
	require.NoError(t, repo.DeleteDevice(ctx, "10.0.0.5"))
	require.NoError(t, repo.InsertDevice(ctx, d))

	devices, err := repo.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestConcurrentTouchKeepsLatest(t *testing.T) {
	srv := startJetStreamServer(t)
	repo, err := New(jetStreamContext(t, srv), Options{Bucket: "touch"})
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertDevice(ctx, domain.NewDevice("10.0.0.5", domain.StatusAllowed, base)))

	done := make(chan error, 5)
	for i := 1; i <= 5; i++ {
		go func(i int) {
			done <- repo.TouchDevice(ctx, "10.0.0.5", domain.StatusBlocked, base.Add(time.Duration(i)*time.Second))
		}(i)
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, <-done)
	}

	got, err := repo.GetDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, base.Add(5*time.Second).Equal(got.LastSeenAt), "last seen %v", got.LastSeenAt)
	assert.Equal(t, domain.StatusBlocked, got.Status)
}

func TestKeyEncoding(t *testing.T) {
	assert.Equal(t, "fe80__1", encodeKey("fe80::1"))
	assert.Equal(t, "fe80::1", decodeKey(encodeKey("fe80::1")))
	assert.Equal(t, "10.0.0.5", encodeKey("10.0.0.5"))
}
