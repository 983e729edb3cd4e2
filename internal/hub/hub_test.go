package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository/memory"
)

func addDevice(t *testing.T, store *memory.Repository, address string, seen time.Time) {
	t.Helper()
	require.NoError(t, store.InsertDevice(context.Background(), domain.NewDevice(address, domain.StatusAllowed, seen)))
}

func decode(t *testing.T, data []byte) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

type failingSource struct{}

func (failingSource) ListDevices(context.Context) ([]domain.Device, error) {
	return nil, errors.New("store offline")
}

func TestSubscribeQueuesSnapshot(t *testing.T) {
	store := memory.New()
	addDevice(t, store, "10.0.0.5", time.Now())
	h := New(store)

	c, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer h.Unsubscribe(c)

	select {
	case <-c.Ready():
	default:
		t.Fatal("expected connect snapshot to be ready immediately")
	}

	msgs := c.Drain()
	require.Len(t, msgs, 1, "exactly one connect push")
	assert.Equal(t, EventUpdate, msgs[0].Event)
	snap := decode(t, msgs[0].Data)
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "10.0.0.5", snap.Devices[0].Address)
	assert.Equal(t, 1, h.ClientCount())
}

func TestEmptySnapshotEncodesArray(t *testing.T) {
	h := New(memory.New())
	c, err := h.Subscribe(context.Background())
	require.NoError(t, err)

	msgs := c.Drain()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"devices":[]}`, string(msgs[0].Data))
}

func TestPublishOrdering(t *testing.T) {
	store := memory.New()
	h := New(store)
	ctx := context.Background()

	c, err := h.Subscribe(ctx)
	require.NoError(t, err)

	base := time.Now()
	addDevice(t, store, "10.0.0.1", base)
	require.NoError(t, h.Publish(ctx))
	addDevice(t, store, "10.0.0.2", base.Add(time.Second))
	require.NoError(t, h.Publish(ctx))

	msgs := c.Drain()
	require.Len(t, msgs, 3)
	assert.Len(t, decode(t, msgs[0].Data).Devices, 0, "connect snapshot comes first")
	assert.Len(t, decode(t, msgs[1].Data).Devices, 1)
	second := decode(t, msgs[2].Data)
	require.Len(t, second.Devices, 2)
	assert.Equal(t, "10.0.0.2", second.Devices[0].Address, "most recently seen first")
	assert.Less(t, msgs[0].Seq, msgs[1].Seq)
	assert.Less(t, msgs[1].Seq, msgs[2].Seq)
}

func TestConcurrentPublishKeepsSequence(t *testing.T) {
	h := New(memory.New(), WithQueueSize(1000))
	ctx := context.Background()
	c, err := h.Subscribe(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Publish(ctx))
		}()
	}
	wg.Wait()

	msgs := c.Drain()
	require.Len(t, msgs, 21)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].Seq, msgs[i].Seq)
	}
}

func TestSlowClientDropsOldest(t *testing.T) {
	h := New(memory.New(), WithQueueSize(2))
	ctx := context.Background()
	c, err := h.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Publish(ctx))
	}

	msgs := c.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(5), msgs[0].Seq)
	assert.Equal(t, uint64(6), msgs[1].Seq)
}

func TestSubscribeFailsWithoutSnapshot(t *testing.T) {
	h := New(failingSource{})

	_, err := h.Subscribe(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, h.ClientCount())
	assert.Error(t, h.Publish(context.Background()))
}

func TestUnsubscribeAndClose(t *testing.T) {
	h := New(memory.New())
	ctx := context.Background()

	a, err := h.Subscribe(ctx)
	require.NoError(t, err)
	b, err := h.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.ClientCount())

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	assert.Equal(t, 1, h.ClientCount())
	<-a.Done()

	h.Close()
	assert.Equal(t, 0, h.ClientCount())
	<-b.Done()
}

// readSSEEvent returns the data line of the next event frame
func readSSEEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && event != "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServeSSE(t *testing.T) {
	store := memory.New()
	addDevice(t, store, "10.0.0.5", time.Now())
	h := New(store)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	event, data := readSSEEvent(t, reader)
	assert.Equal(t, "update", event)
	assert.Len(t, decode(t, []byte(data)).Devices, 1)

	addDevice(t, store, "10.0.0.6", time.Now().Add(time.Second))
	require.NoError(t, h.Publish(context.Background()))

	event, data = readSSEEvent(t, reader)
	assert.Equal(t, "update", event)
	snap := decode(t, []byte(data))
	require.Len(t, snap.Devices, 2)
	assert.Equal(t, "10.0.0.6", snap.Devices[0].Address)
}

func TestServeSSEOutlivesWriteTimeout(t *testing.T) {
	store := memory.New()
	h := New(store, WithKeepalive(50*time.Millisecond))
	srv := httptest.NewUnstartedServer(http.HandlerFunc(h.ServeSSE))
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	keepalives := 0
	var readErr error
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			readErr = err
			break
		}
		if strings.HasPrefix(line, ": keepalive") {
			keepalives++
		}
	}

	require.Error(t, ctx.Err(), "stream ended before the client gave up: %v", readErr)
	assert.NotErrorIs(t, readErr, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, readErr, io.EOF)
	assert.Greater(t, keepalives, 8)
}

func TestServeSSESnapshotUnavailable(t *testing.T) {
	h := New(failingSource{})
	rec := httptest.NewRecorder()

	h.ServeSSE(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeWS(t *testing.T) {
	store := memory.New()
	addDevice(t, store, "10.0.0.5", time.Now())
	h := New(store)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Event string   `json:"event"`
		Data  Snapshot `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Event)
	require.Len(t, msg.Data.Devices, 1)

	require.NoError(t, store.DeleteDevice(context.Background(), "10.0.0.5"))
	require.NoError(t, h.Publish(context.Background()))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Empty(t, msg.Data.Devices)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}
