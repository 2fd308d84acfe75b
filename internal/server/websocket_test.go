package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/springd/internal/animator"
	"github.com/zeusync/springd/pkg/spring"
)

var snappy = animator.Params{Stiffness: 0.1, Dampening: 0.5}

func newTestServer(t *testing.T, cfg Config) (*Server, *animator.Animator, *httptest.Server) {
	t.Helper()
	a := animator.New(nil, nil)
	_, err := a.Add("x", snappy, spring.Scalar(0))
	require.NoError(t, err)

	cfg.Presets = map[string]animator.Params{"snappy": snappy}
	srv := New(cfg, a, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, a, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestClientReceivesSnapshotAndFrames(t *testing.T) {
	srv, a, ts := newTestServer(t, DefaultConfig())
	conn := dial(t, ts)

	first := read(t, conn)
	require.Equal(t, "frame", first.Type)
	require.NotNil(t, first.Frame)
	require.Len(t, first.Frame.Samples, 1)
	assert.Equal(t, "x", first.Frame.Samples[0].Name)
	assert.True(t, first.Frame.Samples[0].Settled)

	require.NoError(t, conn.WriteJSON(map[string]any{"op": "set", "spring": "x", "value": 10}))
	ack := read(t, conn)
	require.Equal(t, "ack", ack.Type, ack.Error)
	assert.Equal(t, "set", ack.Op)
	id, _ := a.Lookup("x")
	assert.Equal(t, id.String(), ack.ID)

	srv.Broadcast(a.Step())
	moving := read(t, conn)
	require.Equal(t, "frame", moving.Type)
	sample := moving.Frame.Samples[0]
	assert.False(t, sample.Settled)
	assert.Greater(t, sample.Value.Float(), 0.0)
	assert.True(t, sample.Destination.Equal(spring.Scalar(10)))
}

func TestBroadcastSkipsUnchangedFrames(t *testing.T) {
	srv, a, ts := newTestServer(t, DefaultConfig())
	conn := dial(t, ts)
	read(t, conn)

	frame := a.Step()
	srv.Broadcast(frame)
	assert.Equal(t, frame.Checksum, read(t, conn).Frame.Checksum)

	// identical state: nothing is sent, so the next message is the ack
	srv.Broadcast(a.Step())
	require.NoError(t, conn.WriteJSON(Command{Op: "bogus"}))
	reply := read(t, conn)
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "unknown command op")
}

func TestCommands(t *testing.T) {
	_, a, ts := newTestServer(t, DefaultConfig())
	conn := dial(t, ts)
	read(t, conn)

	send := func(body string) message {
		t.Helper()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(body)))
		return read(t, conn)
	}

	added := send(`{"op":"add","name":"cursor","preset":"snappy","value":[1,2]}`)
	require.Equal(t, "ack", added.Type, added.Error)
	assert.Equal(t, 2, a.Len())

	custom := send(`{"op":"add","stiffness":0.2,"dampening":0.3,"value":[1,2,3]}`)
	require.Equal(t, "ack", custom.Type, custom.Error)

	retune := send(`{"op":"retune","spring":"cursor","stiffness":0.3,"dampening":0.6}`)
	assert.Equal(t, "ack", retune.Type, retune.Error)

	mismatch := send(`{"op":"set","spring":"cursor","value":5}`)
	assert.Equal(t, "error", mismatch.Type)
	assert.Contains(t, mismatch.Error, spring.ErrShapeMismatch.Error())

	teleport := send(`{"op":"set","spring":"cursor","value":[7,8],"animate":false}`)
	require.Equal(t, "ack", teleport.Type, teleport.Error)
	id, ok := a.Lookup("cursor")
	require.True(t, ok)
	sample, err := a.Get(id)
	require.NoError(t, err)
	assert.True(t, sample.Value.Equal(spring.Vec2(7, 8)))

	assert.Equal(t, "error", send(`{"op":"add","preset":"nope","value":1}`).Type)
	assert.Equal(t, "error", send(`{"op":"add","value":[1,2,3,4,5],"stiffness":1,"dampening":1}`).Type)
	assert.Equal(t, "error", send(`{"op":"retune","spring":"cursor"}`).Type)
	assert.Equal(t, "error", send(`{"op":"set","spring":"ghost","value":1}`).Type)
	assert.Equal(t, "error", send(`not json`).Type)

	removed := send(`{"op":"remove","spring":"` + custom.ID + `"}`)
	require.Equal(t, "ack", removed.Type, removed.Error)
	assert.Equal(t, 2, a.Len())
}

func TestMaxClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	srv, _, ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	read(t, conn)
	assert.Equal(t, 1, srv.ClientCount())

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t, DefaultConfig())
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Springs)
	assert.True(t, h.Settled)
}

func TestServeStopsOnCancel(t *testing.T) {
	a := animator.New(nil, nil)
	// slow enough to keep moving for the whole test
	id, err := a.Add("x", animator.Params{Stiffness: 0.001, Dampening: 0.01}, spring.Scalar(0))
	require.NoError(t, err)
	require.NoError(t, a.SetDestination(id, spring.Scalar(1000), true))

	cfg := DefaultConfig()
	cfg.FrameInterval = 5 * time.Millisecond
	srv := New(cfg, a, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// snapshot, then at least one clock-driven frame
	read(t, conn)
	next := read(t, conn)
	require.Equal(t, "frame", next.Type)
	assert.Positive(t, next.Frame.Seq)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
