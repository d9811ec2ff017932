package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinlauco/scrum-poker/internal/adapters/signal"
	"github.com/calvinlauco/scrum-poker/internal/app"
	"github.com/calvinlauco/scrum-poker/internal/config"
	"github.com/calvinlauco/scrum-poker/internal/core"
	"github.com/calvinlauco/scrum-poker/internal/domain"
	"github.com/calvinlauco/scrum-poker/internal/protocol"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Mode:       "test",
		Port:       8080,
		StaticPath: "./web",
		Secret:     "test-secret",
		LogFormat:  "console",
	}
	cfg.WS = config.WSConfig{ReadLimit: 32768, WriteWait: time.Second, SendBuffer: 32}
	cfg.Session = config.SessionConfig{CallTimeout: time.Second, MailboxSize: 16, MaxDeferred: 4, BindFailure: "report"}
	cfg.Directory = config.DirectoryConfig{MaxRoomName: 36}
	cfg.Bridge = config.BridgeConfig{PoolSize: 8}
	return cfg
}

type testServer struct {
	srv *httptest.Server
	dir *app.Directory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	dir := app.NewDirectory(app.DirectoryConfig{MaxRoomName: cfg.Directory.MaxRoomName}, app.SimplePolicy{})
	ctrl, err := signal.NewSignalWSController(dir, cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRouter(ctx, cfg, dir, ctrl))
	t.Cleanup(func() {
		cancel()
		ctrl.Wait()
		srv.Close()
	})
	return &testServer{srv: srv, dir: dir}
}

func (ts *testServer) dial(t *testing.T, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/ws?name=" + name
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) protocol.Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	resp, err := protocol.DecodeResponse(data)
	require.NoError(t, err)
	return resp
}

func write(t *testing.T, conn *websocket.Conn, req protocol.Request) {
	t.Helper()
	data, err := protocol.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestRouter_Healthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.dial(t, "alice")
	reg, ok := read(t, alice).(protocol.Registered)
	require.True(t, ok)
	assert.Equal(t, "alice", reg.User.Username)

	write(t, alice, protocol.CreateRoom{Params: domain.RoomParams{Name: "planning"}})
	created, ok := read(t, alice).(protocol.RoomCreated)
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("planning"), created.Name)

	bob := ts.dial(t, "bob")
	require.IsType(t, protocol.Registered{}, read(t, bob))
	write(t, bob, protocol.JoinRoom{RoomUUID: created.RoomUUID})
	joined, ok := read(t, bob).(protocol.RoomJoined)
	require.True(t, ok)
	assert.Len(t, joined.Members, 2)

	memberJoined, ok := read(t, alice).(protocol.MemberJoined)
	require.True(t, ok)
	assert.Equal(t, "bob", memberJoined.User.Username)

	resp, err := http.Get(ts.srv.URL + "/api/rooms")
	require.NoError(t, err)
	var listing struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&listing))
	_ = resp.Body.Close()
	require.Len(t, listing.Rooms, 1)
	assert.Equal(t, 2, listing.Rooms[0].MemberCount)

	req, err := http.NewRequest(http.MethodDelete, ts.srv.URL+"/api/rooms/"+string(created.RoomUUID)+"?reason=done", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, protocol.RoomClosed("done"), read(t, alice))
	assert.Equal(t, protocol.RoomClosed("done"), read(t, bob))
	assert.Empty(t, ts.dir.ListRooms())
}

func TestRouter_DeleteUnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	for path, status := range map[string]int{
		"/api/rooms/" + string(domain.NewRoomID()): http.StatusNotFound,
		"/api/rooms/nope":                          http.StatusBadRequest,
	} {
		req, err := http.NewRequest(http.MethodDelete, ts.srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode, path)
	}
}

func TestRouter_MalformedFrameKeepsConnection(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t, "carol")
	require.IsType(t, protocol.Registered{}, read(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"bogus":true}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xff}))
	write(t, conn, protocol.Ping{})
	assert.Equal(t, protocol.Pong{}, read(t, conn))
}
