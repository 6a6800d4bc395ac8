package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/expression"
	"github.com/teslashibe/go-avatar/pkg/protocol"
	"github.com/teslashibe/go-avatar/pkg/rig"
	"github.com/teslashibe/go-avatar/pkg/speech"
)

// fakeController records talk signals.
type fakeController struct {
	started  []time.Duration
	stopped  int
	startErr error
}

func (f *fakeController) StartTalking(d time.Duration) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, d)
	return "session-1", nil
}

func (f *fakeController) StopTalking() error {
	f.stopped++
	return nil
}

func (f *fakeController) Status() avatar.Status {
	return avatar.Status{ID: "fake", Rig: "tpose"}
}

func loadAvatar(t *testing.T) *avatar.Avatar {
	t.Helper()
	def, err := rig.LoadEmbedded("tpose")
	require.NoError(t, err)
	a, err := avatar.Load(def, avatar.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(a.Dispose)
	return a
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2, cfg.FrameDivisor)
}

func TestStatusWithoutAvatar(t *testing.T) {
	s := NewServer(DefaultConfig())

	code, body := doJSON(t, s.App(), "GET", "/api/status", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, errNoAvatar.Error(), body["error"])

	code, _ = doJSON(t, s.App(), "POST", "/api/talk", `{"ms":500}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)

	code, _ = doJSON(t, s.App(), "POST", "/api/talk/stop", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
}

func TestStatus(t *testing.T) {
	s := NewServer(DefaultConfig())
	a := loadAvatar(t)
	s.Attach(a)

	code, body := doJSON(t, s.App(), "GET", "/api/status", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, a.ID(), body["id"])
	assert.Equal(t, "tpose", body["rig"])
	assert.Contains(t, body, "calibration")
}

func TestTalk(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Duration
	}{
		{"explicit ms", `{"ms":1500}`, 1500 * time.Millisecond},
		{"ms wins over text", `{"ms":300,"text":"hello there"}`, 300 * time.Millisecond},
		{"estimated from text", `{"text":"hello there, how are you today?"}`, speech.Duration("hello there, how are you today?")},
		{"open ended", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			s := NewServer(DefaultConfig())
			s.Attach(ctrl)

			code, body := doJSON(t, s.App(), "POST", "/api/talk", tt.body)
			require.Equal(t, fiber.StatusOK, code)
			assert.Equal(t, "session-1", body["session"])
			assert.EqualValues(t, tt.want.Milliseconds(), body["ms"])
			assert.Equal(t, []time.Duration{tt.want}, ctrl.started)
		})
	}
}

func TestTalkRejected(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(DefaultConfig())
	s.Attach(ctrl)

	code, _ := doJSON(t, s.App(), "POST", "/api/talk", `{"ms":`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := doJSON(t, s.App(), "POST", "/api/talk", `{"ms":-5}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, errNegativeDuration.Error(), body["error"])
	assert.Empty(t, ctrl.started)

	ctrl.startErr = expression.ErrSignalQueueFull
	code, _ = doJSON(t, s.App(), "POST", "/api/talk", `{"ms":100}`)
	assert.Equal(t, fiber.StatusTooManyRequests, code)

	ctrl.startErr = avatar.ErrDisposed
	code, _ = doJSON(t, s.App(), "POST", "/api/talk", `{"ms":100}`)
	assert.Equal(t, fiber.StatusGone, code)

	ctrl.startErr = errors.New("boom")
	code, body = doJSON(t, s.App(), "POST", "/api/talk", `{"ms":100}`)
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "boom", body["error"])
}

func TestTalkStop(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(DefaultConfig())
	s.Attach(ctrl)

	code, body := doJSON(t, s.App(), "POST", "/api/talk/stop", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["stopped"])
	assert.Equal(t, 1, ctrl.stopped)
}

func TestTalkReachesAvatar(t *testing.T) {
	s := NewServer(DefaultConfig())
	a := loadAvatar(t)
	s.Attach(a)

	code, _ := doJSON(t, s.App(), "POST", "/api/talk", `{"ms":1000}`)
	require.Equal(t, fiber.StatusOK, code)

	require.NoError(t, a.Frame(context.Background(), 16*time.Millisecond))
	assert.True(t, a.Status().Animation.Talking)

	code, _ = doJSON(t, s.App(), "POST", "/api/talk/stop", "")
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, a.Frame(context.Background(), 16*time.Millisecond))
	assert.False(t, a.Status().Animation.Talking)
}

func TestWebSocketUpgradeRequired(t *testing.T) {
	s := NewServer(DefaultConfig())
	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/avatar", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestRenderFrameWithoutClients(t *testing.T) {
	s := NewServer(DefaultConfig())
	assert.NoError(t, s.RenderFrame(context.Background(), avatar.Frame{Seq: 2}))
	assert.Equal(t, 0, s.ClientCount())
}

func TestFrameData(t *testing.T) {
	a := loadAvatar(t)

	var got avatar.Frame
	a.SetRenderer(avatar.RendererFunc(func(_ context.Context, f avatar.Frame) error {
		got = f
		return nil
	}))
	require.NoError(t, a.Frame(context.Background(), 20*time.Millisecond))

	fd := frameData(got)
	assert.Equal(t, a.ID(), fd.AvatarID)
	assert.Equal(t, uint64(1), fd.Seq)
	assert.Equal(t, int64(20), fd.ClockMs)
	require.Len(t, fd.Bones, len(got.Bones))
	for i, b := range got.Bones {
		assert.Equal(t, b.Name, fd.Bones[i].Name)
		assert.Equal(t, b.Position.Y(), fd.Bones[i].Position[1])
		assert.Equal(t, b.Rotation.W, fd.Bones[i].Rotation[3])
	}
}

// readUntil reads websocket messages until one of type want arrives.
func readUntil(t *testing.T, ws *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		kind, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		if msg.Type == want {
			return msg
		}
	}
}

func writeMessage(t *testing.T, ws *websocket.Conn, msg *protocol.Message, err error) {
	t.Helper()
	require.NoError(t, err)
	data, err := msg.Bytes()
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestWebSocketSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameDivisor = 1
	s := NewServer(cfg)
	a := loadAvatar(t)
	s.Attach(a)
	a.SetRenderer(s)

	s.startHub()
	go s.App().Listen(":18090")
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/avatar", nil)
	require.NoError(t, err)
	defer ws.Close()

	// Status is sent on connect.
	status := readUntil(t, ws, protocol.TypeStatus)
	var st avatar.Status
	require.NoError(t, status.ParseData(&st))
	assert.Equal(t, a.ID(), st.ID)
	assert.Equal(t, 1, s.ClientCount())

	// Talk over the socket.
	msg, err := protocol.NewTalkMessage(1200, "")
	writeMessage(t, ws, msg, err)
	ack, err := readUntil(t, ws, protocol.TypeTalkAck).GetTalkAck()
	require.NoError(t, err)
	assert.NotEmpty(t, ack.Session)
	assert.Equal(t, int64(1200), ack.DurationMs)

	// Negative durations are rejected like over HTTP.
	msg, err = protocol.NewTalkMessage(-5, "")
	writeMessage(t, ws, msg, err)
	rejected, err := readUntil(t, ws, protocol.TypeError).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeTalk, rejected.Request)
	assert.Equal(t, errNegativeDuration.Error(), rejected.Message)

	// Frames are broadcast.
	require.NoError(t, a.Frame(context.Background(), 16*time.Millisecond))
	frame, err := readUntil(t, ws, protocol.TypeFrame).GetFrameData()
	require.NoError(t, err)
	assert.Equal(t, a.ID(), frame.AvatarID)
	assert.True(t, frame.Talking)
	assert.NotEmpty(t, frame.Bones)

	// Ping / pong.
	msg, err = protocol.NewPingMessage("p1")
	writeMessage(t, ws, msg, err)
	pong, err := readUntil(t, ws, protocol.TypePong).GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p1", pong.ID)

	// Garbage gets an error reply.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	_, err = readUntil(t, ws, protocol.TypeError).GetErrorData()
	require.NoError(t, err)

	// Stop talking.
	msg, err = protocol.NewTalkStopMessage()
	writeMessage(t, ws, msg, err)
	require.Eventually(t, func() bool {
		if err := a.Frame(context.Background(), 16*time.Millisecond); err != nil {
			return false
		}
		return !a.Status().Animation.Talking
	}, 2*time.Second, 10*time.Millisecond)

	ws.Close()
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
