package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Seednode/tandem/session"
	"github.com/Seednode/tandem/vocab"
)

type testServer struct {
	*httptest.Server
	game *session.Session
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	words, err := vocab.New([]vocab.Entry{
		{Word: "你好", WordDetail: "nǐ hǎo", Definitions: []string{"hello", "hi"}},
		{Word: "谢谢", WordDetail: "xièxie", Definitions: []string{"thank you"}},
		{Word: "再见", WordDetail: "zàijiàn", Definitions: []string{"goodbye"}},
	})
	require.NoError(t, err)

	cfg := &Config{writeTimeout: time.Second}
	game := session.New(words, zap.NewNop())

	errs := make(chan error, 64)
	go func() {
		for range errs {
		}
	}()

	srv := httptest.NewServer(newRouter(cfg, game, zap.NewNop(), errs))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, game: game}
}

func (s *testServer) dial(t *testing.T, locale string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/game/"+locale, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	return data
}

func readState(t *testing.T, conn *websocket.Conn) session.State {
	t.Helper()

	var st session.State
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &st))

	return st
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestInitialPush(t *testing.T) {
	srv := newTestServer(t)
	en := srv.dial(t, "en-US")

	st := readState(t, en)
	assert.False(t, st.Ready)
	assert.False(t, st.HasScore)
	assert.Nil(t, st.Scored)
	assert.NotEmpty(t, st.MyCard.Word)
	assert.NotEmpty(t, st.TheirCard.Definition)
}

func TestUnsupportedLocaleIsRejected(t *testing.T) {
	srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/game/fr", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.False(t, srv.game.Attached(session.English))
	assert.False(t, srv.game.Attached(session.Chinese))
}

func TestScoreAndAdvanceRound(t *testing.T) {
	srv := newTestServer(t)
	en := srv.dial(t, "en")
	readState(t, en)
	zh := srv.dial(t, "zh")
	readState(t, zh)

	send(t, en, `{"score": 7}`)

	enState := readState(t, en)
	require.NotNil(t, enState.Scored)
	assert.Equal(t, uint8(7), *enState.Scored)
	assert.False(t, enState.HasScore)

	zhState := readState(t, zh)
	assert.True(t, zhState.HasScore)
	assert.Nil(t, zhState.Scored)

	send(t, en, `{"action": "advance-round"}`)
	assert.True(t, readState(t, en).Ready)
	assert.False(t, readState(t, zh).Ready)

	send(t, zh, `{"action": "advance-round"}`)
	zhState = readState(t, zh)
	enState = readState(t, en)

	for _, st := range []session.State{enState, zhState} {
		assert.False(t, st.Ready)
		assert.False(t, st.HasScore)
		assert.Nil(t, st.Scored)
	}
	assert.Equal(t, enState.MyCard, zhState.TheirCard)
	assert.Equal(t, enState.TheirCard, zhState.MyCard)
}

func TestMalformedRequestClosesOnlyThatConnection(t *testing.T) {
	srv := newTestServer(t)
	en := srv.dial(t, "en")
	readState(t, en)
	zh := srv.dial(t, "zh")
	readState(t, zh)

	send(t, en, `{"foo": 1}`)

	var resp session.ErrorResponse
	require.NoError(t, json.Unmarshal(readFrame(t, en), &resp))
	assert.Contains(t, resp.Error, "invalid request")

	require.NoError(t, en.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := en.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return !srv.game.Attached(session.English)
	}, 5*time.Second, 10*time.Millisecond)

	send(t, zh, `{"score": 3}`)
	st := readState(t, zh)
	require.NotNil(t, st.Scored)
	assert.Equal(t, uint8(3), *st.Scored)
	assert.True(t, srv.game.Attached(session.Chinese))
}

func TestNonTextAndEmptyFramesAreSkipped(t *testing.T) {
	srv := newTestServer(t)
	zh := srv.dial(t, "zh")
	readState(t, zh)

	require.NoError(t, zh.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	send(t, zh, "")
	send(t, zh, `{"score": 9}`)

	st := readState(t, zh)
	require.NotNil(t, st.Scored)
	assert.Equal(t, uint8(9), *st.Scored)
}

func TestReconnectSupersedesPreviousConnection(t *testing.T) {
	srv := newTestServer(t)
	old := srv.dial(t, "en")
	readState(t, old)

	replacement := srv.dial(t, "en")
	readState(t, replacement)

	require.NoError(t, old.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := old.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	zh := srv.dial(t, "zh")
	readState(t, zh)
	send(t, zh, `{"score": 4}`)
	readState(t, zh)

	assert.True(t, readState(t, replacement).HasScore)
	assert.True(t, srv.game.Attached(session.English))
}

func TestCloseFrameVacatesSlot(t *testing.T) {
	srv := newTestServer(t)
	en := srv.dial(t, "en")
	readState(t, en)

	require.True(t, srv.game.Attached(session.English))

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, en.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	assert.Eventually(t, func() bool {
		return !srv.game.Attached(session.English)
	}, 5*time.Second, 10*time.Millisecond)

	// A clean close gets a close frame back, never an error frame.
	require.NoError(t, en.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := en.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestInviteQRCode(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/game/zh/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(srv.URL + "/game/xx/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUtilityRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{path: "/", contentType: "text/html; charset=utf-8", contains: "/game/en"},
		{path: "/healthz", contentType: "text/plain; charset=utf-8", contains: "Ok"},
		{path: "/version", contentType: "text/plain; charset=utf-8", contains: "tandem v" + releaseVersion},
		{path: "/robots.txt", contentType: "text/plain; charset=utf-8", contains: "Disallow: /game/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

// readLoopServer runs readRequests on every upgraded connection and reports
// how each loop ended.
func readLoopServer(t *testing.T) (string, <-chan error) {
	t.Helper()

	words, err := vocab.New([]vocab.Entry{{Word: "你好", Definitions: []string{"hello"}}})
	require.NoError(t, err)

	game := session.New(words, zap.NewNop())
	results := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		results <- readRequests(game, session.English, conn, zap.NewNop())
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), results
}

func TestReadRequestsEndings(t *testing.T) {
	t.Run("close frame", func(t *testing.T) {
		url, results := readLoopServer(t)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

		select {
		case err := <-results:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("read loop did not end")
		}
	})

	t.Run("dropped without close frame", func(t *testing.T) {
		url, results := readLoopServer(t)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		require.NoError(t, conn.UnderlyingConn().Close())

		select {
		case err := <-results:
			var closed *websocket.CloseError
			require.ErrorAs(t, err, &closed)
			assert.Equal(t, websocket.CloseAbnormalClosure, closed.Code)
		case <-time.After(5 * time.Second):
			t.Fatal("read loop did not end")
		}
	})

	t.Run("malformed request", func(t *testing.T) {
		url, results := readLoopServer(t)

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"Score": 1}`)))

		select {
		case err := <-results:
			assert.ErrorIs(t, err, session.ErrDecode)
		case <-time.After(5 * time.Second):
			t.Fatal("read loop did not end")
		}
	})
}

func TestHomePageShowsConnectedSides(t *testing.T) {
	srv := newTestServer(t)

	home := func() string {
		resp, err := http.Get(srv.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return string(body)
	}

	body := home()
	assert.Contains(t, body, `<span class="en-status">open</span>`)
	assert.Contains(t, body, `<span class="zh-status">open</span>`)

	en := srv.dial(t, "en")
	readState(t, en)

	body = home()
	assert.Contains(t, body, `<span class="en-status">connected</span>`)
	assert.Contains(t, body, `<span class="zh-status">open</span>`)
}
