// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/playtogether/internal/auth"
	"github.com/jason-s-yu/playtogether/internal/config"
	"github.com/jason-s-yu/playtogether/internal/game"
	"github.com/jason-s-yu/playtogether/internal/models"
	"github.com/jason-s-yu/playtogether/internal/realtime"
	"github.com/jason-s-yu/playtogether/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv    *Server
	http   *httptest.Server
	tokens map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	issuer, err := auth.NewIssuer(0)
	require.NoError(t, err)
	hub := realtime.NewHub(logger, 0)
	store := session.NewStore(session.Options{Notifier: hub, Logger: logger})

	srv := &Server{
		Store:           store,
		Hub:             hub,
		Issuer:          issuer,
		Personalization: config.Personalization{HonoreeName: "Sam", PartnerName: "Alex", Greeting: "Hi"},
		OriginPatterns:  []string{"*"},
		Logger:          logger,
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	env := &testEnv{srv: srv, http: ts, tokens: map[string]string{}}
	for _, p := range []string{"alice", "bob", "carol"} {
		tok, err := issuer.Issue(p)
		require.NoError(t, err)
		env.tokens[p] = tok
	}
	return env
}

// do sends a request as who ("" for an anonymous caller) and decodes the JSON response into out.
func (e *testEnv) do(t *testing.T, who, method, path string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.http.URL+path, &buf)
	require.NoError(t, err)
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[who])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type sessionResponse struct {
	ID           string          `json:"id"`
	GameID       string          `json:"game_id"`
	Participants []string        `json:"participants"`
	Status       models.Status   `json:"status"`
	Winner       string          `json:"winner"`
	Version      int             `json:"version"`
	CurrentTurn  string          `json:"current_turn"`
	State        json.RawMessage `json:"state"`
}

func (e *testEnv) startTicTac(t *testing.T) sessionResponse {
	t.Helper()
	var created, joined sessionResponse
	resp := e.do(t, "alice", http.MethodPost, "/sessions", map[string]string{"game_id": game.TicTacHeartsID}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = e.do(t, "bob", http.MethodPost, "/sessions/"+created.ID+"/join", nil, &joined)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return joined
}

func TestListGames(t *testing.T) {
	env := newTestEnv(t)
	var games []map[string]interface{}
	resp := env.do(t, "", http.MethodGet, "/games", nil, &games)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, games, 3)
	assert.Equal(t, game.LoveTriviaID, games[0]["id"])
	assert.NotContains(t, games[0], "Reducer")
}

func TestPingAndPersonalization(t *testing.T) {
	env := newTestEnv(t)
	var ping map[string]string
	env.do(t, "", http.MethodGet, "/", nil, &ping)
	assert.Equal(t, "ok", ping["status"])

	var p config.Personalization
	env.do(t, "", http.MethodGet, "/personalization", nil, &p)
	assert.Equal(t, "Sam", p.HonoreeName)
}

func TestGuestIdentityIsMinted(t *testing.T) {
	env := newTestEnv(t)
	var me map[string]string
	resp := env.do(t, "", http.MethodGet, "/me", nil, &me)
	assert.True(t, strings.HasPrefix(me["participant_id"], "guest-"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	sub, err := env.srv.Issuer.Verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, me["participant_id"], sub)

	env.do(t, "alice", http.MethodGet, "/me", nil, &me)
	assert.Equal(t, "alice", me["participant_id"])
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	sess := env.startTicTac(t)
	assert.Equal(t, models.StatusInProgress, sess.Status)
	assert.Equal(t, []string{"alice", "bob"}, sess.Participants)
	assert.Equal(t, "alice", sess.CurrentTurn)

	var apiErr apiError
	resp := env.do(t, "carol", http.MethodPost, "/sessions/"+sess.ID+"/join", nil, &apiErr)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_full", apiErr.Code)

	resp = env.do(t, "bob", http.MethodPost, "/sessions/"+sess.ID+"/move", map[string]int{"row": 0, "col": 0}, &apiErr)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "not_your_turn", apiErr.Code)

	resp = env.do(t, "carol", http.MethodPost, "/sessions/"+sess.ID+"/move", map[string]int{"row": 0, "col": 0}, &apiErr)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not_participant", apiErr.Code)

	plays := []struct {
		who      string
		row, col int
	}{
		{"alice", 0, 0}, {"bob", 1, 1}, {"alice", 0, 1}, {"bob", 1, 0}, {"alice", 0, 2},
	}
	var moved sessionResponse
	for _, p := range plays {
		resp = env.do(t, p.who, http.MethodPost, "/sessions/"+sess.ID+"/move", map[string]int{"row": p.row, "col": p.col}, &moved)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, models.StatusCompleted, moved.Status)
	assert.Equal(t, "alice", moved.Winner)
	assert.Empty(t, moved.CurrentTurn)

	var got sessionResponse
	env.do(t, "", http.MethodGet, "/sessions/"+sess.ID, nil, &got)
	assert.Equal(t, moved.Version, got.Version)

	var stats session.Stats
	env.do(t, "alice", http.MethodGet, "/stats", nil, &stats)
	assert.Equal(t, 1, stats.Wins)
	env.do(t, "bob", http.MethodGet, "/stats", nil, &stats)
	assert.Equal(t, 1, stats.Losses)
}

func TestCreateAndListErrors(t *testing.T) {
	env := newTestEnv(t)

	var apiErr apiError
	resp := env.do(t, "alice", http.MethodPost, "/sessions", map[string]string{"game_id": "chess"}, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_game", apiErr.Code)

	resp = env.do(t, "", http.MethodGet, "/sessions/not-a-uuid", nil, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "", http.MethodGet, "/sessions/00000000-0000-0000-0000-000000000001", nil, &apiErr)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)

	resp = env.do(t, "", http.MethodGet, "/sessions?status=paused", nil, &apiErr)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSessionsByStatus(t *testing.T) {
	env := newTestEnv(t)
	env.startTicTac(t)
	var waiting sessionResponse
	env.do(t, "carol", http.MethodPost, "/sessions", map[string]string{"game_id": game.MemoryMatchID}, &waiting)

	var list []sessionResponse
	env.do(t, "", http.MethodGet, "/sessions?status=waiting_for_partner", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, waiting.ID, list[0].ID)

	env.do(t, "alice", http.MethodGet, "/sessions?mine=true", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, game.TicTacHeartsID, list[0].GameID)
}

func TestListSessionsIsPaged(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < defaultListLimit+5; i++ {
		resp := env.do(t, "alice", http.MethodPost, "/sessions", map[string]string{"game_id": game.LoveTriviaID}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var list []sessionResponse
	env.do(t, "", http.MethodGet, "/sessions", nil, &list)
	assert.Len(t, list, defaultListLimit)

	env.do(t, "", http.MethodGet, "/sessions?limit=3", nil, &list)
	assert.Len(t, list, 3)

	env.do(t, "", http.MethodGet, "/sessions?limit=100", nil, &list)
	assert.Len(t, list, defaultListLimit+5)

	for _, bad := range []string{"0", "-2", "101", "ten"} {
		var apiErr apiError
		resp := env.do(t, "", http.MethodGet, "/sessions?limit="+bad, nil, &apiErr)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: chess", session.ErrInvalidGame), http.StatusBadRequest, "invalid_game"},
		{session.ErrSelfJoin, http.StatusConflict, "self_join"},
		{session.ErrWaitingForPartner, http.StatusConflict, "waiting_for_partner"},
		{fmt.Errorf("%w: card 3", game.ErrCellOccupied), http.StatusConflict, "cell_occupied"},
		{game.ErrInvalidIndex, http.StatusBadRequest, "invalid_index"},
		{game.ErrGameOver, http.StatusConflict, "game_over"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func (e *testEnv) dial(t *testing.T, who, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/sessions/ws/" + sessionID
	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.tokens[who])
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"game"},
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

type wsFrame struct {
	Type    string          `json:"type"`
	Code    string          `json:"code"`
	Session sessionResponse `json:"session"`
	Actor   string          `json:"actor"`
}

func readFrame(t *testing.T, c *websocket.Conn) wsFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f wsFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeFrame(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func TestWebSocketSynchronizesBothParticipants(t *testing.T) {
	env := newTestEnv(t)
	sess := env.startTicTac(t)

	alice := env.dial(t, "alice", sess.ID)
	bob := env.dial(t, "bob", sess.ID)

	for _, c := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, c)
		assert.Equal(t, string(models.EventSessionSnapshot), f.Type)
		assert.Equal(t, sess.Version, f.Session.Version)
	}

	// bob moving out of turn hears about it alone
	writeFrame(t, bob, map[string]interface{}{"type": "move", "move": map[string]int{"row": 0, "col": 0}})
	f := readFrame(t, bob)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "not_your_turn", f.Code)

	writeFrame(t, alice, map[string]interface{}{"type": "move", "move": map[string]int{"row": 1, "col": 1}})
	for _, c := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, c)
		assert.Equal(t, string(models.EventSessionMove), f.Type)
		assert.Equal(t, "alice", f.Session.Participants[0])
		assert.Equal(t, "alice", f.Actor)
		assert.Equal(t, sess.Version+1, f.Session.Version)
		assert.Equal(t, "bob", f.Session.CurrentTurn)
	}

	// a move made over HTTP reaches the sockets too
	resp := env.do(t, "bob", http.MethodPost, "/sessions/"+sess.ID+"/move", map[string]int{"row": 0, "col": 0}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f = readFrame(t, alice)
	assert.Equal(t, "bob", f.Actor)
	assert.Equal(t, sess.Version+2, f.Session.Version)

	writeFrame(t, alice, map[string]string{"type": "ping"})
	assert.Equal(t, "pong", readFrame(t, alice).Type)

	writeFrame(t, alice, map[string]string{"type": "sync"})
	f = readFrame(t, alice)
	assert.Equal(t, string(models.EventSessionSnapshot), f.Type)
	assert.Equal(t, sess.Version+2, f.Session.Version)
}

func TestWebSocketUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/sessions/ws/00000000-0000-0000-0000-000000000001"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{"game"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
