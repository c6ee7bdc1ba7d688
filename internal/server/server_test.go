package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cambio-games/server/internal/game"
	"github.com/cambio-games/server/internal/manager"
)

func TestDecodeUpdateValid(t *testing.T) {
	u, err := decodeUpdate([]byte(`{"gameId":"1234","action":"setName","name":"Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "1234", u.GameID)
	assert.Equal(t, game.ActionSetName, u.Action)
	assert.Equal(t, "Alice", u.Name)

	u, err = decodeUpdate([]byte(`{"gameId":"1234","action":"tapCard","position":{"area":"table","player":"abc","slot":3}}`))
	require.NoError(t, err)
	require.NotNil(t, u.Position)
	assert.Equal(t, game.AreaTable, u.Position.Area)
	assert.Equal(t, 3, u.Position.Slot)
}

func TestDecodeUpdateRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"gameId"`,
		"unknown field":   `{"gameId":"1234","action":"pass","cheat":true}`,
		"bad game id":     `{"gameId":"12345","action":"pass"}`,
		"unknown action":  `{"gameId":"1234","action":"stealDeck"}`,
		"nameless rename": `{"gameId":"1234","action":"setName"}`,
		"blind tap":       `{"gameId":"1234","action":"tapCard"}`,
		"oversized name":  `{"gameId":"1234","action":"setName","name":"` + strings.Repeat("x", 64) + `"}`,
	}
	for label, payload := range cases {
		_, err := decodeUpdate([]byte(payload))
		assert.Error(t, err, label)
	}
}

func newTestServer(t *testing.T) (*manager.Manager, *httptest.Server) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	mgr := manager.New(log, nil, nil)
	t.Cleanup(mgr.Close)
	s := New(log, mgr, NewSessions("test-secret"), nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return mgr, srv
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func readMessage(t *testing.T, ctx context.Context, ws *websocket.Conn, out any) {
	t.Helper()
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestHandshakeJoinsRequestedGame(t *testing.T) {
	mgr, srv := newTestServer(t)
	id, err := mgr.CreateGame(game.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws := dialWS(t, ctx, srv, "?game="+id)

	var session sessionMessage
	readMessage(t, ctx, ws, &session)
	require.Equal(t, "session", session.Type)
	assert.NotEmpty(t, session.SessionID)
	assert.NotEmpty(t, session.Token)

	var state stateMessage
	readMessage(t, ctx, ws, &state)
	assert.Equal(t, "update", state.Type)
	assert.Equal(t, id, state.GameID)
	assert.Equal(t, game.StateSettingUp, state.State)
}

func TestHandshakeJoinUnknownGameFailsFast(t *testing.T) {
	_, srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws := dialWS(t, ctx, srv, "?game=0000")

	var session sessionMessage
	readMessage(t, ctx, ws, &session)
	require.Equal(t, "session", session.Type)

	var errMsg errorMessage
	readMessage(t, ctx, ws, &errMsg)
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, "game not found", errMsg.Error)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	sessions := NewSessions("test-secret")
	token, err := sessions.Mint("session-123")
	require.NoError(t, err)

	id, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "session-123", id)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := NewSessions("secret-a").Mint("session-123")
	require.NoError(t, err)

	_, err = NewSessions("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := NewSessions("secret").Parse("not-a-token")
	assert.Error(t, err)
}
