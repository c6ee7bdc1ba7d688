// Package server is the HTTP and websocket transport: game creation, the
// socket handshake that binds a connection to a session, strict decoding of
// inbound updates, and fan-out of per-session client states.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cambio-games/server/internal/game"
	"github.com/cambio-games/server/internal/manager"
)

const writeTimeout = 5 * time.Second

var gameIDPattern = regexp.MustCompile(`^\d{4}$`)

// conn is one websocket with serialized writes.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, payload)
}

// Server owns the socket registry: which connections currently speak for
// which session. One session may hold several sockets (tabs); each receives
// every projection.
type Server struct {
	log      *logrus.Logger
	manager  *manager.Manager
	sessions *Sessions

	mu    sync.Mutex
	conns map[string]map[*conn]struct{}

	allowedOrigins []string
}

// New wires the transport to the manager; the manager calls back into Send
// for every projection a game emits.
func New(log *logrus.Logger, mgr *manager.Manager, sessions *Sessions, allowedOrigins []string) *Server {
	s := &Server{
		log:            log,
		manager:        mgr,
		sessions:       sessions,
		conns:          make(map[string]map[*conn]struct{}),
		allowedOrigins: allowedOrigins,
	}
	mgr.AttachSender(s.Send)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /new", s.handleNew)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// stateMessage wraps a projection in the outbound envelope.
type stateMessage struct {
	Type string `json:"type"`
	game.ClientState
}

type sessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Send delivers one projection to every socket the session holds.
func (s *Server) Send(sessionID string, state game.ClientState) {
	payload, err := json.Marshal(stateMessage{Type: "update", ClientState: state})
	if err != nil {
		s.log.WithError(err).Error("failed to encode client state")
		return
	}

	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns[sessionID]))
	for c := range s.conns[sessionID] {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			s.log.WithError(err).WithField("session", sessionID).Debug("dropping write to dead socket")
		}
	}
}

// handleNew creates a game from posted options and returns its id.
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Options game.Options `json:"options"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "malformed options", http.StatusBadRequest)
		return
	}

	id, err := s.manager.CreateGame(body.Options)
	if err != nil {
		http.Error(w, "could not create game", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"gameId": id})
}

// handleWS upgrades the socket, resolves the session (resuming from a token
// when one is presented), and pumps inbound updates until the peer goes
// away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		s.log.WithError(err).Debug("websocket accept failed")
		return
	}

	sessionID := ""
	if token := r.URL.Query().Get("token"); token != "" {
		if id, err := s.sessions.Parse(token); err == nil {
			sessionID = id
		} else {
			s.log.WithError(err).Debug("ignoring invalid session token")
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	token, err := s.sessions.Mint(sessionID)
	if err != nil {
		ws.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	c := &conn{ws: ws}
	s.register(sessionID, c)
	s.manager.ConnectSocketToSession(sessionID)
	log := s.log.WithField("session", sessionID)
	log.Info("socket connected")

	defer func() {
		s.unregister(sessionID, c)
		s.manager.DisconnectSocketFromSession(sessionID)
		ws.Close(websocket.StatusNormalClosure, "")
		log.Info("socket disconnected")
	}()

	if payload, err := json.Marshal(sessionMessage{Type: "session", SessionID: sessionID, Token: token}); err == nil {
		if err := c.write(payload); err != nil {
			return
		}
	}

	// A game id in the handshake joins immediately, so a session that cannot
	// get in learns before it sends anything.
	if gameID := r.URL.Query().Get("game"); gameID != "" {
		switch {
		case !gameIDPattern.MatchString(gameID):
			s.sendError(c, "bad game id")
		default:
			if err := s.manager.TryJoinGame(gameID, sessionID); err != nil {
				log.WithError(err).WithField("game", gameID).Debug("handshake join refused")
				s.sendError(c, updateErrorText(err))
			}
		}
	}

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			return
		}
		update, err := decodeUpdate(data)
		if err != nil {
			log.WithError(err).Debug("rejecting malformed update")
			s.sendError(c, "malformed update")
			continue
		}
		if err := s.manager.Update(sessionID, update); err != nil {
			s.sendError(c, updateErrorText(err))
		}
	}
}

func (s *Server) sendError(c *conn, text string) {
	if payload, err := json.Marshal(errorMessage{Type: "error", Error: text}); err == nil {
		_ = c.write(payload)
	}
}

func updateErrorText(err error) string {
	switch {
	case errors.Is(err, manager.ErrGameNotFound):
		return "game not found"
	case errors.Is(err, game.ErrGameUnderway):
		return "game is already underway"
	case errors.Is(err, game.ErrGameFull):
		return "game is full"
	default:
		return "update rejected"
	}
}

var knownActions = map[game.Action]bool{
	game.ActionSetName:        true,
	game.ActionIndicateReady:  true,
	game.ActionLeave:          true,
	game.ActionSnap:           true,
	game.ActionTapCard:        true,
	game.ActionPass:           true,
	game.ActionCambio:         true,
	game.ActionRequestRematch: true,
}

const maxNameLength = 24

// decodeUpdate strictly decodes and validates one inbound update. Unknown
// fields, unknown actions, and shape errors are all rejected before the
// engine sees anything.
func decodeUpdate(data []byte) (game.Update, error) {
	var u game.Update
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return game.Update{}, err
	}

	if !gameIDPattern.MatchString(u.GameID) {
		return game.Update{}, errors.New("bad game id")
	}
	if !knownActions[u.Action] {
		return game.Update{}, errors.New("unknown action")
	}
	if u.Action == game.ActionSetName && (u.Name == "" || len(u.Name) > maxNameLength) {
		return game.Update{}, errors.New("bad name")
	}
	if u.Action == game.ActionTapCard && u.Position == nil {
		return game.Update{}, errors.New("tap without position")
	}
	return u, nil
}

func (s *Server) register(sessionID string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[sessionID] == nil {
		s.conns[sessionID] = make(map[*conn]struct{})
	}
	s.conns[sessionID][c] = struct{}{}
}

func (s *Server) unregister(sessionID string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns[sessionID], c)
	if len(s.conns[sessionID]) == 0 {
		delete(s.conns, sessionID)
	}
}
