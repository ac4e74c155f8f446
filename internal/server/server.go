// Package server exposes games over HTTP with JSON bodies and a websocket
// status feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/render"
	"github.com/hailam/chessrules/internal/storage"
)

const maxJSONBodyBytes int64 = 1 << 20

// session is one live game. mu serializes every operation on g.
type session struct {
	mu      sync.Mutex
	g       *game.Game
	clients map[*websocket.Conn]struct{}
}

// Server wires the HTTP layer to the games it hosts.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	store    *storage.Store

	gamesMu sync.Mutex
	games   map[string]*session

	srvMu sync.Mutex
	srv   *http.Server
}

// New builds a Server. store may be nil, in which case games live only in
// memory.
func New(store *storage.Store) *Server {
	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		store: store,
		games: make(map[string]*session),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/games", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/games", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/games/{id}/moves", s.handleLegalMoves).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}/moves", s.handleMove).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}/snapshot", s.handleGetSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}/snapshot", s.handlePutSnapshot).Methods(http.MethodPut)
	r.HandleFunc("/games/{id}/board.png", s.handleBoard).Methods(http.MethodGet)
	r.HandleFunc("/games/{id}/ws", s.handleWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Handler returns the router wrapped in access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.router)
	return handlers.LoggingHandler(os.Stdout, recovered)
}

// ServeHTTP serves the bare router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Listen starts the HTTP server.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	log.Printf("HTTP listening on %s", addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close attempts a graceful shutdown of the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// lookup returns the session for id, loading it from the store when it is
// not in memory.
func (s *Server) lookup(id string) (*session, error) {
	s.gamesMu.Lock()
	defer s.gamesMu.Unlock()

	if sess, ok := s.games[id]; ok {
		return sess, nil
	}
	if s.store == nil {
		return nil, storage.ErrGameNotFound
	}
	g, err := s.store.LoadGame(id)
	if err != nil {
		return nil, err
	}
	sess := newSession(g)
	s.games[id] = sess
	return sess, nil
}

func newSession(g *game.Game) *session {
	return &session{g: g, clients: make(map[*websocket.Conn]struct{})}
}

// persist writes the game through to the store. Callers hold sess.mu.
func (s *Server) persist(id string, sess *session) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveGame(id, sess.g)
}

// ---- handlers ----

type createRequest struct {
	FEN string `json:"fen"`
}

type gameResponse struct {
	ID     string      `json:"id"`
	Report game.Report `json:"report"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty one starts from the initial position
	var req createRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	g := game.New()
	if req.FEN != "" {
		var err error
		if g, err = game.FromFEN(req.FEN); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	id := storage.NewGameID()
	sess := newSession(g)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := s.persist(id, sess); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.gamesMu.Lock()
	s.games[id] = sess
	s.gamesMu.Unlock()

	report, err := sess.g.Status()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, gameResponse{ID: id, Report: report})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	var ids []string

	s.gamesMu.Lock()
	for id := range s.games {
		seen[id] = true
		ids = append(ids, id)
	}
	s.gamesMu.Unlock()

	if s.store != nil {
		stored, err := s.store.ListGames()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, id := range stored {
			if !seen[id] {
				ids = append(ids, id)
			}
		}
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, map[string][]string{"games": ids})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.lookup(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sess.mu.Lock()
	report, err := sess.g.Status()
	sess.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, gameResponse{ID: id, Report: report})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.gamesMu.Lock()
	sess, inMemory := s.games[id]
	delete(s.games, id)
	s.gamesMu.Unlock()

	if sess != nil {
		sess.mu.Lock()
		for conn := range sess.clients {
			conn.Close()
		}
		sess.clients = nil
		sess.mu.Unlock()
	}

	if s.store != nil {
		err := s.store.DeleteGame(id)
		if err != nil && !(inMemory && errors.Is(err, storage.ErrGameNotFound)) {
			writeError(w, statusFor(err), err)
			return
		}
	} else if !inMemory {
		writeError(w, http.StatusNotFound, storage.ErrGameNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLegalMoves(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sess.mu.Lock()
	moves, err := sess.g.LegalMoves()
	sess.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	texts := make([]string, len(moves))
	for i, m := range moves {
		texts[i] = m.String()
	}
	writeJSON(w, map[string][]string{"moves": texts})
}

type moveRequest struct {
	Move string `json:"move"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.lookup(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.g.ApplyText(req.Move); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.persist(id, sess); err != nil {
		log.Printf("persist game %s: %v", id, err)
	}

	report, err := sess.g.Status()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess.broadcast(report)
	writeJSON(w, gameResponse{ID: id, Report: report})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sess.mu.Lock()
	snap, err := sess.g.Snapshot()
	sess.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, snap)
}

// handlePutSnapshot replaces (or creates) the game under id.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var snap board.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := game.FromSnapshot(snap)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.gamesMu.Lock()
	sess, ok := s.games[id]
	if !ok {
		sess = newSession(g)
		s.games[id] = sess
	}
	s.gamesMu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.g = g
	if err := s.persist(id, sess); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	report, err := g.Status()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess.broadcast(report)
	writeJSON(w, gameResponse{ID: id, Report: report})
}

// handleBoard serves a PNG diagram. Query: size (pixels per square), flip.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	opts := render.Options{Coords: true}
	q := r.URL.Query()
	if v := q.Get("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 8 || size > 256 {
			writeError(w, http.StatusBadRequest, errors.New("size must be between 8 and 256"))
			return
		}
		opts.SquareSize = size
	}
	opts.Flip = q.Get("flip") == "1" || q.Get("flip") == "true"

	sess.mu.Lock()
	pos, err := sess.g.Position()
	sess.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	data, err := render.PNG(pos, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

// handleWS upgrades to a websocket that receives the current report and
// then a new report after every change to the game.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.lookup(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade for %s: %v", id, err)
		return
	}

	sess.mu.Lock()
	report, err := sess.g.Status()
	if err == nil && sess.clients != nil {
		sess.clients[conn] = struct{}{}
		err = conn.WriteJSON(report)
	}
	sess.mu.Unlock()
	if err != nil {
		conn.Close()
		return
	}

	// Drain reads so close frames are handled
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sess.mu.Lock()
				delete(sess.clients, conn)
				sess.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// broadcast sends report to every subscriber. Callers hold sess.mu.
func (sess *session) broadcast(report game.Report) {
	for conn := range sess.clients {
		if err := conn.WriteJSON(report); err != nil {
			log.Printf("websocket write: %v", err)
			delete(sess.clients, conn)
			conn.Close()
		}
	}
}

// ---- JSON helpers ----

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": err.Error()})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrMalformedMove),
		errors.Is(err, board.ErrInvalidFEN),
		errors.Is(err, board.ErrInvalidSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
