package server

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/storage"
)

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return v
}

func createGame(t *testing.T, s *Server, body string) gameResponse {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/games", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /games: status %d body %s", rr.Code, rr.Body.String())
	}
	return decode[gameResponse](t, rr)
}

func TestCreateAndMove(t *testing.T) {
	s := New(nil)
	created := createGame(t, s, "")
	if created.Report.FEN != board.StartFEN || len(created.Report.LegalMoves) != 20 {
		t.Fatalf("unexpected report %+v", created.Report)
	}

	rr := do(t, s, http.MethodPost, "/games/"+created.ID+"/moves", `{"move":"e2e4"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move: status %d body %s", rr.Code, rr.Body.String())
	}
	moved := decode[gameResponse](t, rr)
	if moved.Report.SideToMove != "black" || moved.Report.EnPassantTarget != "e3" {
		t.Errorf("after e2e4: %+v", moved.Report)
	}

	rr = do(t, s, http.MethodGet, "/games/"+created.ID+"/moves", "")
	moves := decode[map[string][]string](t, rr)["moves"]
	if len(moves) != 20 {
		t.Errorf("black has %d moves, want 20", len(moves))
	}
}

func TestMoveErrors(t *testing.T) {
	s := New(nil)
	id := createGame(t, s, "").ID

	tests := []struct {
		name string
		body string
		want int
	}{
		{"illegal", `{"move":"e2e5"}`, http.StatusUnprocessableEntity},
		{"malformed", `{"move":"e2"}`, http.StatusBadRequest},
		{"bad json", `{"move":`, http.StatusBadRequest},
		{"unknown field", `{"mv":"e2e4"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/games/"+id+"/moves", tc.body)
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tc.want, rr.Body.String())
			}
		})
	}

	// None of the failures touched the game
	rr := do(t, s, http.MethodGet, "/games/"+id, "")
	if got := decode[gameResponse](t, rr).Report.FEN; got != board.StartFEN {
		t.Errorf("fen = %s", got)
	}
}

func TestCreateFromFEN(t *testing.T) {
	s := New(nil)
	created := createGame(t, s, `{"fen":"R6k/6pp/8/8/8/8/8/K7 b - - 0 1"}`)
	if created.Report.Status != "checkmate" {
		t.Errorf("status = %s, want checkmate", created.Report.Status)
	}

	rr := do(t, s, http.MethodPost, "/games", `{"fen":"8/8/8/8/8/8/8/8 w - - 0 1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("kingless FEN: status %d", rr.Code)
	}

	rr = do(t, s, http.MethodPost, "/games", `{"fen":"1Q4Qk/Q2Q3Q/Q1Q2Q1Q/Q6Q/1Q5Q/Q6Q/Q6Q/KQQQQ1QQ w - - 0 1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unreachable material: status %d", rr.Code)
	}
}

func TestUnknownGame(t *testing.T) {
	s := New(nil)
	for _, path := range []string{"/games/missing", "/games/missing/moves", "/games/missing/snapshot", "/games/missing/board.png"} {
		if rr := do(t, s, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s: status %d", path, rr.Code)
		}
	}
	if rr := do(t, s, http.MethodDelete, "/games/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("DELETE: status %d", rr.Code)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New(nil)
	id := createGame(t, s, "").ID
	do(t, s, http.MethodPost, "/games/"+id+"/moves", `{"move":"d2d4"}`)

	rr := do(t, s, http.MethodGet, "/games/"+id+"/snapshot", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET snapshot: %d", rr.Code)
	}
	snapshot := rr.Body.String()

	rr = do(t, s, http.MethodPut, "/games/copy/snapshot", snapshot)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT snapshot: %d %s", rr.Code, rr.Body.String())
	}
	copied := decode[gameResponse](t, rr)
	if !strings.HasPrefix(copied.Report.FEN, "rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b") {
		t.Errorf("copied fen = %s", copied.Report.FEN)
	}

	rr = do(t, s, http.MethodPut, "/games/copy/snapshot", `{"key_version":99}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad snapshot: status %d", rr.Code)
	}
}

func TestBoardPNG(t *testing.T) {
	s := New(nil)
	id := createGame(t, s, "").ID

	rr := do(t, s, http.MethodGet, "/games/"+id+"/board.png?size=16&flip=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width %d", img.Bounds().Dx())
	}

	if rr := do(t, s, http.MethodGet, "/games/"+id+"/board.png?size=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad size: status %d", rr.Code)
	}
}

func TestPersistence(t *testing.T) {
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := New(store)
	id := createGame(t, first, "").ID
	do(t, first, http.MethodPost, "/games/"+id+"/moves", `{"move":"g1f3"}`)

	// A second server on the same store sees the game
	second := New(store)
	rr := do(t, second, http.MethodGet, "/games/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if fen := decode[gameResponse](t, rr).Report.FEN; !strings.Contains(fen, "5N2") {
		t.Errorf("fen = %s", fen)
	}

	rr = do(t, second, http.MethodGet, "/games", "")
	if ids := decode[map[string][]string](t, rr)["games"]; len(ids) != 1 || ids[0] != id {
		t.Errorf("games = %v", ids)
	}

	if rr := do(t, second, http.MethodDelete, "/games/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rr.Code)
	}
	if _, err := store.LoadGame(id); err == nil {
		t.Error("game still stored after delete")
	}
}

func TestWebsocketFeed(t *testing.T) {
	s := New(nil)
	id := createGame(t, s, "").ID

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/games/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial struct {
		FEN string `json:"fen"`
	}
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial report: %v", err)
	}
	if initial.FEN != board.StartFEN {
		t.Errorf("initial fen = %s", initial.FEN)
	}

	resp, err := http.Post(ts.URL+"/games/"+id+"/moves", "application/json", strings.NewReader(`{"move":"e2e4"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var update struct {
		FEN        string `json:"fen"`
		SideToMove string `json:"side_to_move"`
	}
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.SideToMove != "black" {
		t.Errorf("update = %+v", update)
	}
}
