package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/game/dice"
	"github.com/openludo/arena/game/service"
	"github.com/openludo/arena/game/state"
	"github.com/openludo/arena/game/taunt"
	"github.com/openludo/arena/store"
	"github.com/openludo/arena/transport/websocket"
)

type testServer struct {
	srv  *Server
	face *float64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemoryStore()
	c := cache.NewMemory()
	states := state.NewManager(st, c, state.WithFlushInterval(time.Hour))
	t.Cleanup(func() { states.Close(context.Background()) })

	face := 0.99
	d := dice.New(c, nil, dice.WithEnabled(false), dice.WithRNG(func() float64 { return face }))
	coord := service.New(st, states, d, taunt.NewDirector(),
		service.WithIntn(func(int) int { return 0 }),
	)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	tokens := NewTokenIssuer("test-secret", time.Hour)
	return &testServer{
		srv:  NewServer(coord, hub, tokens),
		face: &face,
	}
}

// envelope is the wire shape every endpoint responds with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope %q", method, path, rec.Body.String())
	}
	return rec, env
}

// guest mints a token through the real endpoint.
func (ts *testServer) guest(t *testing.T, name string) string {
	t.Helper()
	rec, env := ts.do(t, "POST", "/auth/guest", "", map[string]string{"displayName": name})
	if rec.Code != http.StatusOK {
		t.Fatalf("guest auth: %d %s", rec.Code, env.Error)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("guest auth payload: %s", env.Data)
	}
	return data.Token
}

func (ts *testServer) createRoom(t *testing.T, token string) (roomID, code string) {
	t.Helper()
	rec, env := ts.do(t, "POST", "/rooms", token, map[string]any{
		"maxPlayers": 2, "mode": "individual", "visibility": "public",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create room: %d %s", rec.Code, env.Error)
	}
	var data struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	return data.ID, data.Code
}

func TestHealthIsOpen(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	var data struct {
		DBState        string `json:"dbState"`
		CacheConnected bool   `json:"cacheConnected"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.DBState != "connected" || !data.CacheConnected {
		t.Errorf("health data = %+v", data)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec, env := ts.do(t, "GET", "/rooms", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Success {
		t.Errorf("no token: %d", rec.Code)
	}

	rec, _ = ts.do(t, "GET", "/rooms", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: %d", rec.Code)
	}

	// A token signed with a different secret is rejected.
	other := NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.Issue("intruder")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ = ts.do(t, "GET", "/rooms", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token: %d", rec.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("s", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := issuer.Issue("u1")
	if err != nil {
		t.Fatal(err)
	}

	fresh := NewTokenIssuer("s", time.Hour)
	if _, err := fresh.Verify(raw); err == nil {
		t.Error("expired token verified")
	}
}

func TestGuestAuthAndRoomFlow(t *testing.T) {
	ts := newTestServer(t)
	host := ts.guest(t, "Ana")
	roomID, code := ts.createRoom(t, host)

	// Lobby shows the public room.
	rec, env := ts.do(t, "GET", "/rooms", host, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var rooms []map[string]any
	if err := json.Unmarshal(env.Data, &rooms); err != nil || len(rooms) != 1 {
		t.Fatalf("lobby = %s", env.Data)
	}

	// Second player joins by code.
	guest := ts.guest(t, "Bo")
	rec, env = ts.do(t, "POST", "/rooms/join", guest, map[string]string{"code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("join by code: %d %s", rec.Code, env.Error)
	}

	rec, env = ts.do(t, "GET", "/rooms/"+roomID, host, nil)
	if rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	var view struct {
		Players []json.RawMessage `json:"players"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil || len(view.Players) != 2 {
		t.Fatalf("room view = %s", env.Data)
	}
}

func TestCreateRoomValidationStatus(t *testing.T) {
	ts := newTestServer(t)
	token := ts.guest(t, "Ana")

	rec, env := ts.do(t, "POST", "/rooms", token, map[string]any{
		"maxPlayers": 9, "mode": "individual", "visibility": "public",
	})
	if rec.Code != http.StatusBadRequest || env.Success || env.Error == "" {
		t.Errorf("validation: %d %q", rec.Code, env.Error)
	}
}

func TestUnknownRoomIs404(t *testing.T) {
	ts := newTestServer(t)
	token := ts.guest(t, "Ana")
	rec, _ := ts.do(t, "GET", "/rooms/nope", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room: %d", rec.Code)
	}
}

func TestGamePlayThroughHTTP(t *testing.T) {
	ts := newTestServer(t)
	host := ts.guest(t, "Ana")
	guest := ts.guest(t, "Bo")
	roomID, code := ts.createRoom(t, host)

	if rec, env := ts.do(t, "POST", "/rooms/join", guest, map[string]string{"code": code}); rec.Code != http.StatusOK {
		t.Fatalf("join: %d %s", rec.Code, env.Error)
	}
	for _, token := range []string{host, guest} {
		if rec, env := ts.do(t, "PATCH", "/rooms/"+roomID+"/ready", token, nil); rec.Code != http.StatusOK {
			t.Fatalf("ready: %d %s", rec.Code, env.Error)
		}
	}

	// Guest cannot start.
	if rec, _ := ts.do(t, "POST", "/rooms/"+roomID+"/start", guest, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-host start: %d", rec.Code)
	}
	if rec, env := ts.do(t, "POST", "/rooms/"+roomID+"/start", host, nil); rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, env.Error)
	}

	// Host (seat 0) rolls a scripted six and releases a token.
	*ts.face = 0.99
	rec, env := ts.do(t, "POST", "/rooms/"+roomID+"/dice", host, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dice: %d %s", rec.Code, env.Error)
	}
	var roll struct {
		Dice  int               `json:"dice"`
		Valid []json.RawMessage `json:"valid"`
	}
	if err := json.Unmarshal(env.Data, &roll); err != nil || roll.Dice != 6 || len(roll.Valid) != 4 {
		t.Fatalf("roll = %s", env.Data)
	}

	rec, env = ts.do(t, "POST", "/rooms/"+roomID+"/move", host, map[string]any{
		"tokenId": 0, "color": "red", "diceValue": 6,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: %d %s", rec.Code, env.Error)
	}

	// Stale dice value maps to 400.
	rec, _ = ts.do(t, "POST", "/rooms/"+roomID+"/move", host, map[string]any{
		"tokenId": 1, "color": "red", "diceValue": 6,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("stale move: %d", rec.Code)
	}

	// Off-turn roll maps to 403.
	rec, _ = ts.do(t, "POST", "/rooms/"+roomID+"/dice", guest, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("off-turn roll: %d", rec.Code)
	}

	// Events endpoint returns the audit trail.
	rec, env = ts.do(t, "GET", "/rooms/"+roomID+"/events?limit=5", host, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events: %d", rec.Code)
	}
	var events []map[string]any
	if err := json.Unmarshal(env.Data, &events); err != nil || len(events) == 0 {
		t.Fatalf("events = %s", env.Data)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.origins = map[string]bool{"https://app.example.com": true}

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Error("allowed origin not reflected")
	}

	req = httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin reflected")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	raw, err := issuer.Issue("user-42")
	if err != nil {
		t.Fatal(err)
	}
	uid, err := issuer.Verify(raw)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "user-42" {
		t.Errorf("subject = %s", uid)
	}
}
