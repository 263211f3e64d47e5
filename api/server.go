package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/service"
	"github.com/openludo/arena/transport/websocket"
)

// Server is the REST surface over the room coordinator.
type Server struct {
	coord   *service.Coordinator
	hub     *websocket.Hub
	tokens  *TokenIssuer
	router  *mux.Router
	origins map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow-list. Empty means allow all.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = make(map[string]bool, len(origins))
		for _, o := range origins {
			if o != "" {
				s.origins[o] = true
			}
		}
	}
}

// NewServer wires the routes.
func NewServer(coord *service.Coordinator, hub *websocket.Hub, tokens *TokenIssuer, opts ...Option) *Server {
	s := &Server{
		coord:  coord,
		hub:    hub,
		tokens: tokens,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/auth/guest", s.handleGuestAuth).Methods("POST")

	s.router.HandleFunc("/rooms", s.authenticate(s.handleCreateRoom)).Methods("POST")
	s.router.HandleFunc("/rooms", s.authenticate(s.handleListRooms)).Methods("GET")
	s.router.HandleFunc("/rooms/join", s.authenticate(s.handleJoinByCode)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}", s.authenticate(s.handleGetRoom)).Methods("GET")
	s.router.HandleFunc("/rooms/{id}", s.authenticate(s.handleDeleteRoom)).Methods("DELETE")
	s.router.HandleFunc("/rooms/{id}/join", s.authenticate(s.handleJoinRoom)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/leave", s.authenticate(s.handleLeaveRoom)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/ready", s.authenticate(s.handleReady)).Methods("PATCH")
	s.router.HandleFunc("/rooms/{id}/slot", s.authenticate(s.handleSlot)).Methods("PATCH")
	s.router.HandleFunc("/rooms/{id}/team-names", s.authenticate(s.handleTeamNames)).Methods("PATCH")
	s.router.HandleFunc("/rooms/{id}/start", s.authenticate(s.handleStart)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/dice", s.authenticate(s.handleDice)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/move", s.authenticate(s.handleMove)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/next-turn", s.authenticate(s.handleNextTurn)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/taunt", s.authenticate(s.handleTaunt)).Methods("POST")
	s.router.HandleFunc("/rooms/{id}/events", s.authenticate(s.handleEvents)).Methods("GET")

	s.router.HandleFunc("/ws", s.authenticate(s.handleWebSocket))
}

// ServeHTTP implements http.Handler, with CORS applied to every route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && (len(s.origins) == 0 || s.origins[origin]) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.router.ServeHTTP(w, r)
}

// Response helpers. Every payload rides the {success, data|error} envelope.

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// respondServiceError maps a coordinator error kind to an HTTP status.
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindValidation, service.KindConflict:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindForbidden:
		status = http.StatusForbidden
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the server log.
		log.Printf("api: internal error: %v", err)
		message = "internal error"
	}
	respondError(w, status, message)
}

// Auth handlers

func (s *Server) handleGuestAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	user, err := s.coord.RegisterGuest(r.Context(), req.DisplayName)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// Room lifecycle handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.coord.CreateRoom(r.Context(), userID(r), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.coord.ListRooms(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := s.coord.GetRoom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DeleteRoom(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string      `json:"code"`
		SelectedColor board.Color `json:"selectedColor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "code required")
		return
	}
	view, err := s.coord.JoinRoomByCode(r.Context(), userID(r), req.Code, req.SelectedColor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SelectedColor board.Color `json:"selectedColor"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	view, err := s.coord.JoinRoom(r.Context(), userID(r), mux.Vars(r)["id"], req.SelectedColor)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.LeaveRoom(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "left room"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ready, err := s.coord.SetReady(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotIndex *int `json:"slotIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SlotIndex == nil {
		respondError(w, http.StatusBadRequest, "slotIndex required")
		return
	}
	if err := s.coord.MoveSlot(r.Context(), userID(r), mux.Vars(r)["id"], *req.SlotIndex); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "slot changed"})
}

func (s *Server) handleTeamNames(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamNames []string `json:"teamNames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.coord.SetTeamNames(r.Context(), userID(r), mux.Vars(r)["id"], req.TeamNames); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "team names set"})
}

// Game handlers

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	gb, err := s.coord.StartGame(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gb)
}

func (s *Server) handleDice(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	res, err := s.coord.RollDice(r.Context(), userID(r), roomID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	log.Printf("[ROLL] room=%s dice=%d moves=%d", roomID, res.Dice, len(res.Valid))
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req service.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roomID := mux.Vars(r)["id"]
	gb, err := s.coord.MakeMove(r.Context(), userID(r), roomID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	log.Printf("[MOVE] room=%s color=%s token=%d dice=%d", roomID, req.Color, req.TokenID, req.DiceValue)
	respondJSON(w, http.StatusOK, gb)
}

func (s *Server) handleNextTurn(w http.ResponseWriter, r *http.Request) {
	patch, err := s.coord.AdvanceTurn(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"patch": patch})
}

func (s *Server) handleTaunt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LineID string `json:"lineId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LineID == "" {
		respondError(w, http.StatusBadRequest, "lineId required")
		return
	}
	if err := s.coord.SendTaunt(r.Context(), userID(r), mux.Vars(r)["id"], req.LineID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "taunt sent"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	events, err := s.coord.ListEvents(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Infrastructure handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK, cacheOK := s.coord.Health(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"dbState":        boolState(dbOK),
		"cacheConnected": cacheOK,
	})
}

func boolState(ok bool) string {
	if ok {
		return "connected"
	}
	return "disconnected"
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, userID(r))
}
