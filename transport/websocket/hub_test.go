package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestClient(h *Hub, userID string) *Client {
	return &Client{hub: h, userID: userID, send: make(chan []byte, 256)}
}

func TestSubscribeAndDrop(t *testing.T) {
	hub := NewHub()

	c1 := newTestClient(hub, "u1")
	c2 := newTestClient(hub, "u1")
	hub.subscribeClient(c1, userTopic("u1"))
	hub.subscribeClient(c2, userTopic("u1"))
	hub.subscribeClient(c1, roomTopic("r1"))

	if len(hub.topics[userTopic("u1")]) != 2 {
		t.Errorf("user topic has %d subscribers, want 2", len(hub.topics[userTopic("u1")]))
	}
	if len(hub.topics[roomTopic("r1")]) != 1 {
		t.Errorf("room topic has %d subscribers, want 1", len(hub.topics[roomTopic("r1")]))
	}

	hub.dropClient(c1)
	if _, ok := hub.topics[roomTopic("r1")]; ok {
		t.Error("empty room topic not cleaned up")
	}
	if len(hub.topics[userTopic("u1")]) != 1 {
		t.Error("dropping one connection removed the other")
	}
	if _, ok := hub.byClient[c1]; ok {
		t.Error("reverse index not cleaned up")
	}

	// A second drop is a no-op, not a double close.
	hub.dropClient(c1)
}

func TestUnsubscribeLeavesOtherTopics(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, "u1")
	hub.subscribeClient(c, userTopic("u1"))
	hub.subscribeClient(c, roomTopic("r1"))

	hub.unsubscribeClient(c, roomTopic("r1"))

	if _, ok := hub.topics[roomTopic("r1")]; ok {
		t.Error("room topic should be gone")
	}
	if !hub.topics[userTopic("u1")][c] {
		t.Error("user topic subscription lost")
	}
}

func TestFanOutDropsSlowClient(t *testing.T) {
	hub := NewHub()
	fast := newTestClient(hub, "u1")
	slow := &Client{hub: hub, userID: "u2", send: make(chan []byte)} // no buffer
	hub.subscribeClient(fast, roomTopic("r1"))
	hub.subscribeClient(slow, roomTopic("r1"))

	hub.fanOut(envelope{topic: roomTopic("r1"), data: []byte(`{}`)})

	if len(fast.send) != 1 {
		t.Error("fast client did not receive the message")
	}
	if _, ok := hub.byClient[slow]; ok {
		t.Error("slow client was not dropped")
	}
}

func TestToRoomDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(inbound{Action: "room:join", RoomID: "r1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// The subscribe frame must land before the broadcast.
	time.Sleep(50 * time.Millisecond)

	hub.ToRoom("r1", "dice:roll", map[string]any{"dice": 6})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "dice:roll" || msg.RoomID != "r1" {
		t.Errorf("message = %+v", msg)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok || data["dice"] != float64(6) {
		t.Errorf("payload = %v", msg.Data)
	}
}

func TestToUserDoesNotLeakAcrossUsers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer server.Close()

	dial := func(user string) *websocket.Conn {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + user
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", user, err)
		}
		return conn
	}
	c1 := dial("u1")
	defer c1.Close()
	c2 := dial("u2")
	defer c2.Close()
	time.Sleep(50 * time.Millisecond)

	hub.ToUser("u1", "room:taunt-suggestions", map[string]any{"n": 3})

	c1.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := c1.ReadJSON(&msg); err != nil {
		t.Fatalf("u1 read: %v", err)
	}
	if msg.Event != "room:taunt-suggestions" {
		t.Errorf("event = %s", msg.Event)
	}

	c2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := c2.ReadMessage(); err == nil {
		t.Error("u2 received a message addressed to u1")
	}
}

func TestRoomLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "u1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(inbound{Action: "room:join", RoomID: "r1"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := conn.WriteJSON(inbound{Action: "room:leave", RoomID: "r1"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	hub.ToRoom("r1", "move", nil)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("received a room message after leaving")
	}
}

func TestDisconnectCleansUpTopics(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "u1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(inbound{Action: "room:join", RoomID: "r1"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	conn.Close()
	time.Sleep(50 * time.Millisecond)

	// Publishing after the disconnect must not deliver or panic.
	hub.ToRoom("r1", "move", nil)
	hub.ToUser("u1", "ping", nil)
}

func TestOriginCheckRejects(t *testing.T) {
	hub := NewHub(WithOriginCheck(func(*http.Request) bool { return false }))
	go hub.Run()
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "u1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Error("dial succeeded despite origin rejection")
	}
}

func TestMessageShape(t *testing.T) {
	msg := Message{Event: "move", RoomID: "r1", Data: map[string]any{"tokenId": 2}}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"event":"move"`) || !strings.Contains(string(data), `"roomId":"r1"`) {
		t.Errorf("frame = %s", data)
	}
}
