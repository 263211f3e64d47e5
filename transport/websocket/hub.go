package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Inbound traffic is only the
	// small subscribe frames.
	maxMessageSize = 512
)

// Message is the outgoing frame.
type Message struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// inbound is the incoming frame: topic subscribe and unsubscribe requests.
type inbound struct {
	Action string `json:"action"`
	RoomID string `json:"roomId"`
}

// Client is one WebSocket connection, bound to a user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

type subscription struct {
	client *Client
	topic  string
}

type envelope struct {
	topic string
	data  []byte
}

// Hub maintains the set of active clients and the topic table. All state is
// owned by the Run loop; the exported methods only send on channels.
type Hub struct {
	// topics maps a topic name to its subscribers.
	topics map[string]map[*Client]bool

	// byClient is the reverse index, for cleanup on disconnect.
	byClient map[*Client]map[string]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan envelope
	stop        chan struct{}
	done        chan struct{}

	checkOrigin func(r *http.Request) bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginCheck replaces the origin check used at upgrade time.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.checkOrigin = fn }
}

// NewHub creates a hub. Call Run in a goroutine before serving connections.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		topics:      make(map[string]map[*Client]bool),
		byClient:    make(map[*Client]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan envelope, 64),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		checkOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.subscribeClient(client, userTopic(client.userID))

		case client := <-h.unregister:
			h.dropClient(client)

		case sub := <-h.subscribe:
			h.subscribeClient(sub.client, sub.topic)

		case sub := <-h.unsubscribe:
			h.unsubscribeClient(sub.client, sub.topic)

		case env := <-h.broadcast:
			h.fanOut(env)

		case <-h.stop:
			for client := range h.byClient {
				h.dropClient(client)
			}
			return
		}
	}
}

// Close stops the event loop and disconnects every client.
func (h *Hub) Close() {
	close(h.stop)
	<-h.done
}

// ServeWS upgrades the request and registers the connection for the given
// authenticated user.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ToRoom publishes an event to every client subscribed to the room.
func (h *Hub) ToRoom(roomID, event string, payload any) {
	h.publish(roomTopic(roomID), Message{Event: event, RoomID: roomID, Data: payload})
}

// ToUser publishes an event to every connection of one user.
func (h *Hub) ToUser(userID, event string, payload any) {
	h.publish(userTopic(userID), Message{Event: event, Data: payload})
}

func (h *Hub) publish(topic string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("websocket: marshal %s: %v", msg.Event, err)
		return
	}
	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
	case <-h.stop:
	}
}

func (h *Hub) subscribeClient(client *Client, topic string) {
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
	if h.byClient[client] == nil {
		h.byClient[client] = make(map[string]bool)
	}
	h.byClient[client][topic] = true
}

func (h *Hub) unsubscribeClient(client *Client, topic string) {
	if clients, ok := h.topics[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.byClient[client]; ok {
		delete(topics, topic)
	}
}

// dropClient removes a client from every topic and closes its send channel.
func (h *Hub) dropClient(client *Client) {
	topics, ok := h.byClient[client]
	if !ok {
		return
	}
	for topic := range topics {
		if clients, ok := h.topics[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.byClient, client)
	close(client.send)
}

// fanOut delivers an envelope to a topic's subscribers. A full send buffer
// means the client is too slow to keep; it is dropped.
func (h *Hub) fanOut(env envelope) {
	for client := range h.topics[env.topic] {
		select {
		case client.send <- env.data:
		default:
			h.dropClient(client)
		}
	}
}

// readPump pumps subscribe frames from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read: %v", err)
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.RoomID == "" {
			continue
		}
		switch in.Action {
		case "room:join":
			select {
			case c.hub.subscribe <- subscription{client: c, topic: roomTopic(in.RoomID)}:
			case <-c.hub.stop:
				return
			}
		case "room:leave":
			select {
			case c.hub.unsubscribe <- subscription{client: c, topic: roomTopic(in.RoomID)}:
			case <-c.hub.stop:
				return
			}
		}
	}
}

// writePump pumps messages from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func roomTopic(roomID string) string { return "room:" + roomID }
func userTopic(userID string) string { return "user:" + userID }
