// Package websocket provides the realtime transport for rooms.
//
// The package uses a hub-and-spoke model: a central Hub owns every client
// connection and a topic table, and each connection runs dedicated read and
// write goroutines. All subscription and fan-out state is touched only by
// the hub's event loop, so no broadcast path needs a lock.
//
// Topics:
//
// Every client is auto-subscribed to its private topic user:{userId} at
// connect time. Room topics room:{roomId} are joined and left explicitly by
// the client:
//   - Incoming: {action: "room:join", roomId: "..."} and
//     {action: "room:leave", roomId: "..."}
//   - Outgoing: {event: "dice:roll", roomId: "...", data: {...}}
//
// The coordinator publishes through the Broadcaster interface; ToRoom fans
// out to a room topic and ToUser to a private topic. Slow clients whose send
// buffer fills are dropped rather than allowed to stall the hub.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Close()
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//	    hub.ServeWS(w, r, userID)
//	})
package websocket
