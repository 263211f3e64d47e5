// Package api exposes the REST surface over the room coordinator.
//
// Every response rides a {success, data|error} envelope. Coordinator error
// kinds map onto HTTP status codes:
//
//	UNAUTHORIZED -> 401
//	VALIDATION   -> 400
//	NOT_FOUND    -> 404
//	FORBIDDEN    -> 403
//	CONFLICT     -> 400
//	INTERNAL     -> 500 (details stay in the server log)
//
// Endpoints:
//
//	POST   /auth/guest              mint a guest bearer token
//	GET    /health                  dependency reachability
//	POST   /rooms                   create a room
//	GET    /rooms                   public waiting lobby
//	POST   /rooms/join              join by 6-char code
//	GET    /rooms/{id}              room with seats and teams
//	DELETE /rooms/{id}              tear down (host only)
//	POST   /rooms/{id}/join         join by id
//	POST   /rooms/{id}/leave        leave
//	PATCH  /rooms/{id}/ready        toggle ready
//	PATCH  /rooms/{id}/slot         change slot (team mode, waiting)
//	PATCH  /rooms/{id}/team-names   rename teams (host, team mode, waiting)
//	POST   /rooms/{id}/start        start the game (host only)
//	POST   /rooms/{id}/dice         roll
//	POST   /rooms/{id}/move         apply a move
//	POST   /rooms/{id}/next-turn    skip after the grace period
//	POST   /rooms/{id}/taunt        speak a suggested taunt line
//	GET    /rooms/{id}/events       recent audit trail
//	GET    /ws                      WebSocket upgrade (?token= accepted)
//
// Authentication is a JWT bearer token minted by /auth/guest; every route
// except /health and /auth/guest requires it. WebSocket clients pass the
// token as a query parameter since browsers cannot set headers on upgrade
// requests.
//
// CORS is an origin allow-list taken from configuration; an empty list
// reflects any origin.
package api
