// Command arena starts the Ludo game server: REST API, WebSocket hub and
// the authoritative room state manager.
//
// Durable storage is MongoDB (MONGODB_URI); without it the server runs on an
// in-memory store, which is fine for development and useless for production.
// The shared cache is Redis (REDIS_URL) with the same in-memory fallback.
// Flags control the port, the engagement dice tuning profile, debug logging
// and version output; everything else comes from the environment (see the
// config package).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openludo/arena/api"
	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/config"
	"github.com/openludo/arena/game/dice"
	"github.com/openludo/arena/game/service"
	"github.com/openludo/arena/game/state"
	"github.com/openludo/arena/game/taunt"
	"github.com/openludo/arena/store"
	"github.com/openludo/arena/transport/websocket"
)

const (
	Version = "1.0.0"
	AppName = "Ludo Arena Server"
)

var (
	port        = flag.Int("port", 0, "HTTP server port (overrides PORT)")
	profilePath = flag.String("profile", "", "Engagement dice tuning profile (YAML)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	version     = flag.Bool("version", false, "Show version information")
)

// idleRoomTTL is how long an untouched waiting room survives before the
// background sweep deletes it.
const idleRoomTTL = 24 * time.Hour

func main() {
	// Load .env if present; absence is not an error.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if cfg.JWTSecret == config.DevSecret {
		log.Println("WARNING: JWT_SECRET not set, using the development secret")
	}

	log.Printf("Starting %s v%s", AppName, Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore := newStore(ctx, cfg)
	defer closeStore()

	c, closeCache := newCache(ctx, cfg)
	defer closeCache()

	states := state.NewManager(st, c,
		state.WithFlushInterval(cfg.FlushInterval),
		state.WithMirrorTTL(cfg.StateCacheTTL),
		state.WithMoveLog(cfg.MoveLogMaxItems, cfg.MoveLogTTL),
	)

	profile := diceProfile()
	engine := dice.New(c, profile, dice.WithEnabled(cfg.EngagementDiceEnabled))

	taunts := taunt.NewDirector(
		taunt.WithLimits(cfg.TauntCooldown, cfg.TauntPerMinute, cfg.TauntBurstLimit),
	)

	hub := websocket.NewHub(websocket.WithOriginCheck(originCheck(cfg.CORSOrigins)))
	go hub.Run()

	coord := service.New(st, states, engine, taunts,
		service.WithBroadcaster(hub),
		service.WithTauntsEnabled(cfg.TauntsEnabled),
	)

	tokens := api.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	server := api.NewServer(coord, hub, tokens, api.WithAllowedOrigins(cfg.CORSOrigins))

	go idleRoomSweep(ctx, st, states)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://localhost%s/rooms", addr)
		log.Printf("WebSocket: ws://localhost%s/ws?token=<jwt>", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received signal: %v. Shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	hub.Close()
	// Force-flush every dirty room before the store goes away.
	states.Close(shutdownCtx)
	log.Println("Server stopped")
}

// newStore connects MongoDB, or falls back to the in-memory store when no
// URI is configured.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	if cfg.MongoURI == "" {
		log.Println("WARNING: MONGODB_URI not set, using in-memory store (state is lost on restart)")
		return store.NewMemoryStore(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	m, err := store.NewMongo(connectCtx, cfg.MongoURI, "ludo")
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB")
	return m, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			log.Printf("MongoDB disconnect error: %v", err)
		}
	}
}

// newCache connects Redis, or falls back to the in-memory cache when no URL
// is configured or the connection fails. The cache is an accelerator, not a
// dependency; the server runs without it.
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		log.Println("REDIS_URL not set, using in-memory cache")
		return cache.NewMemory(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, err := cache.NewRedis(connectCtx, cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Redis unavailable (%v), using in-memory cache", err)
		return cache.NewMemory(), func() {}
	}
	log.Println("Connected to Redis")
	return r, func() {
		if err := r.Close(); err != nil {
			log.Printf("Redis close error: %v", err)
		}
	}
}

// originCheck builds the WebSocket upgrade origin check from the CORS
// allow-list. An empty list allows everything; non-browser clients send no
// Origin header and always pass.
func originCheck(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// diceProfile loads the tuning profile named by -profile, or the defaults.
func diceProfile() *dice.Profile {
	if *profilePath == "" {
		return nil
	}
	p, err := dice.LoadProfile(*profilePath)
	if err != nil {
		log.Fatalf("Failed to load dice profile %s: %v", *profilePath, err)
	}
	log.Printf("Loaded dice profile from %s", *profilePath)
	return p
}

// idleRoomSweep periodically deletes waiting rooms nobody has touched for
// idleRoomTTL. In-progress rooms are never collected here; they are evicted
// from memory by the state manager and stay in the store for history.
func idleRoomSweep(ctx context.Context, st store.Store, states *state.Manager) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rooms, err := st.ListPublicWaiting(ctx)
		if err != nil {
			log.Printf("Idle room sweep: %v", err)
			continue
		}
		removed := 0
		for _, room := range rooms {
			if time.Since(room.UpdatedAt) < idleRoomTTL {
				continue
			}
			if err := st.DeleteSeatsByRoom(ctx, room.ID); err != nil {
				log.Printf("Idle room sweep: seats %s: %v", room.ID, err)
				continue
			}
			if err := st.DeleteTeamsByRoom(ctx, room.ID); err != nil {
				log.Printf("Idle room sweep: teams %s: %v", room.ID, err)
			}
			if err := st.DeleteRoom(ctx, room.ID); err != nil {
				log.Printf("Idle room sweep: room %s: %v", room.ID, err)
				continue
			}
			states.Forget(ctx, room.ID)
			removed++
		}
		if removed > 0 {
			log.Printf("Cleaned up %d idle rooms", removed)
		}
	}
}
