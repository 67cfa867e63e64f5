package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/backend"
	"github.com/Buildathonzx/whisperrnote/internal/config"
	"github.com/Buildathonzx/whisperrnote/internal/events"
	"github.com/Buildathonzx/whisperrnote/internal/handler"
	"github.com/Buildathonzx/whisperrnote/internal/middleware"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
	"github.com/Buildathonzx/whisperrnote/internal/service"
	"github.com/Buildathonzx/whisperrnote/internal/syncer"
	"github.com/Buildathonzx/whisperrnote/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Ledger.User,
		cfg.Ledger.Password,
		cfg.Ledger.Host,
		cfg.Ledger.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Ledger.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Ledger.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Ledger.Name)
	}

	userRepo := repository.NewUserRepository(client, cfg.Ledger.Name)
	store := repository.NewStore(cfg.Proposals.DefaultMinApprovals)

	ledger := backend.NewCouchLedgerStore(client, cfg.Ledger.Name)

	var collab backend.CollabStore
	var external backend.ExternalCaller
	if cfg.Collab.Enabled {
		collab = backend.NewHTTPCollabStore(cfg.Collab.BaseURL)
		external = backend.NewHTTPExternalCaller(cfg.Collab.BaseURL)
	}

	bus := events.NewBus()

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)

	splitter := service.NewSecretSplitter([]byte(cfg.Keys.MasterSecret))
	keyShareService := service.NewKeyShareService(store.Notes, store.KeyShares, userRepo, splitter)
	noteService := service.NewNoteService(store.Notes, store.Versions, store.Contexts, keyShareService, ledger, collab, bus)
	proposalService := service.NewProposalService(store.Proposals, store.Config, noteService, external, collab, bus)

	tracker := syncer.NewTracker()
	engine := syncer.NewEngine(tracker, store.Notes, store.Versions, store.KeyShares, ledger, collab, bus)
	engine.SetIntervals(cfg.Sync.LiveInterval, cfg.Sync.SweepInterval)

	broadcaster := websocket.NewBroadcaster(wsManager, store.Notes, bus)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.Enabled && collab != nil {
		go func() {
			if err := engine.Run(runCtx); err != nil {
				log.Printf("sync engine stopped: %v", err)
			}
		}()
	}
	go func() {
		if err := broadcaster.Run(runCtx); err != nil && err != context.Canceled {
			log.Printf("event broadcaster stopped: %v", err)
		}
	}()

	authHandler := handler.NewAuthHandler(authService)
	noteHandler := handler.NewNoteHandler(noteService)
	proposalHandler := handler.NewProposalHandler(proposalService)
	keyShareHandler := handler.NewKeyShareHandler(keyShareService)
	syncHandler := handler.NewSyncHandler(tracker, store)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CORS))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/share", noteHandler.Share).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/versions", noteHandler.ListVersions).Methods("GET", "OPTIONS")

	protected.HandleFunc("/notes/{id}/key", keyShareHandler.Lookup).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/key/{recipient}", keyShareHandler.Revoke).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/proposals", proposalHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/proposals", proposalHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/proposals/{id}", proposalHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/proposals/{id}/approve", proposalHandler.Approve).Methods("POST", "OPTIONS")
	protected.HandleFunc("/proposals/{id}/messages", proposalHandler.SendMessage).Methods("POST", "OPTIONS")
	protected.HandleFunc("/proposals/{id}/messages", proposalHandler.ListMessages).Methods("GET", "OPTIONS")

	protected.HandleFunc("/sync/vectors", syncHandler.Vectors).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/vectors/{id}", syncHandler.Vector).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/pending", syncHandler.Pending).Methods("GET", "OPTIONS")

	protected.HandleFunc("/migration/export", syncHandler.Export).Methods("GET", "OPTIONS")
	protected.HandleFunc("/migration/import", syncHandler.Import).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Whisperrnote server on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Ledger store at %s:%s", cfg.Ledger.Host, cfg.Ledger.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-runCtx.Done()
	stop()

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	bus.Close()

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"whisperrnote"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Whisperrnote API","version":"1.0.0","endpoints":{"/api/v1/auth/register":"POST","/api/v1/auth/login":"POST","/api/v1/notes":"GET/POST (protected)","/api/v1/proposals":"GET/POST (protected)"}}`))
}
