package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/mentorhub/chat-relay/internal/presence"
	"github.com/mentorhub/chat-relay/internal/router"
	"github.com/mentorhub/chat-relay/internal/server/middleware"
	"github.com/mentorhub/chat-relay/pkg/auth"
	"github.com/mentorhub/chat-relay/pkg/config"
	"github.com/mentorhub/chat-relay/pkg/session"
	"github.com/mentorhub/chat-relay/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    *session.Registry
	eventRouter *router.Router
	presence    *presence.Broadcaster
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	// Every constructed transport connection, keyed by connection ID. A
	// superseded connection leaves the registry while its socket is still
	// open; shutdown has to drain these too, so the registry alone is not
	// enough.
	connMu sync.Mutex
	conns  map[uuid.UUID]*transport.Connection

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	registry := session.NewRegistry(logger)
	eventRouter := router.New(logger, registry)
	broadcaster := presence.NewBroadcaster(logger, registry)
	verifier := auth.NewVerifier(cfg.Server.Auth.JWTSecret)

	app := &App{
		logger:      logger,
		registry:    registry,
		eventRouter: eventRouter,
		presence:    broadcaster,
		config:      cfg,
		conns:       make(map[uuid.UUID]*transport.Connection),
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewHandshakeAuth(logger, verifier),
		),
	)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	userID := reqMeta.UserID
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", userID),
	)

	wsConn, err := websocket.Accept(w, r, a.acceptOptions())
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		func(ctx context.Context, msg []byte) {
			a.eventRouter.HandleMessage(ctx, userID, msg)
		},
		func(connID uuid.UUID, err error) {
			a.dropConn(connID)
			// Only the owner of the live registry entry announces offline; a
			// superseded connection closing late changes nothing.
			if a.registry.Unregister(userID, connID) {
				connLogger.Info("Session closed", slog.String("connID", connID.String()))
				a.presence.Announce(userID, false)
			}
		},
		a.logger,
	)
	a.trackConn(conn)

	if prev := a.registry.Register(userID, conn); prev != nil {
		connLogger.Info("Superseded previous session", slog.String("prevConnID", prev.ID().String()))
	}
	a.presence.Announce(userID, true)

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

func (a *App) trackConn(conn *transport.Connection) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	a.conns[conn.ID()] = conn
}

func (a *App) dropConn(connID uuid.UUID) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	delete(a.conns, connID)
}

func (a *App) liveConns() []*transport.Connection {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	out := make([]*transport.Connection, 0, len(a.conns))
	for _, conn := range a.conns {
		out = append(out, conn)
	}
	return out
}

func (a *App) acceptOptions() *websocket.AcceptOptions {
	origins := a.config.Server.AllowedOrigins
	if len(origins) == 1 && origins[0] == "*" {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: origins}
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Close all active WebSocket connections, superseded handles included:
	// those are gone from the registry but their sockets (and pump
	// goroutines) are still alive until the transport is told to stop.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.liveConns() {
		conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
