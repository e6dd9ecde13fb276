// Package apihttp exposes the dashboard REST API plus the /ws price feed.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradedesk/internal/logger"
	"tradedesk/internal/store/ledger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server wraps the gin engine and its listen address.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig carries everything the API surface depends on.
type ServerConfig struct {
	Addr             string
	Store            *ledger.Store
	Trades           TradeExecutor
	Gateway          MarketGateway
	Signals          SignalService
	Hub              ConnRegistrar
	Venue            CredentialChecker
	JWTSecret        string
	TokenTTL         time.Duration
	DemoStartBalance string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("api server requires a ledger store")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("api server requires a jwt secret")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.DemoStartBalance == "" {
		cfg.DemoStartBalance = "10000.00"
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r := &Router{
		store:        cfg.Store,
		trades:       cfg.Trades,
		gateway:      cfg.Gateway,
		signals:      cfg.Signals,
		venue:        cfg.Venue,
		auth:         newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		startBalance: cfg.DemoStartBalance,
	}
	r.Register(engine)

	if cfg.Hub != nil {
		engine.GET("/ws", serveWS(cfg.Hub))
	}

	return &Server{addr: cfg.Addr, router: engine}, nil
}

// Handler exposes the routed engine for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Infof("[api] listening on %s", s.addr)
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("[api] %s %s status=%d ip=%s dur=%s", method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard frontend is served from a different origin in dev.
	CheckOrigin: func(*http.Request) bool { return true },
}

func serveWS(hub ConnRegistrar) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warnf("[api] websocket upgrade failed ip=%s err=%v", c.ClientIP(), err)
			return
		}
		hub.HandleConn(conn)
	}
}
