package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradedesk/internal/engine"
	"tradedesk/internal/gateway/binance"
	"tradedesk/internal/logger"
	"tradedesk/internal/market"
	"tradedesk/internal/signal"
	"tradedesk/internal/store/ledger"
	storemodel "tradedesk/internal/store/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// TradeExecutor is the execution engine entry point.
type TradeExecutor interface {
	ExecuteTrade(ctx context.Context, req engine.TradeRequest) (ledger.Trade, error)
}

// MarketGateway serves ticker and candle lookups.
type MarketGateway = market.Gateway

// SignalService covers the advisory signal lifecycle.
type SignalService interface {
	Generate(ctx context.Context, symbol string) (ledger.AISignal, error)
	List(ctx context.Context, status, symbol string, limit int) ([]ledger.AISignal, error)
	Dismiss(ctx context.Context, id string) error
	Execute(ctx context.Context, id, userID, portfolioID, amount string) (ledger.Trade, error)
}

// ConnRegistrar adopts upgraded websocket connections.
type ConnRegistrar interface {
	HandleConn(conn *websocket.Conn)
}

// CredentialChecker probes venue API keys before they are stored.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context, creds binance.Credentials) error
}

// Router holds the handler dependencies.
type Router struct {
	store        *ledger.Store
	trades       TradeExecutor
	gateway      MarketGateway
	signals      SignalService
	venue        CredentialChecker
	auth         *tokenIssuer
	startBalance string
}

// Register mounts all API routes on the engine.
func (r *Router) Register(e *gin.Engine) {
	api := e.Group("/api")
	api.POST("/auth/login", r.handleLogin)

	mkt := api.Group("/market")
	mkt.GET("/ticker/:symbol", r.handleTicker)
	mkt.GET("/tickers", r.handleTickers)
	mkt.GET("/ohlc/:symbol", r.handleOHLC)

	authed := api.Group("", r.auth.requireAuth())
	authed.POST("/trade", r.handleTrade)
	authed.GET("/portfolio", r.handlePortfolio)
	authed.GET("/trades", r.handleTrades)
	authed.GET("/user/profile", r.handleProfile)
	authed.GET("/user/risk-settings", r.handleGetRiskSettings)
	authed.PUT("/user/risk-settings", r.handlePutRiskSettings)
	authed.POST("/settings/mode", r.handleSetMode)
	authed.POST("/settings/venue", r.handleSetVenueKeys)

	ai := authed.Group("/ai")
	ai.GET("/signals", r.handleListSignals)
	ai.POST("/analyze", r.handleAnalyze)
	ai.PUT("/signals/:id/dismiss", r.handleDismissSignal)
	ai.POST("/signals/:id/execute", r.handleExecuteSignal)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates or, on the first visit, provisions a user with a
// funded demo portfolio.
func (r *Router) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx := c.Request.Context()
	user, err := r.store.GetUserByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		user, err = r.registerUser(ctx, req.Username, req.Password)
		if err != nil {
			logger.Errorf("[api] user registration failed username=%s err=%v", req.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
			return
		}
		logger.Infof("[api] new user registered username=%s id=%s", user.Username, user.ID)
	case err != nil:
		logger.Errorf("[api] login lookup failed username=%s err=%v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	default:
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
	}

	token, err := r.auth.issue(user.ID, user.Username)
	if err != nil {
		logger.Errorf("[api] token issue failed user=%s err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userDTO(user)})
}

func (r *Router) registerUser(ctx context.Context, username, password string) (ledger.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ledger.User{}, err
	}
	user, err := r.store.CreateUser(ctx, ledger.User{Username: username, PasswordHash: string(hash)})
	if err != nil {
		return ledger.User{}, err
	}
	start, err := decimal.NewFromString(r.startBalance)
	if err != nil {
		start = decimal.NewFromInt(10000)
	}
	_, err = r.store.CreatePortfolio(ctx, ledger.Portfolio{
		UserID:           user.ID,
		Mode:             storemodel.PortfolioModeDemo,
		AvailableBalance: start,
		RiskSettings:     ledger.DefaultRiskSettings(),
	})
	if err != nil {
		return ledger.User{}, err
	}
	return user, nil
}

type tradeRequest struct {
	PortfolioID string `json:"portfolioId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Price       string `json:"price"`
	StopLoss    string `json:"stopLoss"`
	TakeProfit  string `json:"takeProfit"`
}

func (r *Router) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := currentUserID(c)
	ctx := c.Request.Context()

	portfolioID := strings.TrimSpace(req.PortfolioID)
	if portfolioID == "" {
		portfolio, err := r.activePortfolio(ctx, userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
			return
		}
		portfolioID = portfolio.ID
	}

	trade, err := r.trades.ExecuteTrade(ctx, engine.TradeRequest{
		UserID:      userID,
		PortfolioID: portfolioID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Amount:      req.Amount,
		Price:       req.Price,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
	})
	if err != nil {
		writeTradeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": tradeDTO(trade)})
}

// writeTradeError maps the engine's error taxonomy onto HTTP statuses. Risk
// denials surface their reason verbatim; internals stay generic.
func writeTradeError(c *gin.Context, err error) {
	kind := engine.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Errorf("[api] trade failed ip=%s kind=%s err=%v", c.ClientIP(), kind, err)
	} else {
		logger.Warnf("[api] trade denied ip=%s kind=%s reason=%s", c.ClientIP(), kind, engine.ReasonOf(err))
	}
	c.JSON(status, gin.H{"error": engine.ReasonOf(err), "kind": kind.String()})
}

func (r *Router) handleProfile(c *gin.Context) {
	user, err := r.store.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.Errorf("[api] profile load failed user=%s err=%v", currentUserID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userDTO(user)})
}

func (r *Router) handlePortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	portfolio, err := r.activePortfolio(ctx, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
		return
	}
	holdings, err := r.store.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		logger.Errorf("[api] holdings load failed portfolio=%s err=%v", portfolio.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load holdings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolio": portfolioDTO(portfolio),
		"holdings":  holdingDTOs(holdings),
	})
}

func (r *Router) handleTrades(c *gin.Context) {
	ctx := c.Request.Context()
	portfolio, err := r.activePortfolio(ctx, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	filter := ledger.TradeFilter{
		Symbol:    c.Query("symbol"),
		Side:      c.Query("side"),
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	trades, err := r.store.ListTrades(ctx, portfolio.ID, filter)
	if err != nil {
		logger.Errorf("[api] trades list failed portfolio=%s err=%v", portfolio.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load trades"})
		return
	}
	total, err := r.store.CountTrades(ctx, portfolio.ID, filter)
	if err != nil {
		logger.Errorf("[api] trades count failed portfolio=%s err=%v", portfolio.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load trades"})
		return
	}
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	c.JSON(http.StatusOK, gin.H{
		"trades": tradeDTOs(trades),
		"pagination": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func (r *Router) handleGetRiskSettings(c *gin.Context) {
	portfolio, err := r.activePortfolio(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"riskSettings": riskSettingsDTO(portfolio.RiskSettings)})
}

// Fields left out of the request keep their current values.
type riskSettingsRequest struct {
	Enabled          *bool            `json:"enabled"`
	MaxPositionSize  *decimal.Decimal `json:"maxPositionSize"`
	MaxDailyLoss     *decimal.Decimal `json:"maxDailyLoss"`
	MaxOpenPositions *int             `json:"maxOpenPositions"`
}

func (r *Router) handlePutRiskSettings(c *gin.Context) {
	var req riskSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.MaxPositionSize != nil && req.MaxPositionSize.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxPositionSize must be a positive number"})
		return
	}
	if req.MaxDailyLoss != nil && req.MaxDailyLoss.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxDailyLoss must be a positive number"})
		return
	}
	if req.MaxOpenPositions != nil && *req.MaxOpenPositions < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxOpenPositions must be at least 1"})
		return
	}

	ctx := c.Request.Context()
	portfolio, err := r.activePortfolio(ctx, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
		return
	}
	settings := portfolio.RiskSettings
	if req.Enabled != nil {
		settings.Enabled = *req.Enabled
	}
	if req.MaxPositionSize != nil {
		settings.MaxPositionSize = *req.MaxPositionSize
	}
	if req.MaxDailyLoss != nil {
		settings.MaxDailyLoss = *req.MaxDailyLoss
	}
	if req.MaxOpenPositions != nil {
		settings.MaxOpenPositions = *req.MaxOpenPositions
	}
	if err := r.store.UpdateRiskSettings(ctx, portfolio.ID, settings); err != nil {
		logger.Errorf("[api] risk settings update failed portfolio=%s err=%v", portfolio.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update risk settings"})
		return
	}
	logger.Infof("[api] risk settings updated portfolio=%s enabled=%v", portfolio.ID, settings.Enabled)
	c.JSON(http.StatusOK, gin.H{"riskSettings": riskSettingsDTO(settings)})
}

type modeRequest struct {
	IsDemo *bool `json:"isDemo"`
}

// handleSetMode flips the user between demo and live. The live portfolio is
// created empty on the first switch.
func (r *Router) handleSetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsDemo == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isDemo is required"})
		return
	}
	mode := storemodel.PortfolioModeLive
	if *req.IsDemo {
		mode = storemodel.PortfolioModeDemo
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	if mode == storemodel.PortfolioModeLive {
		if _, err := r.store.GetPortfolioByUser(ctx, userID, mode); errors.Is(err, ledger.ErrNotFound) {
			_, err = r.store.CreatePortfolio(ctx, ledger.Portfolio{
				UserID:       userID,
				Mode:         storemodel.PortfolioModeLive,
				RiskSettings: ledger.DefaultRiskSettings(),
			})
			if err != nil {
				logger.Errorf("[api] live portfolio create failed user=%s err=%v", userID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not switch mode"})
				return
			}
		}
	}
	if err := r.store.UpdateUserMode(ctx, userID, mode); err != nil {
		logger.Errorf("[api] mode update failed user=%s err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not switch mode"})
		return
	}
	logger.Infof("[api] user %s switched to %s mode", userID, mode)
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

type venueKeysRequest struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

// handleSetVenueKeys stores venue credentials after a balance probe proves
// they work.
func (r *Router) handleSetVenueKeys(c *gin.Context) {
	var req venueKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.APISecret = strings.TrimSpace(req.APISecret)
	if req.APIKey == "" || req.APISecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey and apiSecret are required"})
		return
	}
	if r.venue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live trading is not configured"})
		return
	}

	ctx := c.Request.Context()
	creds := binance.Credentials{APIKey: req.APIKey, APISecret: req.APISecret}
	if err := r.venue.ValidateCredentials(ctx, creds); err != nil {
		logger.Warnf("[api] venue credential check failed user=%s err=%v", currentUserID(c), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "venue rejected the credentials"})
		return
	}
	if err := r.store.UpdateUserVenueKeys(ctx, currentUserID(c), req.APIKey, req.APISecret); err != nil {
		logger.Errorf("[api] venue keys update failed user=%s err=%v", currentUserID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleTicker(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	ticker, err := r.gateway.CurrentPrice(c.Request.Context(), symbol)
	if err != nil {
		writeMarketError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticker": tickerDTO(ticker)})
}

func (r *Router) handleTickers(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("symbols"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	symbols := strings.Split(raw, ",")
	for i := range symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbols[i]))
	}
	tickers, err := r.gateway.Tickers(c.Request.Context(), symbols)
	if err != nil {
		logger.Warnf("[api] tickers fetch failed symbols=%v err=%v", symbols, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	out := make(map[string]tickerPayload, len(tickers))
	for sym, t := range tickers {
		out[sym] = tickerDTO(t)
	}
	c.JSON(http.StatusOK, gin.H{"tickers": out})
}

func (r *Router) handleOHLC(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	interval := c.DefaultQuery("interval", "1h")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	candles, err := r.gateway.Candles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		writeMarketError(c, symbol, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "candles": candleDTOs(candles)})
}

func writeMarketError(c *gin.Context, symbol string, err error) {
	if errors.Is(err, market.ErrSymbolNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol " + symbol})
		return
	}
	logger.Warnf("[api] market fetch failed symbol=%s err=%v", symbol, err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
}

func (r *Router) handleListSignals(c *gin.Context) {
	status := c.Query("status")
	if status == "" && !parseBool(c.Query("includeInactive")) {
		status = storemodel.SignalStatusActive
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	signals, err := r.signals.List(c.Request.Context(), status, c.Query("symbol"), limit)
	if err != nil {
		logger.Errorf("[api] signals list failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signalDTOs(signals)})
}

type analyzeRequest struct {
	Symbol string `json:"symbol"`
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	rec, err := r.signals.Generate(c.Request.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, signal.ErrSignalNoAnalyzer) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis is not configured"})
			return
		}
		if errors.Is(err, market.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
			return
		}
		logger.Errorf("[api] analyze failed symbol=%s err=%v", req.Symbol, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": signalDTO(rec)})
}

func (r *Router) handleDismissSignal(c *gin.Context) {
	err := r.signals.Dismiss(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, signal.ErrSignalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
	case errors.Is(err, signal.ErrSignalNotActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "signal is not active"})
	case err != nil:
		logger.Errorf("[api] signal dismiss failed id=%s err=%v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not dismiss signal"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type executeSignalRequest struct {
	Amount      string `json:"amount"`
	PortfolioID string `json:"portfolioId"`
}

func (r *Router) handleExecuteSignal(c *gin.Context) {
	var req executeSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Amount) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	ctx := c.Request.Context()
	userID := currentUserID(c)
	portfolioID := strings.TrimSpace(req.PortfolioID)
	if portfolioID == "" {
		portfolio, err := r.activePortfolio(ctx, userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no portfolio for user"})
			return
		}
		portfolioID = portfolio.ID
	}

	trade, err := r.signals.Execute(ctx, c.Param("id"), userID, portfolioID, req.Amount)
	switch {
	case errors.Is(err, signal.ErrSignalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
	case errors.Is(err, signal.ErrSignalNotActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "signal is not active"})
	case err != nil:
		writeTradeError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"trade": tradeDTO(trade)})
	}
}

// activePortfolio resolves the portfolio for the user's current mode.
func (r *Router) activePortfolio(ctx context.Context, userID string) (ledger.Portfolio, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return ledger.Portfolio{}, err
	}
	mode := user.Mode
	if mode == "" {
		mode = storemodel.PortfolioModeDemo
	}
	return r.store.GetPortfolioByUser(ctx, userID, mode)
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
