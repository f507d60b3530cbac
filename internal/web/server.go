package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/cosmoswap-labs/pclpool/internal/logger"
	"github.com/cosmoswap-labs/pclpool/internal/pool"
	"github.com/cosmoswap-labs/pclpool/internal/service"
	"github.com/cosmoswap-labs/pclpool/internal/state"
	"github.com/cosmoswap-labs/pclpool/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the pool's read-only query surface over HTTP. All
// endpoints serve JSON; nothing here mutates the pool.
type WebServer struct {
	router *mux.Router
	port   string
	svc    *service.PoolService
}

// NewWebServer creates a new web server instance backed by the pool service.
func NewWebServer(port string, svc *service.PoolService) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		svc:    svc,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pool", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pool/d", ws.handleGetD).Methods("GET")
	api.HandleFunc("/pool/lp-price", ws.handleGetLPPrice).Methods("GET")
	api.HandleFunc("/pool/share/{amount}", ws.handleGetShareInAssets).Methods("GET")
	api.HandleFunc("/observe", ws.handleObserve).Methods("GET")
	api.HandleFunc("/balances/{height}", ws.handleGetBalancesAtHeight).Methods("GET")
	api.HandleFunc("/swaps", ws.handleGetRecentSwaps).Methods("GET")
	api.HandleFunc("/simulate/swap", ws.handleSimulateSwap).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server and database health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	_, _, totalShare, env := ws.svc.Snapshot()

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "pclpool-pricing-daemon",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"height":           env.BlockHeight,
			"total_share":      totalShare.String(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPool returns the full live pool record
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolState, balances, totalShare, env := ws.svc.Snapshot()
	denoms := ws.svc.Engine().Denoms()

	ampGamma := ws.currentAmpGamma(poolState, env)

	response := map[string]interface{}{
		"denoms":      denoms,
		"balances":    [2]string{balances[0].String(), balances[1].String()},
		"total_share": totalShare.String(),
		"height":      env.BlockHeight,
		"amp":         ampGamma.Amp.String(),
		"gamma":       ampGamma.Gamma.String(),
		"price_state": poolState.Price,
		"params":      ws.svc.Engine().Params(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetD returns the current invariant
func (ws *WebServer) handleGetD(w http.ResponseWriter, r *http.Request) {
	poolState, balances, _, env := ws.svc.Snapshot()

	d, err := ws.svc.Engine().CurrentD(env, poolState, balances)
	if err != nil {
		ws.writeQueryError(w, err, "Failed to compute invariant")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"d": d.String()})
}

// handleGetLPPrice returns the value of one LP share in base asset units
func (ws *WebServer) handleGetLPPrice(w http.ResponseWriter, r *http.Request) {
	poolState, balances, totalShare, env := ws.svc.Snapshot()

	price, err := ws.svc.Engine().LPPrice(env, poolState, balances, totalShare)
	if err != nil {
		ws.writeQueryError(w, err, "Failed to compute LP price")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"lp_price": price.String()})
}

// handleGetShareInAssets decomposes an LP amount into its asset claim
func (ws *WebServer) handleGetShareInAssets(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	amount, ok := sdkmath.NewIntFromString(vars["amount"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid share amount")
		return
	}

	_, balances, totalShare, _ := ws.svc.Snapshot()
	assets, err := ws.svc.Engine().ShareInAssets(balances, amount, totalShare)
	if err != nil {
		ws.writeQueryError(w, err, "Failed to decompose share")
		return
	}

	denoms := ws.svc.Engine().Denoms()
	response := map[string]interface{}{
		"amount": amount.String(),
		"assets": map[string]string{
			denoms[0]: assets[0].String(),
			denoms[1]: assets[1].String(),
		},
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleObserve returns the oracle price seconds_ago seconds in the past
func (ws *WebServer) handleObserve(w http.ResponseWriter, r *http.Request) {
	secondsAgo := int64(0)
	if raw := r.URL.Query().Get("seconds_ago"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid seconds_ago")
			return
		}
		secondsAgo = parsed
	}

	_, _, _, env := ws.svc.Snapshot()
	price, err := ws.svc.Engine().Observe(env, secondsAgo)
	if err != nil {
		ws.writeQueryError(w, err, "Failed to observe price")
		return
	}

	response := map[string]interface{}{
		"seconds_ago": secondsAgo,
		"price":       price.String(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBalancesAtHeight returns the balance snapshot live at a height
func (ws *WebServer) handleGetBalancesAtHeight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	height, err := strconv.ParseInt(vars["height"], 10, 64)
	if err != nil || height < 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid height")
		return
	}

	snap, err := state.GetBalancesAtHeight(height)
	if err != nil {
		webLogger.Error().Err(err).Int64("height", height).Msg("Failed to get balance snapshot")
		ws.writeErrorResponse(w, http.StatusNotFound, "No snapshot at or before that height")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snap)
}

// handleGetRecentSwaps returns recent swap receipts
func (ws *WebServer) handleGetRecentSwaps(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	receipts, err := state.GetRecentSwapReceipts(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get swap receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve swaps")
		return
	}

	response := map[string]interface{}{
		"swaps": receipts,
		"count": len(receipts),
		"limit": limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// simulateSwapRequest is the POST body of /api/simulate/swap.
type simulateSwapRequest struct {
	OfferAsset  string `json:"offer_asset"`
	OfferAmount string `json:"offer_amount"`
}

// handleSimulateSwap prices a swap without executing it
func (ws *WebServer) handleSimulateSwap(w http.ResponseWriter, r *http.Request) {
	var req simulateSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	denoms := ws.svc.Engine().Denoms()
	offerIdx := -1
	for i, denom := range denoms {
		if denom == req.OfferAsset {
			offerIdx = i
		}
	}
	if offerIdx < 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Unknown offer asset")
		return
	}

	offerAmount, ok := sdkmath.NewIntFromString(req.OfferAmount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid offer amount")
		return
	}

	poolState, balances, _, env := ws.svc.Snapshot()
	res, err := ws.svc.Engine().SimulateSwap(env, poolState, balances, offerIdx, offerAmount, types.FeeInfo{})
	if err != nil {
		ws.writeQueryError(w, err, "Failed to simulate swap")
		return
	}

	response := map[string]interface{}{
		"offer_asset":   req.OfferAsset,
		"offer_amount":  offerAmount.String(),
		"return_amount": res.AmountOut.String(),
		"spread_amount": res.SpreadAmount.String(),
		"total_fee":     res.TotalFee.String(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) currentAmpGamma(poolState types.PoolState, env types.Env) types.AmpGamma {
	return pool.AmpGammaAt(poolState, env.BlockTime)
}

// writeQueryError maps engine errors onto HTTP status codes.
func (ws *WebServer) writeQueryError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrObservationOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrZeroShares), errors.Is(err, types.ErrZeroBalance),
		errors.Is(err, types.ErrPoolNotReady):
		status = http.StatusConflict
	case errors.Is(err, types.ErrZeroAmount), errors.Is(err, types.ErrInvalidAssetCount):
		status = http.StatusBadRequest
	}
	webLogger.Error().Err(err).Msg(message)
	ws.writeErrorResponse(w, status, err.Error())
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
