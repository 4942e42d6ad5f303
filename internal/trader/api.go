package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIServer provides the HTTP polling interface for the engine.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates an APIServer listening on the configured port.
func NewAPIServer(engine *Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/logs", s.logsHandler)
	mux.HandleFunc("/execute", s.executeHandler)
	mux.HandleFunc("/transfer", s.transferHandler)
	mux.HandleFunc("/stop", s.stopHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	response := struct {
		AgentID   string `json:"agent_id"`
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
		Status    any    `json:"status"`
		Schedules any    `json:"schedules"`
	}{
		AgentID:   s.engine.AgentID,
		StartTime: s.engine.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.engine.StartTime).String(),
		Status:    s.engine.Status(),
		Schedules: s.engine.ScheduleInfo(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *APIServer) logsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{"logs": s.engine.Logs()})
	case http.MethodDelete:
		s.engine.ClearLogs()
		s.writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *APIServer) executeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Strategy string          `json:"strategy"`
		Config   ExecutionConfig `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	details, err := s.engine.StartExecution(r.Context(), request.Config, request.Strategy)
	if err != nil {
		s.logger.Error("Execution failed", zap.Error(err))
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   err.Error(),
			"details": details,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "details": details})
}

func (s *APIServer) transferHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var intent TransferIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if intent.ToAddress == "" || intent.Token == "" || intent.Amount <= 0 {
		http.Error(w, "to_address, token and a positive amount are required", http.StatusBadRequest)
		return
	}

	wallet, err := s.engine.wallets.GetOrCreateWallet(r.Context(), s.engine.cfg.Wallet.OwnerAddress)
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("wallet setup failed: %v", err),
		})
		return
	}

	result := s.engine.ExecuteTransfer(r.Context(), intent, wallet)
	code := http.StatusOK
	if !result.Success {
		code = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, code, result)
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	count := s.engine.StopAllSchedules()
	s.writeJSON(w, http.StatusOK, map[string]any{"stopped": count})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
