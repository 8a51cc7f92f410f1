package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)

	// Auth
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolioList)

	// Price feed
	mux.HandleFunc("/api/ws/prices", s.handlePriceFeed)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := map[string]interface{}{
		"version":     common.GetVersion(),
		"build":       common.GetBuild(),
		"commit":      common.GetGitCommit(),
		"environment": s.app.Config.Environment,
		"uptime":      uptime.String(),
		"started_at":  s.app.StartupTime,
		"storage":     s.app.Config.StorageDescription(),
		"benchmark":   s.app.Config.Market.Benchmark,
		"goroutines":  runtime.NumGoroutine(),
		"heap_mb":     float64(ms.HeapAlloc) / 1024 / 1024,
	}

	if s.app.PriceHub != nil {
		resp["price_feed_clients"] = s.app.PriceHub.ClientCount()
	}

	// CPU over a short window so the call stays responsive
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp["cpu_percent"] = roundPct(cpuPercent[0])
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		resp["memory_used_percent"] = roundPct(memStat.UsedPercent)
		resp["memory_total_mb"] = memStat.Total / 1024 / 1024
	} else {
		s.logger.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	WriteJSON(w, http.StatusOK, resp)
}

// handlePriceFeed upgrades GET /api/ws/prices to a WebSocket price stream.
func (s *Server) handlePriceFeed(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.app.PriceHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "price feed not running")
		return
	}
	s.app.PriceHub.ServeWS(w, r)
}
