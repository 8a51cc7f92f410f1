package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// priceRetryAfter is the Retry-After hint, in seconds, when a price is unavailable
const priceRetryAfter = "60"

// routePortfolios dispatches /api/portfolios/{id}[/...] requests.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	parts := PathSegments(r, "/api/portfolios/")
	if len(parts) == 0 {
		s.handlePortfolioList(w, r)
		return
	}

	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handlePortfolio(w, r, id)
	case len(parts) == 2 && parts[1] == "summary":
		s.handlePortfolioSummary(w, r, id)
	case len(parts) == 2 && parts[1] == "history":
		s.handlePortfolioHistory(w, r, id)
	case len(parts) == 3 && parts[1] == "history" && parts[2] == "chart":
		s.handlePortfolioHistoryChart(w, r, id)
	case len(parts) == 2 && parts[1] == "holdings":
		s.handleHoldingAdd(w, r, id)
	case len(parts) == 3 && parts[1] == "holdings":
		s.handleHoldingDelete(w, r, id, parts[2])
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// handlePortfolioList handles GET (list) and POST (create) on /api/portfolios.
func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	svc := s.app.PortfolioService

	if r.Method == http.MethodGet {
		portfolios, err := svc.ListPortfolios(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if portfolios == nil {
			portfolios = []*models.Portfolio{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"portfolios": portfolios})
		return
	}

	if !requireAdmin(w, r) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	p, err := svc.CreatePortfolio(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// handlePortfolio handles GET, PATCH (rename) and DELETE on /api/portfolios/{id}.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete) {
		return
	}
	svc := s.app.PortfolioService
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		detail, err := svc.GetPortfolio(ctx, id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if detail.Holdings == nil {
			detail.Holdings = []*models.Holding{}
		}
		WriteJSON(w, http.StatusOK, detail)

	case http.MethodPatch:
		if !requireAdmin(w, r) {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		p, err := svc.RenamePortfolio(ctx, id, req.Name)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)

	case http.MethodDelete:
		if !requireAdmin(w, r) {
			return
		}
		if err := svc.DeletePortfolio(ctx, id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	summary, err := s.app.PortfolioService.GetSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, presentSummary(summary))
}

func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rng, err := models.ParseRange(strings.ToLower(r.URL.Query().Get("range")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	history, err := s.app.PortfolioService.GetHistory(r.Context(), id, rng)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, presentHistory(history))
}

func (s *Server) handlePortfolioHistoryChart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rng, err := models.ParseRange(strings.ToLower(r.URL.Query().Get("range")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	png, err := s.app.PortfolioService.RenderHistoryChart(r.Context(), id, rng)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleHoldingAdd(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !requireAdmin(w, r) {
		return
	}
	var in interfaces.HoldingInput
	if !DecodeJSON(w, r, &in) {
		return
	}
	h, err := s.app.PortfolioService.AddHolding(r.Context(), portfolioID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, h)
}

func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request, portfolioID, holdingID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if !requireAdmin(w, r) {
		return
	}
	if err := s.app.PortfolioService.DeleteHolding(r.Context(), portfolioID, holdingID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps domain errors onto HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrPortfolioNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "portfolio_not_found")
	case errors.Is(err, models.ErrHoldingNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "holding_not_found")
	case errors.Is(err, models.ErrPriceUnavailable):
		w.Header().Set("Retry-After", priceRetryAfter)
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "price_unavailable")
	case errors.Is(err, models.ErrHoldingValidation):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_holding")
	case errors.Is(err, models.ErrInvalidRange):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_range")
	case errors.Is(err, models.ErrInvalidPortfolioName):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_name")
	case errors.Is(err, models.ErrUnknownTicker):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "unknown_ticker")
	case errors.Is(err, models.ErrInsufficientHistory):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), "insufficient_history")
	default:
		s.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("correlation_id", common.CorrelationID(r.Context())).
			Msg("Request failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, "Internal server error", "internal_error")
	}
}
