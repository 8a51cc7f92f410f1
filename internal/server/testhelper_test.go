package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/app"
	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

const testSecret = "test-secret-key"

// mockPortfolioService implements interfaces.PortfolioService for testing.
type mockPortfolioService struct {
	getSummary         func(ctx context.Context, id string) (*models.PortfolioSummary, error)
	getHistory         func(ctx context.Context, id string, rng models.Range) (*models.PortfolioHistory, error)
	renderHistoryChart func(ctx context.Context, id string, rng models.Range) ([]byte, error)
	listPortfolios     func(ctx context.Context) ([]*models.Portfolio, error)
	getPortfolio       func(ctx context.Context, id string) (*interfaces.PortfolioDetail, error)
	createPortfolio    func(ctx context.Context, name string) (*models.Portfolio, error)
	renamePortfolio    func(ctx context.Context, id, name string) (*models.Portfolio, error)
	deletePortfolio    func(ctx context.Context, id string) error
	addHolding         func(ctx context.Context, id string, in interfaces.HoldingInput) (*models.Holding, error)
	deleteHolding      func(ctx context.Context, id, holdingID string) error
}

func (m *mockPortfolioService) GetSummary(ctx context.Context, id string) (*models.PortfolioSummary, error) {
	return m.getSummary(ctx, id)
}

func (m *mockPortfolioService) GetHistory(ctx context.Context, id string, rng models.Range) (*models.PortfolioHistory, error) {
	return m.getHistory(ctx, id, rng)
}

func (m *mockPortfolioService) RenderHistoryChart(ctx context.Context, id string, rng models.Range) ([]byte, error) {
	return m.renderHistoryChart(ctx, id, rng)
}

func (m *mockPortfolioService) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	if m.listPortfolios == nil {
		return nil, nil
	}
	return m.listPortfolios(ctx)
}

func (m *mockPortfolioService) GetPortfolio(ctx context.Context, id string) (*interfaces.PortfolioDetail, error) {
	return m.getPortfolio(ctx, id)
}

func (m *mockPortfolioService) CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	return m.createPortfolio(ctx, name)
}

func (m *mockPortfolioService) RenamePortfolio(ctx context.Context, id, name string) (*models.Portfolio, error) {
	return m.renamePortfolio(ctx, id, name)
}

func (m *mockPortfolioService) DeletePortfolio(ctx context.Context, id string) error {
	return m.deletePortfolio(ctx, id)
}

func (m *mockPortfolioService) AddHolding(ctx context.Context, id string, in interfaces.HoldingInput) (*models.Holding, error) {
	return m.addHolding(ctx, id, in)
}

func (m *mockPortfolioService) DeleteHolding(ctx context.Context, id, holdingID string) error {
	return m.deleteHolding(ctx, id, holdingID)
}

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPassword = "hunter2"
	return cfg
}

func newTestServer(svc interfaces.PortfolioService) *Server {
	logger := common.NewSilentLogger()
	a := &app.App{
		Config:           testConfig(),
		Logger:           logger,
		PortfolioService: svc,
		StartupTime:      time.Now(),
	}
	return NewServer(a)
}

// adminToken signs a valid admin token for the test config.
func adminToken(t *testing.T) string {
	t.Helper()
	cfg := testConfig()
	token, _, err := signJWT("admin", &cfg.Auth)
	if err != nil {
		t.Fatalf("signJWT failed: %v", err)
	}
	return token
}

// do runs a request through the full middleware stack.
func do(t *testing.T, srv *Server, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}
