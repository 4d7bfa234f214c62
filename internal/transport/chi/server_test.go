package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
	healthuc "github.com/civica-cloud/secoql/internal/usecase/health"
	searchuc "github.com/civica-cloud/secoql/internal/usecase/search"
)

// --- Pipeline stubs ---

type stubParser struct{}

func (stubParser) Parse(_ context.Context, text string) domain.QueryParams {
	return domain.QueryParams{Entity: "contracts", RawQuery: text}
}

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, mention string, _ int) *domain.ResolvedEntity {
	return &domain.ResolvedEntity{Name: mention, Score: 1.0, Metadata: map[string]any{}}
}

type stubCompiler struct{}

func (stubCompiler) Compile(_ domain.QueryParams, _ *domain.ResolvedEntity) domain.CompiledQuery {
	return domain.CompiledQuery{Dataset: "jbjy-vk9h", Params: map[string]string{}}
}

type stubExecutor struct {
	rows []domain.Row
	err  error
}

func (s *stubExecutor) Execute(_ context.Context, _ string, _ map[string]string) ([]domain.Row, error) {
	return s.rows, s.err
}

type stubHistory struct {
	sender  string
	channel string
}

func (s *stubHistory) LogQuery(_ context.Context, sender, channel, _ string, _ domain.QueryParams) error {
	s.sender = sender
	s.channel = channel
	return nil
}

func newTestRouter(executor *stubExecutor) http.Handler {
	return newTestRouterWithHistory(executor, nil)
}

func newTestRouterWithHistory(executor *stubExecutor, history searchuc.QueryLogger) http.Handler {
	svc := searchuc.New(stubParser{}, stubResolver{}, stubCompiler{}, executor, history, 5, zap.NewNop())
	server := NewServer(svc, healthuc.New(nil, nil, nil), zap.NewNop())

	r := chi.NewRouter()
	server.Register(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(&stubExecutor{rows: []domain.Row{{"buyer": "Alcaldía de Cali"}}})

	rec := doRequest(t, router, http.MethodPost, "/search", `{"query": "contratos 2024"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data map[string]any `json:"data"`
		Raw  []domain.Row   `json:"raw"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["count"] != float64(1) {
		t.Errorf("count = %v", resp.Data["count"])
	}
	if len(resp.Raw) != 1 {
		t.Errorf("raw = %v", resp.Raw)
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	router := newTestRouter(&stubExecutor{})

	rec := doRequest(t, router, http.MethodPost, "/search", `{"query": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint_MalformedBody(t *testing.T) {
	router := newTestRouter(&stubExecutor{})

	rec := doRequest(t, router, http.MethodPost, "/search", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint_RemoteFailure(t *testing.T) {
	executor := &stubExecutor{err: domain.NewRemoteQueryError(4, context.DeadlineExceeded)}
	router := newTestRouter(executor)

	rec := doRequest(t, router, http.MethodPost, "/search", `{"query": "contratos"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["code"] != codeRemoteQueryError {
		t.Errorf("code = %v", resp["code"])
	}
	if resp["attempts"] != float64(4) {
		t.Errorf("attempts = %v", resp["attempts"])
	}
}

func TestWebhook_TwilioBody(t *testing.T) {
	router := newTestRouter(&stubExecutor{rows: []domain.Row{{"buyer": "Gobernación"}}})

	rec := doRequest(t, router, http.MethodPost, "/whatsapp/webhook",
		`{"Body": "contratos 2024", "From": "whatsapp:+573001112233"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Reply, "Resultados para tu consulta:") {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestWebhook_SenderLogged(t *testing.T) {
	history := &stubHistory{}
	router := newTestRouterWithHistory(&stubExecutor{}, history)

	rec := doRequest(t, router, http.MethodPost, "/whatsapp/webhook",
		`{"Body": "contratos 2024", "From": "whatsapp:+573001112233"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if history.sender != "whatsapp:+573001112233" {
		t.Errorf("logged sender = %q", history.sender)
	}
	if history.channel != searchuc.ChannelWhatsApp {
		t.Errorf("logged channel = %q", history.channel)
	}
}

func TestWebhook_QueryFallback(t *testing.T) {
	router := newTestRouter(&stubExecutor{})

	rec := doRequest(t, router, http.MethodPost, "/whatsapp/webhook", `{"query": "proveedor ACME"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "No se encontraron resultados para tu búsqueda." {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestWebhook_MissingQuery(t *testing.T) {
	router := newTestRouter(&stubExecutor{})

	rec := doRequest(t, router, http.MethodPost, "/whatsapp/webhook", `{"From": "someone"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubExecutor{})

	rec := doRequest(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
}
