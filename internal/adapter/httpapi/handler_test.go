package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/domain/entity"
	"agent-compare/internal/infrastructure/logger"
	"agent-compare/internal/usecase/compare"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	valid bool
	got   entity.Credential
}

func (f *fakeKeys) Validate(_ context.Context, cred entity.Credential) bool {
	f.got = cred
	return f.valid
}

type fakeComparer struct {
	comparison *entity.Comparison
	answer     entity.Answer
	err        error

	got     input.CompareRequest
	gotPath entity.ResponsePath
	calls   int
}

func (f *fakeComparer) Compare(_ context.Context, req input.CompareRequest) (*entity.Comparison, error) {
	f.calls++
	f.got = req
	return f.comparison, f.err
}

func (f *fakeComparer) Stream(context.Context, input.CompareRequest, func(entity.Answer)) error {
	return errors.New("not used")
}

func (f *fakeComparer) Single(_ context.Context, req input.CompareRequest, path entity.ResponsePath) (entity.Answer, error) {
	f.calls++
	f.got = req
	f.gotPath = path
	if path != entity.PathDirect && path != entity.PathAgent {
		return entity.Answer{}, compare.ErrUnknownPath
	}
	return f.answer, f.err
}

func newServer(c *fakeComparer, k *fakeKeys) http.Handler {
	h := NewHandler(c, k, logger.NewNop(), PageData{Model: "gpt-4.1-mini", MaxIterations: 10})
	return NewRouter(h, RouterConfig{ServiceName: "test", RequestTimeout: time.Minute})
}

func do(t *testing.T, srv http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestCompare_Success(t *testing.T) {
	c := &fakeComparer{comparison: &entity.Comparison{
		Query:  "q",
		Direct: entity.Answer{Text: "plain"},
		Agent:  entity.Answer{Text: "searched"},
	}}
	srv := newServer(c, &fakeKeys{})

	rec, body := do(t, srv, http.MethodPost, "/compare", `{"api_key":" sk-test ","user_input":"who won?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"llm_response": "plain", "agent_response": "searched"}, body)
	assert.Equal(t, entity.Credential("sk-test"), c.got.Credential)
	assert.Equal(t, "who won?", c.got.UserInput)
}

func TestCompare_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		useCase   error
		wantError string
		wantCalls int
	}{
		{name: "missing key", body: `{"user_input":"q"}`, wantError: "Invalid API key"},
		{name: "blank key", body: `{"api_key":"   ","user_input":"q"}`, wantError: "Invalid API key"},
		{name: "missing input", body: `{"api_key":"sk-test"}`, wantError: "User input is required"},
		{name: "input too long", body: `{"api_key":"sk-test","user_input":"` + strings.Repeat("a", 8001) + `"}`, wantError: "user input is too long"},
		{name: "not json", body: `api_key=sk`, wantError: "invalid JSON body"},
		{name: "probe failed", body: `{"api_key":"sk-bad","user_input":"q"}`, useCase: entity.ErrInvalidCredential, wantError: "Invalid API key", wantCalls: 1},
		{name: "whitespace input", body: `{"api_key":"sk-test","user_input":"  "}`, useCase: entity.ErrEmptyInput, wantError: "User input is required", wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeComparer{err: tt.useCase}
			rec, body := do(t, newServer(c, &fakeKeys{}), http.MethodPost, "/compare", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, tt.wantCalls, c.calls)
		})
	}
}

func TestCompare_GenerationFailureIs500(t *testing.T) {
	c := &fakeComparer{err: entity.NewProviderError(entity.PathAgent, errors.New("status 502"))}

	rec, body := do(t, newServer(c, &fakeKeys{}), http.MethodPost, "/compare", `{"api_key":"sk-test","user_input":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "agent path: status 502", body["error"])
}

func TestComparePath(t *testing.T) {
	c := &fakeComparer{answer: entity.Answer{
		Path:       entity.PathAgent,
		Text:       "searched",
		Iterations: 3,
		StopReason: entity.StopFinalAnswer,
	}}

	rec, body := do(t, newServer(c, &fakeKeys{}), http.MethodPost, "/compare/agent", `{"api_key":"sk-test","user_input":"q"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.PathAgent, c.gotPath)
	assert.Equal(t, "searched", body["response"])
	assert.Equal(t, float64(3), body["iterations"])
	assert.Equal(t, "final_answer", body["stop_reason"])
}

func TestComparePath_UnknownPath(t *testing.T) {
	rec, _ := do(t, newServer(&fakeComparer{}, &fakeKeys{}), http.MethodPost, "/compare/sideways", `{"api_key":"sk-test","user_input":"q"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateKey(t *testing.T) {
	keys := &fakeKeys{valid: true}
	srv := newServer(&fakeComparer{}, keys)

	rec, body := do(t, srv, http.MethodPost, "/validate_api_key", `{"api_key":" sk-good "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, entity.Credential("sk-good"), keys.got)

	keys.valid = false
	rec, body = do(t, srv, http.MethodPost, "/validate_api_key", `{"api_key":"sk-bad"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])

	rec, body = do(t, srv, http.MethodPost, "/validate_api_key", `garbage`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"])
}

func TestIndexAndHealth(t *testing.T) {
	srv := newServer(&fakeComparer{}, &fakeKeys{})

	rec, _ := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gpt-4.1-mini")
	assert.Contains(t, rec.Body.String(), "/compare/")

	rec, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
