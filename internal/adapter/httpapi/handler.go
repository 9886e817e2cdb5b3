package httpapi

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"reflect"
	"strings"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"
	"agent-compare/internal/usecase/compare"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	errBadBody      = errors.New("invalid JSON body")
	errInputTooLong = errors.New("user input is too long")
)

type validateKeyRequest struct {
	APIKey string `json:"api_key"`
}

type validateKeyResponse struct {
	Valid bool `json:"valid"`
}

type compareRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	UserInput string `json:"user_input" validate:"required,max=8000"`
}

type compareResponse struct {
	LLMResponse   string `json:"llm_response"`
	AgentResponse string `json:"agent_response"`
}

type singleResponse struct {
	Path       entity.ResponsePath `json:"path"`
	Response   string              `json:"response"`
	Iterations int                 `json:"iterations,omitempty"`
	StopReason entity.StopReason   `json:"stop_reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type PageData struct {
	Model         string
	MaxIterations int
}

type Handler struct {
	comparer input.Comparer
	keys     input.KeyValidator
	logger   output.LoggerPort
	validate *validator.Validate
	page     *template.Template
	pageData PageData
}

func NewHandler(comparer input.Comparer, keys input.KeyValidator, logger output.LoggerPort, data PageData) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		comparer: comparer,
		keys:     keys,
		logger:   logger,
		validate: v,
		page:     template.Must(template.ParseFS(templatesFS, "templates/index.html")),
		pageData: data,
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, h.pageData); err != nil {
		h.logger.Error("Render index failed", "error", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateKey always answers 200; an unreadable body is an invalid key.
func (h *Handler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusOK, validateKeyResponse{Valid: false})
		return
	}
	valid := h.keys.Validate(r.Context(), entity.Credential(strings.TrimSpace(req.APIKey)))
	writeJSON(w, http.StatusOK, validateKeyResponse{Valid: valid})
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	req, err := h.readCompareRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.comparer.Compare(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, compareResponse{
		LLMResponse:   result.Direct.Text,
		AgentResponse: result.Agent.Text,
	})
}

// ComparePath serves one pane so the page can show each answer as it lands.
func (h *Handler) ComparePath(w http.ResponseWriter, r *http.Request) {
	path := entity.ResponsePath(chi.URLParam(r, "path"))

	req, err := h.readCompareRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	answer, err := h.comparer.Single(r.Context(), req, path)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, singleResponse{
		Path:       answer.Path,
		Response:   answer.Text,
		Iterations: answer.Iterations,
		StopReason: answer.StopReason,
	})
}

func (h *Handler) readCompareRequest(r *http.Request) (input.CompareRequest, error) {
	var body compareRequest
	if err := decode(r, &body); err != nil {
		return input.CompareRequest{}, errBadBody
	}
	body.APIKey = strings.TrimSpace(body.APIKey)

	if err := h.validate.Struct(body); err != nil {
		return input.CompareRequest{}, validationError(err)
	}
	return input.CompareRequest{
		Credential: entity.Credential(body.APIKey),
		UserInput:  body.UserInput,
	}, nil
}

// validationError maps the first failed field onto the domain error the
// use case would have raised for it.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	switch {
	case fe.Field() == "api_key":
		return entity.ErrInvalidCredential
	case fe.Field() == "user_input" && fe.Tag() == "max":
		return errInputTooLong
	default:
		return entity.ErrEmptyInput
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, err.Error()
	switch {
	case errors.Is(err, entity.ErrInvalidCredential):
		status, msg = http.StatusBadRequest, "Invalid API key"
	case errors.Is(err, entity.ErrEmptyInput):
		status, msg = http.StatusBadRequest, "User input is required"
	case errors.Is(err, errInputTooLong), errors.Is(err, errBadBody):
		status = http.StatusBadRequest
	case errors.Is(err, compare.ErrUnknownPath):
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errBadBody
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
