// Package server implements the HTTP transport layer (SPEC_FULL.md's A2):
// chi-based JSON handlers implementing spec.md §6's route table directly
// against the RuntimeContext's orchestrator/catalog/pipeline. There is no
// gRPC/grpc-gateway hop — see DESIGN.md for why the teacher's generated
// proto layer was dropped rather than hand-faked.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/knoguchi/rag/internal/app"
	"github.com/knoguchi/rag/internal/ingestion"
	"github.com/knoguchi/rag/internal/orchestrator"
	"github.com/knoguchi/rag/internal/ragerr"
)

// Config holds HTTP server configuration.
type Config struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string
}

// Server wraps the chi router and the stdlib http.Server it serves.
type Server struct {
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger
}

// New builds the HTTP server, wiring every handler against rc.
func New(cfg Config, rc *app.RuntimeContext) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", readinessCheckHandler(rc))

	h := &handlers{rc: rc}
	router.Route("/api", func(r chi.Router) {
		r.Post("/create-brain", h.createBrain)
		r.Get("/list-brains", h.listBrains)
		r.Post("/evaluate-file", h.evaluateFile)
		r.Post("/evaluate_response", h.evaluateResponse)

		r.Route("/{brainID}", func(r chi.Router) {
			r.Post("/upload", h.upload)
			r.Get("/list-files", h.listFiles)
			r.Post("/hybrid", h.answer("hybrid", rc.Orchestrator.AnswerHybrid))
			r.Post("/sparse", h.answer("sparse", rc.Orchestrator.AnswerSparse))
			r.Post("/dense", h.answer("dense", rc.Orchestrator.AnswerDense))
			r.Post("/hyde", h.answer("hyde", rc.Orchestrator.AnswerHyDE))
			r.Post("/all", h.answerAll)
		})
	})

	return &Server{
		router: router,
		logger: logger,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Router exposes the chi router for tests that want to drive it directly
// with httptest, without starting a real listener.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving; it blocks until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

// envelope is the standard response shape every endpoint returns (spec §6):
// success responses and error responses share the same fields.
type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, StatusCode: status, Message: message, Data: data})
}

// writeError maps a ragerr.Kind to its conventional HTTP status and emits
// the envelope with success:false. Logs (not responses) carry the cause.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := ragerr.KindOf(err)
	status := kind.StatusCode()
	message := humanMessage(kind)
	logger.Error("request failed", "kind", kind.String(), "error", err)
	detail := message
	var re *ragerr.Error
	if kind != ragerr.Internal && errors.As(err, &re) {
		detail = re.Message
	}
	writeJSON(w, status, envelope{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Detail:     detail,
	})
}

func humanMessage(kind ragerr.Kind) string {
	switch kind {
	case ragerr.NotFound:
		return "not found"
	case ragerr.AlreadyExists:
		return "already exists"
	case ragerr.Unsupported:
		return "unsupported content"
	case ragerr.Transient:
		return "upstream dependency unavailable, please retry"
	case ragerr.Invalid:
		return "invalid request"
	default:
		return "internal error"
	}
}

type handlers struct {
	rc *app.RuntimeContext
}

// brainID resolves the {brainID} path parameter to a uuid.UUID.
func brainID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "brainID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ragerr.Wrap(ragerr.Invalid, "invalid brain_id", err)
	}
	return id, nil
}

func (h *handlers) createBrain(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("brain_name")
	if name == "" {
		writeError(w, h.rc.Logger, ragerr.New(ragerr.Invalid, "brain_name is required"))
		return
	}

	id, err := h.rc.Catalog.CreateBrain(r.Context(), name)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "brain created", map[string]string{"brain_id": id.String()})
}

func (h *handlers) listBrains(w http.ResponseWriter, r *http.Request) {
	brains, err := h.rc.Catalog.ListBrains(r.Context())
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	data := make([]map[string]string, len(brains))
	for i, b := range brains {
		data[i] = map[string]string{"brain_name": b.BrainName, "brain_id": b.BrainID.String()}
	}
	writeSuccess(w, http.StatusOK, "brains listed", data)
}

// maxUploadMemory bounds the in-memory portion of a multipart form; larger
// files spill to temp disk storage, handled transparently by net/http.
const maxUploadMemory = 32 << 20

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	id, err := brainID(r)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "parse multipart form", err))
		return
	}

	fileHeaders := r.MultipartForm.File["files[]"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["files"]
	}
	if len(fileHeaders) == 0 {
		writeError(w, h.rc.Logger, ragerr.New(ragerr.Invalid, "no files uploaded"))
		return
	}

	files := make([]ingestion.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "open uploaded file", err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "read uploaded file", err))
			return
		}
		files = append(files, ingestion.File{Name: fh.Filename, Bytes: data})
	}

	results, err := h.rc.Pipeline.IngestBatch(r.Context(), id, files)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}

	if h.rc.Usage != nil {
		for _, res := range results {
			if res.Success {
				_ = h.rc.Usage.RecordIngestion(r.Context(), id, 1)
			}
		}
	}

	writeSuccess(w, http.StatusOK, "files processed", results)
}

func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	id, err := brainID(r)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	files, err := h.rc.Catalog.ListFiles(r.Context(), id)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	data := make([]map[string]string, len(files))
	for i, f := range files {
		data[i] = map[string]string{"file_name": f.FileName, "file_id": f.FileID.String()}
	}
	writeSuccess(w, http.StatusOK, "files listed", data)
}

// queryRequestBody mirrors spec.md §3's QueryRequest: an empty
// selected_pdfs means no corpus filter.
type queryRequestBody struct {
	Query        string `json:"query"`
	SelectedPDFs []struct {
		FileID string `json:"file_id"`
	} `json:"selected_pdfs"`
}

func (b queryRequestBody) pdfIDs() ([]uuid.UUID, error) {
	if len(b.SelectedPDFs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(b.SelectedPDFs))
	for i, p := range b.SelectedPDFs {
		id, err := uuid.Parse(p.FileID)
		if err != nil {
			return nil, ragerr.Wrap(ragerr.Invalid, "invalid selected_pdfs[].file_id", err)
		}
		ids[i] = id
	}
	return ids, nil
}

func decodeQueryRequest(r *http.Request) (orchestrator.Request, error) {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return orchestrator.Request{}, ragerr.Wrap(ragerr.Invalid, "decode request body", err)
	}
	if body.Query == "" {
		return orchestrator.Request{}, ragerr.New(ragerr.Invalid, "query is required")
	}
	ids, err := body.pdfIDs()
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{Query: body.Query, SelectedPDFs: ids}, nil
}

type answerFunc func(ctx context.Context, brainID uuid.UUID, req orchestrator.Request) (orchestrator.Answer, error)

// answer returns a handler for one strategy's route, keyed by strategy so
// the response data uses spec §6's "{strategy}_rag_response" /
// "{strategy}_retriever_response" field names.
func (h *handlers) answer(strategy string, fn answerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := brainID(r)
		if err != nil {
			writeError(w, h.rc.Logger, err)
			return
		}
		req, err := decodeQueryRequest(r)
		if err != nil {
			writeError(w, h.rc.Logger, err)
			return
		}

		ans, err := fn(r.Context(), id, req)
		if err != nil {
			writeError(w, h.rc.Logger, err)
			return
		}
		if h.rc.Usage != nil {
			_ = h.rc.Usage.RecordQuery(r.Context(), id)
		}

		data := map[string]string{
			strategy + "_rag_response":       ans.Response,
			strategy + "_retriever_response": ans.RetrievedContext,
		}
		writeSuccess(w, http.StatusOK, "answer generated", data)
	}
}

// answerAll runs every strategy concurrently (orchestrator.AnswerAll) and
// reports each strategy's outcome independently; an individual failure
// never fails the whole request (spec §7).
func (h *handlers) answerAll(w http.ResponseWriter, r *http.Request) {
	id, err := brainID(r)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	req, err := decodeQueryRequest(r)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}

	results := h.rc.Orchestrator.AnswerAll(r.Context(), id, req)
	if h.rc.Usage != nil {
		_ = h.rc.Usage.RecordQuery(r.Context(), id)
	}

	data := make(map[string]any, len(results))
	for name, res := range results {
		if res.Err != nil {
			data[name] = map[string]string{"error": res.Err.Error(), "strategy": name}
			continue
		}
		data[name] = map[string]string{
			"rag_response":       res.Answer.Response,
			"retriever_response": res.Answer.RetrievedContext,
		}
	}
	writeSuccess(w, http.StatusOK, "all strategies run", data)
}

// evaluateFile handles the batch XLSX evaluator. The route carries no
// {brainID} path segment (spec §6), so brain_id travels as a multipart
// form field alongside the workbook.
func (h *handlers) evaluateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "parse multipart form", err))
		return
	}

	id, err := uuid.Parse(r.FormValue("brain_id"))
	if err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "invalid brain_id", err))
		return
	}

	fh, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "missing xlsx upload", err))
		return
	}
	defer fh.Close()
	xlsxBytes, err := io.ReadAll(fh)
	if err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "read xlsx upload", err))
		return
	}

	out, err := h.rc.Orchestrator.EvaluateBatch(r.Context(), id, nil, h.rc.Evaluator, xlsxBytes)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "evaluated_"+header.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// evaluateResponseBody is the single-response scoring request (spec §6's
// evaluate_response: no file, no corpus, just a context/question/answer/gt
// quadruple to score).
type evaluateResponseBody struct {
	Context     string `json:"context"`
	Query       string `json:"query"`
	Response    string `json:"response"`
	GroundTruth string `json:"ground_truth"`
}

func (h *handlers) evaluateResponse(w http.ResponseWriter, r *http.Request) {
	var body evaluateResponseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.rc.Logger, ragerr.Wrap(ragerr.Invalid, "decode request body", err))
		return
	}
	if body.Query == "" || body.Response == "" {
		writeError(w, h.rc.Logger, ragerr.New(ragerr.Invalid, "query and response are required"))
		return
	}

	llmScore, retrieverScore, err := h.rc.Evaluator.Evaluate(r.Context(), body.Context, body.Query, body.Response, body.GroundTruth)
	if err != nil {
		writeError(w, h.rc.Logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "evaluated", map[string]string{
		"llm_eval":       llmScore,
		"retriever_eval": retrieverScore,
	})
}

func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false
			if len(allowedOrigins) == 0 {
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// readinessCheckHandler reports ready only once the vector store answers a
// collection-existence probe, so a load balancer can hold traffic until
// Qdrant is actually reachable.
func readinessCheckHandler(rc *app.RuntimeContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := rc.Store.CollectionExists(r.Context(), rc.Config.RegistryCollection); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "detail": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
