package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/po-stats/internal/config"
	"github.com/nixlim/po-stats/internal/engine"
)

const (
	maxBodyBytes      = 4 << 20
	defaultAuditLimit = 50

	contentTypeJSON     = "application/json"
	contentTypeProtobuf = "application/x-protobuf"
)

// HTTPReceiver serves OTLP/HTTP logs and the JSON control API.
type HTTPReceiver struct {
	cfg      config.ReceiverConfig
	b        Backend
	sl       Logger
	log      zerolog.Logger
	router   chi.Router
	server   *http.Server
	listener net.Listener
}

// NewHTTPReceiver returns a receiver backed by b. A nil sl discards the
// signal debug log.
func NewHTTPReceiver(cfg config.ReceiverConfig, b Backend, sl Logger, log zerolog.Logger) *HTTPReceiver {
	if sl == nil {
		sl = NopLogger{}
	}
	r := &HTTPReceiver{cfg: cfg, b: b, sl: sl, log: log}
	r.setupRoutes()
	return r
}

func (r *HTTPReceiver) setupRoutes() {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", r.handleHealth)
	router.Post("/v1/logs", r.handleLogs)
	router.Post("/v1/signals", r.handleSignals)
	router.Get("/v1/stats", r.handleStats)
	router.Get("/v1/audit", r.handleAudit)
	router.Get("/v1/debug", r.handleDebug)
	router.Post("/v1/reset/session", r.handleReset(engine.SignalResetSession))
	router.Post("/v1/reset/cumulative", r.handleReset(engine.SignalResetCumulative))

	r.router = router
}

// Handler returns the routed handler.
func (r *HTTPReceiver) Handler() http.Handler {
	return r.router
}

// Start binds the configured port and serves in the background.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	lis, err := listen(ctx, r.cfg.Bind, r.cfg.HTTPPort)
	if err != nil {
		return err
	}
	r.listener = lis
	r.server = &http.Server{
		Handler:      r.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Msg("http receiver stopped")
		}
	}()
	r.log.Info().Str("addr", lis.Addr().String()).Msg("http receiver listening")
	return nil
}

// Stop shuts the server down, waiting up to five seconds for active
// requests.
func (r *HTTPReceiver) Stop() {
	if r.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = r.server.Shutdown(ctx)
}

// Addr returns the bound address, or nil before Start.
func (r *HTTPReceiver) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	asJSON := isJSON(req.Header.Get("Content-Type"))
	var export collogspb.ExportLogsServiceRequest
	if asJSON {
		err = protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(body, &export)
	} else {
		err = proto.Unmarshal(body, &export)
	}
	if err != nil {
		http.Error(w, "decoding otlp logs: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := dispatchAll(req.Context(), r.b, r.sl, "http", signalsFromRequest(&export)); err != nil {
		r.dispatchFailed(w, err)
		return
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	var out []byte
	if asJSON {
		w.Header().Set("Content-Type", contentTypeJSON)
		out, err = protojson.Marshal(resp)
	} else {
		w.Header().Set("Content-Type", contentTypeProtobuf)
		out, err = proto.Marshal(resp)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type signalsResponse struct {
	Outcomes []engine.Outcome `json:"outcomes"`
}

func (r *HTTPReceiver) handleSignals(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	sigs, err := engine.ParseSignals(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcomes, err := dispatchAll(req.Context(), r.b, r.sl, "api", sigs)
	if err != nil {
		r.dispatchFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signalsResponse{Outcomes: outcomes})
}

func (r *HTTPReceiver) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.b.Snapshot())
}

func (r *HTTPReceiver) handleAudit(w http.ResponseWriter, req *http.Request) {
	limit := defaultAuditLimit
	if s := req.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, r.b.Audit(limit))
}

func (r *HTTPReceiver) handleDebug(w http.ResponseWriter, req *http.Request) {
	info, err := r.b.Debug(req.Context())
	if err != nil {
		r.dispatchFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (r *HTTPReceiver) handleReset(typ engine.SignalType) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sig := engine.Signal{Type: typ}
		out, err := r.b.Dispatch(req.Context(), sig)
		if err != nil {
			r.dispatchFailed(w, err)
			return
		}
		r.sl.LogSignal("api", sig, out)
		writeJSON(w, http.StatusOK, r.b.Snapshot())
	}
}

func (r *HTTPReceiver) dispatchFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrLoopClosed) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	r.log.Warn().Err(err).Msg("dispatch aborted")
	writeError(w, http.StatusRequestTimeout, err)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == contentTypeJSON
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
