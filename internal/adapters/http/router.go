package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/config"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
	"github.com/kirillkom/loan-decision-engine/internal/observability/metrics"
)

const serviceName = "api"

// Services groups the inbound ports served over HTTP. Nil members answer 503.
type Services struct {
	Applications ports.ApplicationService
	Documents    ports.DocumentUploader
	Evaluations  ports.EvaluationRequester
	Overrides    ports.DecisionOverrider
	Quotes       ports.RiskQuoter
	References   ports.ReferenceReloader
}

type Router struct {
	svc Services

	adminTokens    map[string]string
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	inFlightWait   time.Duration
	uploadMaxBytes int64

	metrics *metrics.HTTPServerMetrics
}

type routeSpec struct {
	method  string
	path    string
	handler http.HandlerFunc
}

func NewRouter(cfg config.Config, svc Services) *Router {
	uploadMaxBytes := cfg.UploadMaxBytes
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 10 << 20
	}
	return &Router{
		svc:            svc,
		adminTokens:    cfg.AdminTokens,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		inFlightWait:   time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		uploadMaxBytes: uploadMaxBytes,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) routes() []routeSpec {
	return []routeSpec{
		{http.MethodGet, "/healthz", rt.healthz},
		{http.MethodGet, "/openapi.json", rt.openAPIDocument},
		{http.MethodPost, "/v1/risk/score", rt.scoreRisk},
		{http.MethodPost, "/v1/applications", rt.createApplication},
		{http.MethodGet, "/v1/applications/{id}", rt.getApplication},
		{http.MethodPut, "/v1/applications/{id}/profile", rt.resubmitProfile},
		{http.MethodDelete, "/v1/applications/{id}", rt.admin(rt.deleteApplication)},
		{http.MethodPost, "/v1/applications/{id}/documents", rt.uploadDocument},
		{http.MethodGet, "/v1/applications/{id}/documents", rt.listDocuments},
		{http.MethodPost, "/v1/applications/{id}/evaluate", rt.requestEvaluation},
		{http.MethodPost, "/v1/applications/{id}/override", rt.admin(rt.overrideDecision)},
		{http.MethodGet, "/v1/applications/{id}/audit", rt.admin(rt.listAudit)},
		{http.MethodPost, "/v1/admin/references/reload", rt.admin(rt.reloadReferences)},
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, r := range rt.routes() {
		mux.HandleFunc(r.method+" "+r.path, r.handler)
	}
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.inFlightWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		// Nothing below this point may replace *http.Request, or the mux pattern
		// never reaches the metric labels.
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
