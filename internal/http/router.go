package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterWebhookRoutes 注册 EMR FHIR webhook 路由
func (r *Router) RegisterWebhookRoutes(h *WebhookHandler) {
	r.Handle("/core/api/v1/fhir/webhook", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HandleFhirWebhook(w, req)
	})
}

// RegisterConsentRoutes 注册同意账本路由
func (r *Router) RegisterConsentRoutes(h *ConsentHandler) {
	r.Handle("/core/api/v1/consent", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.RecordConsent(w, req)
		case http.MethodGet:
			h.GetConsent(w, req)
		case http.MethodDelete:
			h.RevokeConsent(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterCaseRoutes 注册病例路由
func (r *Router) RegisterCaseRoutes(h *CaseHandler) {
	// cases/{id} 和 cases/{id}/publish
	r.Handle("/core/api/v1/cases/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/core/api/v1/cases/")

		switch {
		case strings.HasSuffix(rest, "/publish") && req.Method == http.MethodPost:
			caseID := strings.TrimSuffix(rest, "/publish")
			if caseID == "" || strings.Contains(caseID, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			h.PublishCase(w, req, caseID)
		case req.Method == http.MethodGet:
			if rest == "" || strings.Contains(rest, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			h.GetCase(w, req, rest)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterRweRoutes 注册 B2B 查询路由
func (r *Router) RegisterRweRoutes(h *RweQueryHandler) {
	r.Handle("/rwe/api/v1/query", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HandleQuery(w, req)
	})

	// queries/{id} 和 queries/{id}/export
	r.Handle("/rwe/api/v1/queries/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(req.URL.Path, "/rwe/api/v1/queries/")

		switch {
		case strings.HasSuffix(rest, "/export"):
			queryID := strings.TrimSuffix(rest, "/export")
			if queryID == "" || strings.Contains(queryID, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			h.ExportQuery(w, req, queryID)
		default:
			if rest == "" || strings.Contains(rest, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			h.GetQuery(w, req, rest)
		}
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
