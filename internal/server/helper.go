package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/sirupsen/logrus"
)

const (
	LogFieldRequestID   = "requestId"
	LogFieldHTTPRequest = "httpRequest"
	LogFieldKind        = "kind"
	LogFieldPlugin      = "plugin"
)

const apiPrefix = "/api/v1/"

// kindFromRequest returns the add-on kind addressed by an API path, or ""
// outside of the plugin and theme routes.
func kindFromRequest(r *http.Request) registry.Kind {
	rest, ok := strings.CutPrefix(r.URL.Path, apiPrefix)
	if !ok {
		return ""
	}
	collection, _, _ := strings.Cut(rest, "/")
	switch collection {
	case "plugins":
		return registry.KindPlugin
	case "themes":
		return registry.KindTheme
	}
	return ""
}

func (s *Server) setContentTypeJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

func (s *Server) writeJSON(w http.ResponseWriter, d any) {
	s.setContentTypeJSON(w)
	if err := json.NewEncoder(w).Encode(d); err != nil {
		s.log.WithField("op", "encode").Error(err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, statusCode int, err error, alternativeMessage ...string) {
	errMsg := err.Error()
	s.requestLogger(r, statusCode).Errorf("error: %s", errMsg)

	s.setContentTypeJSON(w)
	w.WriteHeader(statusCode)

	if len(alternativeMessage) > 0 {
		errMsg = strings.Join(alternativeMessage, " ")
	}
	s.writeJSON(w, map[string]string{"error": errMsg})
}

// requestLogger tags log lines with the request and, on plugin and theme
// routes, the addressed kind and plugin id. A status is added when given.
func (s *Server) requestLogger(r *http.Request, status ...int) *logrus.Entry {
	httpRequest := map[string]any{
		"requestMethod": r.Method,
		"requestUrl":    r.URL.EscapedPath(),
	}
	if len(status) > 0 {
		httpRequest["status"] = status[0]
	}
	fields := logrus.Fields{
		LogFieldRequestID:   middleware.GetReqID(r.Context()),
		LogFieldHTTPRequest: httpRequest,
	}
	if kind := kindFromRequest(r); kind != "" {
		fields[LogFieldKind] = kind
	}
	if chi.RouteContext(r.Context()) != nil {
		if id := chi.URLParam(r, "plugin"); id != "" {
			fields[LogFieldPlugin] = id
		}
	}
	return s.log.WithFields(fields)
}
