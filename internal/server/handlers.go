package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/obsidian-tools/plugin-manager/internal/updater"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

func (s *Server) listInstalled(kind registry.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.app.Installed(r.Context(), kind)
		if err != nil {
			s.writeJSONError(w, r, http.StatusInternalServerError, err, fmt.Sprintf("could not list %ss", kind))
			return
		}
		s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), records)
		s.writeJSON(w, records)
	}
}

func (s *Server) findInstalledPlugin(ctx context.Context, id string) (*registry.PluginRecord, error) {
	records, err := s.app.Installed(ctx, registry.KindPlugin)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, nil
}

// pluginFromRequest writes an error response and returns nil if the plugin
// of the request is not installed.
func (s *Server) pluginFromRequest(w http.ResponseWriter, r *http.Request) *registry.PluginRecord {
	pluginID := chi.URLParam(r, "plugin")
	if pluginID == "" {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("plugin id is missing"))
		return nil
	}
	record, err := s.findInstalledPlugin(r.Context(), pluginID)
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not list plugins")
		return nil
	}
	if record == nil {
		s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("plugin %s is not installed", pluginID))
		return nil
	}
	return record
}

func (s *Server) checkPlugin(w http.ResponseWriter, r *http.Request) {
	record := s.pluginFromRequest(w, r)
	if record == nil {
		return
	}
	res := s.app.Plugins.Check(r.Context(), record)
	s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), res)
	s.writeJSON(w, res)
}

func (s *Server) updateAll(kind registry.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.app.Installed(r.Context(), kind)
		if err != nil {
			s.writeJSONError(w, r, http.StatusInternalServerError, err, fmt.Sprintf("could not list %ss", kind))
			return
		}
		records, err = updater.Filter(records, r.URL.Query()["filter"])
		if err != nil {
			s.writeJSONError(w, r, http.StatusBadRequest, err)
			return
		}

		err = s.updateSemaphore.Acquire(r.Context(), 1)
		if err != nil {
			s.writeJSONError(w, r, http.StatusTooManyRequests, err, "could not acquire semaphore")
			return
		}
		defer s.updateSemaphore.Release(1)

		s.requestLogger(r).Warnf("updating %d %ss...", len(records), kind)
		results := s.app.Updater(kind).UpdateAll(r.Context(), records)

		s.invalidateByPrefix(s.getCacheKeyPrefixFromKind(kind))
		s.writeJSON(w, results)
	}
}

func (s *Server) updatePlugin(w http.ResponseWriter, r *http.Request) {
	record := s.pluginFromRequest(w, r)
	if record == nil {
		return
	}
	s.requestLogger(r).Infof("updating plugin %s@%s", record.ID, record.Version)

	err := s.updateSemaphore.Acquire(r.Context(), 1)
	if err != nil {
		s.writeJSONError(w, r, http.StatusTooManyRequests, err, "could not acquire semaphore")
		return
	}
	defer s.updateSemaphore.Release(1)

	res := s.app.Plugins.Update(r.Context(), record)
	s.invalidateByPrefix(s.getCacheKeyPrefixFromKind(registry.KindPlugin))
	s.writeJSON(w, res)
}

func (s *Server) setPluginEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record := s.pluginFromRequest(w, r)
		if record == nil {
			return
		}
		if err := s.app.Vault.SetPluginEnabled(r.Context(), record.ID, enabled); err != nil {
			s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not save enabled plugins")
			return
		}
		s.invalidateByPrefix(s.getCacheKeyPrefixFromKind(registry.KindPlugin))
		s.writeJSON(w, map[string]bool{"ok": true, "enabled": enabled})
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.app.History == nil {
		s.writeJSONError(w, r, http.StatusNotImplemented, fmt.Errorf("history is disabled"))
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 0 {
			s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", l))
			return
		}
	}
	results, err := s.app.History.List(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not list history")
		return
	}
	s.writeJSON(w, results)
}
