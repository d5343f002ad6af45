package transport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/signoff/internal/approval"
	"github.com/pitabwire/signoff/internal/catalog"
	"github.com/pitabwire/signoff/internal/directory"
)

func handleCheckDeadlines(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issues, err := engine.CheckDeadlines(r.Context(), chi.URLParam(r, "workflowId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": issues})
	}
}

func handleNextActions(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actions, err := engine.NextActions(r.Context(), chi.URLParam(r, "workflowId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": actions})
	}
}

func handleRiskIndicators(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		risks, err := engine.RiskIndicators(r.Context(), chi.URLParam(r, "workflowId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": risks})
	}
}

func handleDashboard(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := engine.Dashboard(r.Context(), chi.URLParam(r, "workflowId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

func handleExportReport(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		data, err := engine.ExportReport(r.Context(), chi.URLParam(r, "workflowId"), format)
		if err != nil {
			respondError(w, r, err)
			return
		}

		contentType := "application/json; charset=utf-8"
		if f := strings.ToLower(format); f == approval.FormatYAML || f == "yml" {
			contentType = "application/yaml"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func handleListRequirements(reg *catalog.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":     reg.Snapshot(),
			"checksum": reg.Checksum(),
		})
	}
}

func handleListStakeholders(dir *directory.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"data": dir.All()})
	}
}
