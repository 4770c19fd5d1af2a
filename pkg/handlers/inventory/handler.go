package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/de-tools/inventory-atlas/pkg/adapters"
	"github.com/de-tools/inventory-atlas/pkg/models/api"
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
	"github.com/de-tools/inventory-atlas/pkg/services/accuracy"
	"github.com/de-tools/inventory-atlas/pkg/services/billing"
	"github.com/de-tools/inventory-atlas/pkg/services/workflow"
	"github.com/de-tools/inventory-atlas/pkg/store/snapshot"
)

type Reconciler interface {
	Reconcile(ctx context.Context, runID string, bill domain.ActualBill) (domain.AccuracyReport, error)
	ReconcileFromProvider(ctx context.Context, runID string, period domain.TimePeriod) (domain.AccuracyReport, error)
	Reports(ctx context.Context, runID string) ([]domain.AccuracyReport, error)
}

type Handler struct {
	controller workflow.Controller
	snapshots  snapshot.Store
	reconciler Reconciler
}

func NewHandler(controller workflow.Controller, snapshots snapshot.Store, reconciler Reconciler) *Handler {
	return &Handler{
		controller: controller,
		snapshots:  snapshots,
		reconciler: reconciler,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/connections/{connection}/sync", h.StartSync)
	r.Get("/connections/{connection}/snapshots", h.ListSnapshots)
	r.Get("/connections/{connection}/snapshots/latest", h.GetLatestSnapshot)
	r.Get("/connections/{connection}/snapshots/latest/diff", h.GetLatestDiff)
	r.Get("/runs/{run}", h.GetRun)
	r.Delete("/runs/{run}", h.CancelRun)
	r.Get("/snapshots/{run}", h.GetSnapshot)
	r.Get("/snapshots/{run}/accuracy", h.ListAccuracy)
	r.Post("/snapshots/{run}/accuracy", h.Reconcile)
}

func (h *Handler) StartSync(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connection")

	handle, err := h.controller.RunSync(r.Context(), connectionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, api.SyncResponse{
		RunID:        handle.RunID,
		ConnectionID: handle.ConnectionID,
	})
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.controller.Status(r.Context(), chi.URLParam(r, "run"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapRunDomainToApi(run))
}

func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Cancel(r.Context(), chi.URLParam(r, "run")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	headers, err := h.snapshots.List(r.Context(), chi.URLParam(r, "connection"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response := make([]api.SnapshotSummary, 0, len(headers))
	for _, s := range headers {
		response = append(response, adapters.MapSnapshotDomainToApiSummary(s))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Latest(r.Context(), chi.URLParam(r, "connection"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapSnapshotDomainToApi(snap, withExtensions(r)))
}

func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(r.Context(), chi.URLParam(r, "run"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapSnapshotDomainToApi(snap, withExtensions(r)))
}

func (h *Handler) GetLatestDiff(w http.ResponseWriter, r *http.Request) {
	delta, err := workflow.LatestDiff(r.Context(), h.snapshots, chi.URLParam(r, "connection"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapDeltaDomainToApi(delta))
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run")

	var req api.AccuracyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, api.Error{Code: api.CodeInvalidRequest, Message: "malformed request body"})
		return
	}

	var (
		report domain.AccuracyReport
		err    error
	)
	if req.FromProvider {
		period, perr := adapters.ParsePeriod(req.From, req.To)
		if perr != nil {
			writeJSON(w, r, http.StatusBadRequest, api.Error{Code: api.CodeInvalidRequest, Message: perr.Error()})
			return
		}
		report, err = h.reconciler.ReconcileFromProvider(r.Context(), runID, period)
	} else {
		bill, perr := adapters.MapApiAccuracyRequestToDomain(req)
		if perr != nil {
			writeJSON(w, r, http.StatusBadRequest, api.Error{Code: api.CodeInvalidRequest, Message: perr.Error()})
			return
		}
		report, err = h.reconciler.Reconcile(r.Context(), runID, bill)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, adapters.MapAccuracyDomainToApi(report))
}

func (h *Handler) ListAccuracy(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reconciler.Reports(r.Context(), chi.URLParam(r, "run"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response := make([]api.AccuracyReport, 0, len(reports))
	for _, report := range reports {
		response = append(response, adapters.MapAccuracyDomainToApi(report))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func withExtensions(r *http.Request) bool {
	return r.URL.Query().Get("extensions") == "true"
}

// writeError maps service errors to status codes and machine-readable codes.
// Unclassified errors are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusInternalServerError, api.Error{Code: api.CodeInternal, Message: "internal error"}

	switch {
	case errors.Is(err, workflow.ErrConcurrentRun):
		status, body = http.StatusConflict, api.Error{Code: api.CodeConcurrentRunRejected, Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownConnection),
		errors.Is(err, snapshot.ErrNotFound),
		errors.Is(err, workflow.ErrRunNotActive):
		status, body = http.StatusNotFound, api.Error{Code: api.CodeNotFound, Message: err.Error()}
	case errors.Is(err, accuracy.ErrInvalidActual):
		status, body = http.StatusUnprocessableEntity, api.Error{Code: api.CodeInvalidActual, Message: err.Error()}
	case errors.Is(err, accuracy.ErrCurrencyMismatch):
		status, body = http.StatusUnprocessableEntity, api.Error{Code: api.CodeCurrencyMismatch, Message: err.Error()}
	case errors.Is(err, billing.ErrUnsupported):
		status, body = http.StatusBadRequest, api.Error{Code: api.CodeInvalidRequest, Message: err.Error()}
	case providers.IsCategory(err, providers.CategoryAuthentication):
		status, body = http.StatusBadGateway, api.Error{Code: api.CodeAuthenticationFailure, Message: err.Error()}
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, r, status, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
