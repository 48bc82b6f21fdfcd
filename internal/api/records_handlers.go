package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/preinstall/internal/domain"
)

// RecordsStore is the read side of saved provisioning records
type RecordsStore interface {
	ListRecords(ctx context.Context) ([]domain.ProvisioningRecord, error)
	GetRecord(ctx context.Context, id int64) (domain.ProvisioningRecord, error)
	GetRecordsByHostname(ctx context.Context, hostname string) ([]domain.ProvisioningRecord, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// RecordsHandler serves saved records
type RecordsHandler struct {
	store  RecordsStore
	logger *zap.SugaredLogger
}

// NewRecordsHandler creates a handler over store
func NewRecordsHandler(store RecordsStore, logger *zap.SugaredLogger) *RecordsHandler {
	return &RecordsHandler{store: store, logger: logger}
}

// ListRecordsHandler handles GET /api/v0/records
func (h *RecordsHandler) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListRecords(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []domain.ProvisioningRecord{}
	}
	writeJSON(w, h.logger, http.StatusOK, records)
}

// GetRecordHandler handles GET /api/v0/records/{id}
func (h *RecordsHandler) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.GetRecord(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rec)
}

// DeleteRecordHandler handles DELETE /api/v0/records/{id}
func (h *RecordsHandler) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteRecord(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecordsByHostnameHandler handles GET /api/v0/records/hostname/{hostname}
func (h *RecordsHandler) GetRecordsByHostnameHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.GetRecordsByHostname(r.Context(), chi.URLParam(r, "hostname"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []domain.ProvisioningRecord{}
	}
	writeJSON(w, h.logger, http.StatusOK, records)
}

func (h *RecordsHandler) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid record ID")
		return 0, false
	}
	return id, true
}
