package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
)

// TelemetryHandler 体征记录范围查询与汇总统计
type TelemetryHandler struct {
	telemetry repository.TelemetryRepository
	logger    *zap.Logger
}

func NewTelemetryHandler(telemetry repository.TelemetryRepository, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry, logger: logger}
}

// Query GET /data/api/v1/vitals/{deviceId}?from=RFC3339&to=RFC3339[&summary=1][&limit=N]
func (h *TelemetryHandler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/data/api/v1/vitals/")
	if rawID == "" || strings.Contains(rawID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID, err := domain.NormalizeDeviceID(rawID)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	from, to, err := parseTimeRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}

	if q.Get("summary") == "1" {
		summary, err := h.telemetry.Summary(r.Context(), deviceID, from, to)
		if err != nil {
			h.logger.Error("Summary query failed", zap.String("device_id", deviceID), zap.Error(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(summary))
		return
	}

	limit := parseInt(q.Get("limit"), 1000)
	records, err := h.telemetry.QueryRange(r.Context(), deviceID, from, to, limit)
	if err != nil {
		h.logger.Error("Range query failed", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": records,
		"count": len(records),
	}))
}

func parseTimeRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	var err error
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return time.Time{}, time.Time{}, domainValidation("invalid from timestamp")
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return time.Time{}, time.Time{}, domainValidation("invalid to timestamp")
		}
	}
	return from, to, nil
}
