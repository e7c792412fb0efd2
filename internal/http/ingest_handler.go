package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/service"
)

// IngestHandler 请求通道的遥测入口（与 MQTT 通道共用管道）
type IngestHandler struct {
	pipeline *service.PipelineService
	logger   *zap.Logger
}

func NewIngestHandler(pipeline *service.PipelineService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, logger: logger}
}

// IngestRequest {deviceId, type, data} + 可选 line/lines
type IngestRequest struct {
	DeviceID string         `json:"deviceId"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Line     string         `json:"line,omitempty"`
	Lines    []string       `json:"lines,omitempty"`
}

// Ingest POST /data/api/v1/vitals/ingest
// 请求通道有响应通道：规则丢弃仍返回成功（静默丢弃），
// NotFound/Validation/存储错误同步返回给调用方。
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	payload := req.Data
	if payload == nil {
		payload = map[string]any{}
	}
	if req.Line != "" {
		payload["line"] = req.Line
	}
	if len(req.Lines) > 0 {
		payload["lines"] = req.Lines
	}

	if err := h.pipeline.Ingest(r.Context(), req.DeviceID, req.Type, payload); err != nil {
		h.logger.Error("Ingest failed",
			zap.String("device_id", req.DeviceID),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}
