package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/service"
)

// AdminDevicesHandler 管理端设备列表/创建/导出
type AdminDevicesHandler struct {
	deviceService *service.DeviceService
	logger        *zap.Logger
}

func NewAdminDevicesHandler(deviceService *service.DeviceService, logger *zap.Logger) *AdminDevicesHandler {
	return &AdminDevicesHandler{deviceService: deviceService, logger: logger}
}

// ServeHTTP 路由分发
func (h *AdminDevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/admin/api/v1/devices" && r.Method == http.MethodGet:
		h.List(w, r)
	case path == "/admin/api/v1/devices" && r.Method == http.MethodPost:
		h.Create(w, r)
	case path == "/admin/api/v1/devices/export" && r.Method == http.MethodGet:
		h.Export(w, r)
	case strings.HasPrefix(path, "/admin/api/v1/devices/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/admin/api/v1/devices/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Get(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// List GET /admin/api/v1/devices
func (h *AdminDevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	statuses := q["status"]
	if len(statuses) == 1 && strings.Contains(statuses[0], ",") {
		statuses = strings.Split(statuses[0], ",")
	}

	filters := repository.DeviceFilters{
		Status:        statuses,
		DeviceType:    q.Get("deviceType"),
		Manufacturer:  q.Get("manufacturer"),
		ProfileID:     q.Get("profileId"),
		SearchKeyword: q.Get("keyword"),
	}
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)

	devices, total, err := h.deviceService.ListDevices(r.Context(), filters, page, size)
	if err != nil {
		h.logger.Error("ListDevices failed", zap.Error(err))
		writeError(w, err)
		return
	}

	items := make([]map[string]any, len(devices))
	for i, d := range devices {
		items[i] = d.ToJSON()
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
	}))
}

// Create POST /admin/api/v1/devices
// 两种形态：全量指定 {deviceId, deviceType, ...}，
// 或前缀分配 {prefix, count, deviceType, ...}
func (h *AdminDevicesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID        string `json:"deviceId"`
		Prefix          string `json:"prefix"`
		Count           int    `json:"count"`
		DeviceType      string `json:"deviceType"`
		Manufacturer    string `json:"manufacturer"`
		FirmwareVersion string `json:"firmwareVersion"`
		Location        string `json:"location"`
		UserID          string `json:"userId"`
	}
	if err := readBodyJSON(r, 1<<18, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if req.Prefix != "" {
		ids, err := h.deviceService.AllocateDevices(r.Context(), req.Prefix, req.DeviceType, req.Manufacturer, req.Count)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"deviceIds": ids}))
		return
	}

	d, err := h.deviceService.CreateDevice(r.Context(), service.CreateDeviceRequest{
		DeviceID:        req.DeviceID,
		DeviceType:      req.DeviceType,
		Manufacturer:    req.Manufacturer,
		FirmwareVersion: req.FirmwareVersion,
		Location:        req.Location,
		UserID:          req.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d.ToJSON()))
}

// Get GET /admin/api/v1/devices/{id}
func (h *AdminDevicesHandler) Get(w http.ResponseWriter, r *http.Request, deviceID string) {
	d, err := h.deviceService.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d.ToJSON()))
}

// Export GET /admin/api/v1/devices/export（Excel）
func (h *AdminDevicesHandler) Export(w http.ResponseWriter, r *http.Request) {
	devices, _, err := h.deviceService.ListDevices(r.Context(), repository.DeviceFilters{}, 1, 10000)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := GenerateDeviceExport(devices)
	if err != nil {
		h.logger.Error("Device export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="devices.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
