package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/service"
)

// DeviceHandler 设备激活/管理 Handler
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *zap.Logger
}

func NewDeviceHandler(deviceService *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService, logger: logger}
}

// ServeHTTP 路由分发
// 路径格式：
//
//	POST   /device/api/v1/device/{id}/activate
//	POST   /device/api/v1/device/{id}/deactivate
//	PUT    /device/api/v1/device/{id}
//	DELETE /device/api/v1/device/{id}
//	GET    /device/api/v1/profile/{id}/devices
//	GET    /device/api/v1/profile/{id}/active-device
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/device/api/v1/device/"):
		h.dispatchDevice(w, r, strings.TrimPrefix(path, "/device/api/v1/device/"))
	case strings.HasPrefix(path, "/device/api/v1/profile/"):
		h.dispatchProfile(w, r, strings.TrimPrefix(path, "/device/api/v1/profile/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DeviceHandler) dispatchDevice(w http.ResponseWriter, r *http.Request, rest string) {
	switch {
	case strings.HasSuffix(rest, "/activate") && r.Method == http.MethodPost:
		h.Activate(w, r, strings.TrimSuffix(rest, "/activate"))
	case strings.HasSuffix(rest, "/deactivate") && r.Method == http.MethodPost:
		h.Deactivate(w, r, strings.TrimSuffix(rest, "/deactivate"))
	case !strings.Contains(rest, "/") && r.Method == http.MethodPut:
		h.Update(w, r, rest)
	case !strings.Contains(rest, "/") && r.Method == http.MethodDelete:
		h.Delete(w, r, rest)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DeviceHandler) dispatchProfile(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case strings.HasSuffix(rest, "/devices"):
		h.ProfileDevices(w, r, strings.TrimSuffix(rest, "/devices"))
	case strings.HasSuffix(rest, "/active-device"):
		h.ActiveDevice(w, r, strings.TrimSuffix(rest, "/active-device"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Activate POST /device/api/v1/device/{id}/activate {profileId}
func (h *DeviceHandler) Activate(w http.ResponseWriter, r *http.Request, deviceID string) {
	var req struct {
		ProfileID string `json:"profileId"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	result, err := h.deviceService.Activate(r.Context(), deviceID, req.ProfileID)
	if err != nil {
		h.logger.Warn("Activate failed",
			zap.String("device_id", deviceID),
			zap.String("profile_id", req.ProfileID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OkMsg(result.Message, map[string]any{
		"deviceId":  result.DeviceID,
		"profileId": result.ProfileID,
	}))
}

// Deactivate POST /device/api/v1/device/{id}/deactivate {userId}
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request, deviceID string) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.deviceService.Deactivate(r.Context(), deviceID, req.UserID); err != nil {
		h.logger.Warn("Deactivate failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// Update PUT /device/api/v1/device/{id}（白名单字段）
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request, deviceID string) {
	var fields map[string]any
	if err := readBodyJSON(r, 1<<18, &fields); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	d, err := h.deviceService.Update(r.Context(), deviceID, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d.ToJSON()))
}

// Delete DELETE /device/api/v1/device/{id}
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request, deviceID string) {
	if err := h.deviceService.Delete(r.Context(), deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ProfileDevices GET /device/api/v1/profile/{id}/devices
func (h *DeviceHandler) ProfileDevices(w http.ResponseWriter, r *http.Request, profileID string) {
	items, err := h.deviceService.ProfileDevices(r.Context(), profileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// ActiveDevice GET /device/api/v1/profile/{id}/active-device
func (h *DeviceHandler) ActiveDevice(w http.ResponseWriter, r *http.Request, profileID string) {
	deviceID, err := h.deviceService.ActiveDevice(r.Context(), profileID)
	if err != nil {
		writeError(w, err)
		return
	}
	var result any
	if deviceID != "" {
		result = deviceID
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deviceId": result}))
}
