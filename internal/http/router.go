package httpapi

import (
	"net/http"

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

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterIngestRoutes 遥测入口
func (r *Router) RegisterIngestRoutes(h *IngestHandler) {
	r.Handle("/data/api/v1/vitals/ingest", h.Ingest)
}

// RegisterTelemetryRoutes 记录查询
func (r *Router) RegisterTelemetryRoutes(h *TelemetryHandler) {
	r.Handle("/data/api/v1/vitals/", h.Query)
}

// RegisterDeviceRoutes 激活状态机与设备操作
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.HandleHandler("/device/api/v1/device/", h)
	r.HandleHandler("/device/api/v1/profile/", h)
}

// RegisterAdminRoutes 管理端设备清单
func (r *Router) RegisterAdminRoutes(h *AdminDevicesHandler) {
	r.HandleHandler("/admin/api/v1/devices", h)
	r.HandleHandler("/admin/api/v1/devices/", h)
}
