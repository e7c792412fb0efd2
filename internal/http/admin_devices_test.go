package httpapi_test

import (
	"bytes"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
	httpapi "github.com/iammayankpratapsingh/dozemate-backend/internal/http"
)

func TestAdminList(t *testing.T) {
	env := newTestEnv(t, []*domain.Device{bandDevice()}, nil)

	rec, envelope := env.do(t, http.MethodGet, "/admin/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	result := envelope["result"].(map[string]any)
	require.Equal(t, float64(1), result["total"])
	items := result["items"].([]any)
	require.Len(t, items, 1)
}

func TestAdminGet(t *testing.T) {
	env := newTestEnv(t, []*domain.Device{bandDevice()}, nil)

	rec, envelope := env.do(t, http.MethodGet, "/admin/api/v1/devices/"+testDevice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := envelope["result"].(map[string]any)
	require.Equal(t, testDevice, result["deviceId"])

	rec, _ = env.do(t, http.MethodGet, "/admin/api/v1/devices/0009-000000000009", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreate_ExplicitID(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec, envelope := env.do(t, http.MethodPost, "/admin/api/v1/devices", map[string]any{
		"deviceId":   "0050-000000000001",
		"deviceType": "SleepBand",
		"location":   "ward-3",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := envelope["result"].(map[string]any)
	require.Equal(t, "0050-000000000001", result["deviceId"])
	require.Equal(t, "inactive", result["status"])

	// 重复创建 => 409
	rec, _ = env.do(t, http.MethodPost, "/admin/api/v1/devices", map[string]any{
		"deviceId":   "0050-000000000001",
		"deviceType": "SleepBand",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminCreate_PrefixAllocation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec, envelope := env.do(t, http.MethodPost, "/admin/api/v1/devices", map[string]any{
		"prefix":     "0051",
		"count":      3,
		"deviceType": "SleepPad",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	result := envelope["result"].(map[string]any)
	ids := result["deviceIds"].([]any)
	require.Equal(t, []any{
		"0051-000000000000",
		"0051-000000000001",
		"0051-000000000002",
	}, ids)
}

func TestAdminExport(t *testing.T) {
	d := bandDevice()
	d.ProfileID = sql.NullString{String: "profile-x", Valid: true}
	d.LastActiveAt = sql.NullTime{Time: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Valid: true}
	env := newTestEnv(t, []*domain.Device{d}, nil)

	rec, _ := env.do(t, http.MethodGet, "/admin/api/v1/devices/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Devices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, httpapi.DeviceExportHeader, rows[0])
	require.Equal(t, testDevice, rows[1][0])
	require.Equal(t, "SleepBand", rows[1][1])
	require.Equal(t, "profile-x", rows[1][4])
	require.Equal(t, "2026-03-01T08:00:00Z", rows[1][8])
}

func TestGenerateDeviceExport_Empty(t *testing.T) {
	data, err := httpapi.GenerateDeviceExport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Devices")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
