package domain

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// 设备状态（devices 表 status 列）
const (
	StatusInactive    = "inactive"
	StatusActive      = "active"
	StatusMaintenance = "maintenance"
)

// 设备 ID 格式：4 位数字 + '-' + 12 位十六进制（统一存大写）
// 例：0057-00A1B2C3D4E5
var deviceIDPattern = regexp.MustCompile(`^[0-9]{4}-[0-9A-F]{12}$`)

// NormalizeDeviceID 大写归一化并校验格式
func NormalizeDeviceID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !deviceIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: invalid device id %q", ErrValidation, id)
	}
	return id, nil
}

// Device 设备领域模型（对应 devices 表）
type Device struct {
	DeviceID     string `db:"device_id"` // 外部设备编码，NOT NULL
	DeviceType   string `db:"device_type"`
	Manufacturer string `db:"manufacturer"`

	Status string `db:"status"` // NOT NULL, default 'inactive'

	// 绑定关系（均可为空）
	ProfileID sql.NullString `db:"profile_id"`
	UserID    sql.NullString `db:"user_id"`

	LastActiveAt    sql.NullTime   `db:"last_active_at"`
	FirmwareVersion sql.NullString `db:"firmware_version"`
	ValidUntil      sql.NullTime   `db:"valid_until"`
	Location        sql.NullString `db:"location"`
	DeviceModelID   sql.NullString `db:"device_model_id"`
	ProfileVersion  sql.NullString `db:"profile_version"`

	CreatedAt time.Time `db:"created_at"`
}

// ToJSON 转换为JSON格式（用于HTTP响应）
func (d *Device) ToJSON() map[string]any {
	m := map[string]any{
		"deviceId":     d.DeviceID,
		"deviceType":   d.DeviceType,
		"manufacturer": d.Manufacturer,
		"status":       d.Status,
	}
	if d.ProfileID.Valid {
		m["profileId"] = d.ProfileID.String
	} else {
		m["profileId"] = nil
	}
	if d.UserID.Valid {
		m["userId"] = d.UserID.String
	}
	if d.LastActiveAt.Valid {
		m["lastActiveAt"] = d.LastActiveAt.Time.UTC().Format(time.RFC3339)
	}
	if d.FirmwareVersion.Valid {
		m["firmwareVersion"] = d.FirmwareVersion.String
	}
	if d.ValidUntil.Valid {
		m["validity"] = d.ValidUntil.Time.UTC().Format(time.RFC3339)
	}
	if d.Location.Valid {
		m["location"] = d.Location.String
	}
	if d.DeviceModelID.Valid {
		m["deviceModelId"] = d.DeviceModelID.String
	}
	if d.ProfileVersion.Valid {
		m["profileVersion"] = d.ProfileVersion.String
	}
	return m
}
