package domain

import "database/sql"

// User 用户领域模型（对应 users 表）
// 注意：用户同时存在两套"活跃设备"关系，互相独立维护：
//   - ActiveDeviceID：单一指针（profile 独占激活流程维护）
//   - user_active_devices 集合（显式 deactivate 流程维护）
type User struct {
	UserID         string         `db:"user_id"`
	Name           string         `db:"name"`
	ActiveDeviceID sql.NullString `db:"active_device_id"`
}
