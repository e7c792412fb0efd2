package service

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
)

// VendorNotifier 厂家云端同步（best-effort，失败只记日志）
type VendorNotifier interface {
	NotifyActivation(ctx context.Context, deviceID, profileID string) error
	NotifyDeactivation(ctx context.Context, deviceID string) error
}

// CacheInvalidator 设备变更后失效查询缓存（可选）
type CacheInvalidator interface {
	Invalidate(ctx context.Context, deviceID string)
}

// DeviceService 设备激活状态机与管理操作。
// profile 独占激活（先全停用、后激活一台）按 profile 串行化。
type DeviceService struct {
	devices repository.DevicesRepository
	users   repository.UsersRepository
	vendor  VendorNotifier   // 可为 nil
	cache   CacheInvalidator // 可为 nil
	logger  *zap.Logger

	// 按 profile 的互斥锁（锁数量以 profile 总量为界，不回收）
	lockMu       sync.Mutex
	profileLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewDeviceService 创建 DeviceService 实例
func NewDeviceService(
	devices repository.DevicesRepository,
	users repository.UsersRepository,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		devices:      devices,
		users:        users,
		logger:       logger,
		profileLocks: make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

// SetVendorNotifier 配置厂家云端同步（可选）
func (s *DeviceService) SetVendorNotifier(v VendorNotifier) { s.vendor = v }

// SetCacheInvalidator 配置设备缓存失效（可选）
func (s *DeviceService) SetCacheInvalidator(c CacheInvalidator) { s.cache = c }

func (s *DeviceService) invalidate(ctx context.Context, deviceID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, deviceID)
	}
}

// SetClock 注入时钟（测试用）
func (s *DeviceService) SetClock(now func() time.Time) { s.now = now }

func (s *DeviceService) lockForProfile(profileID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.profileLocks[profileID]
	if !ok {
		mu = &sync.Mutex{}
		s.profileLocks[profileID] = mu
	}
	return mu
}

// ActivateResult 激活结果
type ActivateResult struct {
	DeviceID  string
	ProfileID string
	Message   string
}

// Activate 把设备独占激活到 profile：
//   - 设备已在其它 profile 下 active => Conflict（消息带冲突 profile）
//   - 否则：同一逻辑步骤内停用该 profile 的其余设备、激活目标设备、
//     绑定 profile、刷新 last_active，并把属主用户的活跃设备指针指向它。
//
// 同一 profile 的并发 Activate 串行执行。
func (s *DeviceService) Activate(ctx context.Context, deviceID, profileID string) (*ActivateResult, error) {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return nil, err
	}
	if profileID == "" {
		return nil, fmt.Errorf("%w: profileId is required", domain.ErrValidation)
	}

	mu := s.lockForProfile(profileID)
	mu.Lock()
	defer mu.Unlock()

	d, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Status == domain.StatusActive && d.ProfileID.Valid && d.ProfileID.String != profileID {
		return nil, fmt.Errorf("%w: device %s is already active for profile %s",
			domain.ErrConflict, id, d.ProfileID.String)
	}

	now := s.now()
	if err := s.devices.ActivateExclusive(ctx, id, profileID, now); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	if d.UserID.Valid {
		if err := s.users.SetActiveDevice(ctx, d.UserID.String, id); err != nil {
			return nil, fmt.Errorf("failed to update active device pointer for user %s: %w",
				d.UserID.String, err)
		}
		if err := s.users.AddActiveDevice(ctx, d.UserID.String, id); err != nil {
			return nil, fmt.Errorf("failed to add device %s to active set of user %s: %w",
				id, d.UserID.String, err)
		}
	}

	if s.vendor != nil {
		if err := s.vendor.NotifyActivation(ctx, id, profileID); err != nil {
			s.logger.Warn("Vendor activation sync failed",
				zap.String("device_id", id),
				zap.String("profile_id", profileID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Device activated",
		zap.String("device_id", id),
		zap.String("profile_id", profileID),
	)
	return &ActivateResult{
		DeviceID:  id,
		ProfileID: profileID,
		Message:   fmt.Sprintf("device %s activated for profile %s", id, profileID),
	}, nil
}

// Deactivate 停用设备：要求请求用户是设备属主；
// 设备置 inactive 并从用户的活跃设备集合移除。
func (s *DeviceService) Deactivate(ctx context.Context, deviceID, userID string) error {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return err
	}

	d, err := s.devices.Get(ctx, id)
	if err != nil {
		return err
	}
	if !d.UserID.Valid || d.UserID.String != userID {
		return fmt.Errorf("%w: device %s is not owned by user %s", domain.ErrValidation, id, userID)
	}

	if err := s.devices.SetStatus(ctx, id, domain.StatusInactive); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	if err := s.users.RemoveActiveDevice(ctx, userID, id); err != nil {
		return err
	}

	if s.vendor != nil {
		if err := s.vendor.NotifyDeactivation(ctx, id); err != nil {
			s.logger.Warn("Vendor deactivation sync failed",
				zap.String("device_id", id),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Device deactivated",
		zap.String("device_id", id),
		zap.String("user_id", userID),
	)
	return nil
}

// updatableFields 更新操作白名单
var updatableFields = map[string]struct{}{
	"deviceId": {}, "deviceType": {}, "manufacturer": {}, "firmwareVersion": {},
	"location": {}, "status": {}, "validity": {}, "userId": {},
	"deviceModelId": {}, "profileVersion": {}, "lastActiveAt": {},
}

// Update 白名单字段更新。status 被置为 inactive 且设备正是属主用户
// 的活跃设备指针时，顺带清空指针。
func (s *DeviceService) Update(ctx context.Context, deviceID string, fields map[string]any) (*domain.Device, error) {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	for key := range fields {
		if _, ok := updatableFields[key]; !ok {
			return nil, fmt.Errorf("%w: field %q is not updatable", domain.ErrValidation, key)
		}
	}

	d, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if v, ok := fields["deviceId"].(string); ok {
		newID, err := domain.NormalizeDeviceID(v)
		if err != nil {
			return nil, err
		}
		if newID != id {
			return nil, fmt.Errorf("%w: deviceId cannot be changed", domain.ErrValidation)
		}
	}
	if v, ok := fields["deviceType"].(string); ok {
		d.DeviceType = v
	}
	if v, ok := fields["manufacturer"].(string); ok {
		d.Manufacturer = v
	}
	if v, ok := fields["firmwareVersion"].(string); ok {
		d.FirmwareVersion.String, d.FirmwareVersion.Valid = v, v != ""
	}
	if v, ok := fields["location"].(string); ok {
		d.Location.String, d.Location.Valid = v, v != ""
	}
	if v, ok := fields["userId"].(string); ok {
		d.UserID.String, d.UserID.Valid = v, v != ""
	}
	if v, ok := fields["deviceModelId"].(string); ok {
		d.DeviceModelID.String, d.DeviceModelID.Valid = v, v != ""
	}
	if v, ok := fields["profileVersion"].(string); ok {
		d.ProfileVersion.String, d.ProfileVersion.Valid = v, v != ""
	}
	if v, ok := fields["validity"].(string); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid validity timestamp %q", domain.ErrValidation, v)
		}
		d.ValidUntil.Time, d.ValidUntil.Valid = t, true
	}
	if v, ok := fields["lastActiveAt"].(string); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid lastActiveAt timestamp %q", domain.ErrValidation, v)
		}
		d.LastActiveAt.Time, d.LastActiveAt.Valid = t, true
	}

	statusChanged := false
	if v, ok := fields["status"].(string); ok {
		switch v {
		case domain.StatusInactive, domain.StatusActive, domain.StatusMaintenance:
			statusChanged = d.Status != v
			d.Status = v
		default:
			return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, v)
		}
	}

	if err := s.devices.Update(ctx, d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	if statusChanged && d.Status == domain.StatusInactive && d.UserID.Valid {
		if err := s.users.ClearActiveDevice(ctx, d.UserID.String, d.DeviceID); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Delete 删除设备：先清用户侧的指针与集合引用，再删记录
func (s *DeviceService) Delete(ctx context.Context, deviceID string) error {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return err
	}

	d, err := s.devices.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.UserID.Valid {
		if err := s.users.ClearActiveDevice(ctx, d.UserID.String, id); err != nil {
			return err
		}
		if err := s.users.RemoveActiveDevice(ctx, d.UserID.String, id); err != nil {
			return err
		}
	}
	if err := s.devices.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// ProfileDeviceView mapping 查询条目
type ProfileDeviceView struct {
	DeviceID string `json:"deviceId"`
	Status   string `json:"status"`
	Active   bool   `json:"active"`
}

// ProfileDevices 返回 profile 下全部设备及其激活状态
func (s *DeviceService) ProfileDevices(ctx context.Context, profileID string) ([]ProfileDeviceView, error) {
	devices, err := s.devices.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := make([]ProfileDeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, ProfileDeviceView{
			DeviceID: d.DeviceID,
			Status:   d.Status,
			Active:   d.Status == domain.StatusActive,
		})
	}
	return out, nil
}

// ActiveDevice 返回 profile 的唯一活跃设备 ID，无则返回空串
func (s *DeviceService) ActiveDevice(ctx context.Context, profileID string) (string, error) {
	d, err := s.devices.ActiveForProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", nil
	}
	return d.DeviceID, nil
}

// CreateDeviceRequest 管理端创建设备请求
type CreateDeviceRequest struct {
	DeviceID        string
	DeviceType      string
	Manufacturer    string
	FirmwareVersion string
	Location        string
	UserID          string
}

// CreateDevice 全量指定创建；重复 ID 返回 Conflict
func (s *DeviceService) CreateDevice(ctx context.Context, req CreateDeviceRequest) (*domain.Device, error) {
	id, err := domain.NormalizeDeviceID(req.DeviceID)
	if err != nil {
		return nil, err
	}
	if req.DeviceType == "" {
		return nil, fmt.Errorf("%w: deviceType is required", domain.ErrValidation)
	}

	d := &domain.Device{
		DeviceID:     id,
		DeviceType:   req.DeviceType,
		Manufacturer: req.Manufacturer,
		Status:       domain.StatusInactive,
	}
	if req.FirmwareVersion != "" {
		d.FirmwareVersion.String, d.FirmwareVersion.Valid = req.FirmwareVersion, true
	}
	if req.Location != "" {
		d.Location.String, d.Location.Valid = req.Location, true
	}
	if req.UserID != "" {
		d.UserID.String, d.UserID.Valid = req.UserID, true
	}
	if err := s.devices.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

var prefixPattern = regexp.MustCompile(`^[0-9]{4}$`)

// AllocateDevices 前缀分配器：在 NNNN- 前缀下按十六进制序号连续发放
func (s *DeviceService) AllocateDevices(ctx context.Context, prefix, deviceType, manufacturer string, count int) ([]string, error) {
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("%w: prefix must be 4 digits", domain.ErrValidation)
	}
	if count <= 0 || count > 1000 {
		return nil, fmt.Errorf("%w: count must be in 1..1000", domain.ErrValidation)
	}
	if deviceType == "" {
		return nil, fmt.Errorf("%w: deviceType is required", domain.ErrValidation)
	}

	next, err := s.devices.HighestSuffix(ctx, prefix+"-")
	if err != nil {
		return nil, err
	}
	next++

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("%s-%012X", prefix, next+int64(i))
		d := &domain.Device{
			DeviceID:     id,
			DeviceType:   deviceType,
			Manufacturer: manufacturer,
			Status:       domain.StatusInactive,
		}
		if err := s.devices.Create(ctx, d); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetDevice 单设备查询
func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	id, err := domain.NormalizeDeviceID(deviceID)
	if err != nil {
		return nil, err
	}
	return s.devices.Get(ctx, id)
}

// ListDevices 设备列表查询
func (s *DeviceService) ListDevices(ctx context.Context, filters repository.DeviceFilters, page, size int) ([]*domain.Device, int, error) {
	return s.devices.List(ctx, filters, page, size)
}
