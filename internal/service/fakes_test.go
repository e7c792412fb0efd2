package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/repository"
)

// --- 设备 repo 内存实现 ---

type fakeDevicesRepo struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
}

func newFakeDevicesRepo(devices ...*domain.Device) *fakeDevicesRepo {
	r := &fakeDevicesRepo{devices: make(map[string]*domain.Device)}
	for _, d := range devices {
		cp := *d
		r.devices[d.DeviceID] = &cp
	}
	return r
}

func (r *fakeDevicesRepo) Get(_ context.Context, deviceID string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDevicesRepo) List(_ context.Context, filters repository.DeviceFilters, page, size int) ([]*domain.Device, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		if filters.DeviceType != "" && d.DeviceType != filters.DeviceType {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *fakeDevicesRepo) ListByProfile(_ context.Context, profileID string) ([]*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Device
	for _, d := range r.devices {
		if d.ProfileID.Valid && d.ProfileID.String == profileID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDevicesRepo) ActiveForProfile(_ context.Context, profileID string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.Status == domain.StatusActive && d.ProfileID.Valid && d.ProfileID.String == profileID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDevicesRepo) Create(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.DeviceID]; ok {
		return fmt.Errorf("%w: device %s already exists", domain.ErrConflict, device.DeviceID)
	}
	cp := *device
	r.devices[device.DeviceID] = &cp
	return nil
}

func (r *fakeDevicesRepo) Update(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[device.DeviceID]; !ok {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, device.DeviceID)
	}
	cp := *device
	r.devices[device.DeviceID] = &cp
	return nil
}

func (r *fakeDevicesRepo) Delete(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[deviceID]; !ok {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	delete(r.devices, deviceID)
	return nil
}

func (r *fakeDevicesRepo) ActivateExclusive(_ context.Context, deviceID, profileID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	for _, d := range r.devices {
		if d.DeviceID != deviceID && d.ProfileID.Valid && d.ProfileID.String == profileID {
			d.Status = domain.StatusInactive
		}
	}
	target.Status = domain.StatusActive
	target.ProfileID = sqlString(profileID)
	target.LastActiveAt.Time, target.LastActiveAt.Valid = now, true
	return nil
}

func (r *fakeDevicesRepo) SetStatus(_ context.Context, deviceID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	d.Status = status
	return nil
}

func (r *fakeDevicesRepo) TouchActive(_ context.Context, deviceID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %s", domain.ErrNotFound, deviceID)
	}
	d.Status = domain.StatusActive
	d.LastActiveAt.Time, d.LastActiveAt.Valid = now, true
	return nil
}

func (r *fakeDevicesRepo) HighestSuffix(_ context.Context, prefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	highest := int64(-1)
	for id := range r.devices {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(id, prefix), 16, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

// --- 用户 repo 内存实现 ---

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	sets  map[string]map[string]bool
}

func newFakeUsersRepo(users ...*domain.User) *fakeUsersRepo {
	r := &fakeUsersRepo{
		users: make(map[string]*domain.User),
		sets:  make(map[string]map[string]bool),
	}
	for _, u := range users {
		cp := *u
		r.users[u.UserID] = &cp
	}
	return r
}

func (r *fakeUsersRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUsersRepo) SetActiveDevice(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	u.ActiveDeviceID = sqlString(deviceID)
	return nil
}

func (r *fakeUsersRepo) ClearActiveDevice(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	if u.ActiveDeviceID.Valid && u.ActiveDeviceID.String == deviceID {
		u.ActiveDeviceID.String, u.ActiveDeviceID.Valid = "", false
	}
	return nil
}

func (r *fakeUsersRepo) AddActiveDevice(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sets[userID] == nil {
		r.sets[userID] = make(map[string]bool)
	}
	r.sets[userID][deviceID] = true
	return nil
}

func (r *fakeUsersRepo) RemoveActiveDevice(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets[userID], deviceID)
	return nil
}

func (r *fakeUsersRepo) ListActiveDevices(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id := range r.sets[userID] {
		out = append(out, id)
	}
	return out, nil
}

// --- 遥测 repo 内存实现 ---

type deleteCall struct {
	deviceID string
	from, to time.Time
}

type fakeTelemetryRepo struct {
	mu          sync.Mutex
	records     []*domain.VitalRecord
	insertErr   error
	deleteErr   error
	deleteCalls []deleteCall
}

func (r *fakeTelemetryRepo) Insert(_ context.Context, rec *domain.VitalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeTelemetryRepo) QueryRange(_ context.Context, deviceID string, from, to time.Time, limit int) ([]*domain.VitalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.VitalRecord
	for _, rec := range r.records {
		if rec.DeviceID == deviceID && !rec.Timestamp.Before(from) && !rec.Timestamp.After(to) {
			cp := *rec
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTelemetryRepo) DeleteRange(_ context.Context, deviceID string, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls = append(r.deleteCalls, deleteCall{deviceID: deviceID, from: from, to: to})
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	var kept []*domain.VitalRecord
	var deleted int64
	for _, rec := range r.records {
		if rec.DeviceID == deviceID && !rec.Timestamp.Before(from) && !rec.Timestamp.After(to) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return deleted, nil
}

func (r *fakeTelemetryRepo) Summary(_ context.Context, deviceID string, from, to time.Time) (*repository.VitalSummary, error) {
	recs, _ := r.QueryRange(context.Background(), deviceID, from, to, 0)
	return &repository.VitalSummary{Count: len(recs)}, nil
}

func (r *fakeTelemetryRepo) count(deviceID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.DeviceID == deviceID {
			n++
		}
	}
	return n
}

// --- 厂家同步 / 侧输出 ---

type fakeVendor struct {
	mu            sync.Mutex
	activations   []string
	deactivations []string
	err           error
}

func (v *fakeVendor) NotifyActivation(_ context.Context, deviceID, profileID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.activations = append(v.activations, deviceID+"/"+profileID)
	return v.err
}

func (v *fakeVendor) NotifyDeactivation(_ context.Context, deviceID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deactivations = append(v.deactivations, deviceID)
	return v.err
}

type fakePublisher struct {
	mu      sync.Mutex
	records []*domain.VitalRecord
	err     error
}

func (p *fakePublisher) PublishRecord(_ context.Context, rec *domain.VitalRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	cp := *rec
	p.records = append(p.records, &cp)
	return nil
}

// --- 构造辅助 ---

func sqlString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
