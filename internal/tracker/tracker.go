// Package tracker 进程内的设备在位/变化追踪器。
//
// 每台设备维护：最近在位标志（默认在位）、各受规则跟踪指标的最近入库值。
// 同一设备的并发消息必须串行评估（否则丢更新）；不同设备并行。
// 按设备 ID 哈希分片加锁，避免全局锁拖垮跨设备并行度。
package tracker

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/rules"
)

// RetractionWindow 在位 1→0 跳变时回收的尾部窗口
const RetractionWindow = 12 * time.Second

const shardCount = 32

// 丢弃原因（日志/指标用）
const (
	DropPresenceAbsent = "presence_absent"
	DropOutOfRange     = "out_of_range"
	DropUnchanged      = "unchanged"
)

// Decision 单条消息的评估结论
type Decision struct {
	Persist bool

	// Retract 为 true 时，删除 [RetractFrom, RetractTo] 内已入库记录
	Retract     bool
	RetractFrom time.Time
	RetractTo   time.Time

	// Persist 为 false 时的丢弃原因
	DropReason string

	// 越界时触发拒绝的指标名（日志用）
	ViolatedMetric string
}

type entry struct {
	presence     bool
	lastAccepted map[string]float64
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Tracker 分片的按键互斥状态存储
type Tracker struct {
	shards [shardCount]shard
}

func New() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*entry)
	}
	return t
}

func (t *Tracker) shardFor(deviceID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return &t.shards[h.Sum32()%shardCount]
}

// Evaluate 评估一条消息：先在位检查（可短路），再规则检查。
//
//	presence  消息携带的在位标志，nil 表示本条未上报
//	metrics   消息的平铺指标视图
//	ruleSet   设备类型的规则集，nil/空 表示规则阶段直接放行
func (t *Tracker) Evaluate(deviceID string, now time.Time, presence *bool, metrics map[string]float64, ruleSet map[string]rules.Rule) Decision {
	s := t.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[deviceID]
	if !ok {
		e = &entry{presence: true, lastAccepted: make(map[string]float64)}
		s.entries[deviceID] = e
	}

	// 在位阶段
	if presence != nil {
		switch {
		case e.presence && !*presence:
			// 1→0 跳变：无条件回收尾部窗口，本条不入库
			e.presence = false
			return Decision{
				Retract:     true,
				RetractFrom: now.Add(-RetractionWindow),
				RetractTo:   now,
				DropReason:  DropPresenceAbsent,
			}
		case !e.presence && *presence:
			// 0→1：立即恢复接收，继续规则阶段
			e.presence = true
		}
	}
	if !e.presence {
		// 离位期间只做跳变检查，不入库
		return Decision{DropReason: DropPresenceAbsent}
	}

	// 规则阶段
	if len(ruleSet) == 0 {
		return Decision{Persist: true}
	}

	// 任一受限指标越界 => 整条拒绝
	for name, r := range ruleSet {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		if (r.Min != nil && v < *r.Min) || (r.Max != nil && v > *r.Max) {
			return Decision{DropReason: DropOutOfRange, ViolatedMetric: name}
		}
	}

	// 去重：统计本条里"有变化"的跟踪指标。
	// on_change 指标仅在与最近入库值不同才算变化，且只有变化的指标
	// 才刷新基线——值相同的指标不得重置去重基线。
	changed := make(map[string]float64)
	for name, r := range ruleSet {
		v, ok := metrics[name]
		if !ok {
			continue
		}
		switch r.Mode {
		case rules.ModeOnChange:
			if last, seen := e.lastAccepted[name]; !seen || last != v {
				changed[name] = v
			}
		default: // always
			changed[name] = v
		}
	}
	if len(changed) == 0 {
		return Decision{DropReason: DropUnchanged}
	}
	for name, v := range changed {
		if ruleSet[name].Mode == rules.ModeOnChange {
			e.lastAccepted[name] = v
		}
	}
	return Decision{Persist: true}
}

// Presence 读取设备当前在位标志（测试与诊断用）
func (t *Tracker) Presence(deviceID string) bool {
	s := t.shardFor(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[deviceID]; ok {
		return e.presence
	}
	return true
}
