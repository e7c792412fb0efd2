package domain

import "time"

// SignalSet 信号袋：布尔/电平类信号与原始序列
// 指针类型用于区分"未上报"与"值为零"
type SignalSet struct {
	Motion     *bool     `json:"motion,omitempty"`
	Presence   *bool     `json:"presence,omitempty"`
	Activity   *float64  `json:"activity,omitempty"`
	Battery    *float64  `json:"battery,omitempty"`
	Microphone *float64  `json:"microphone,omitempty"`
	Intervals  []float64 `json:"intervals,omitempty"` // 原始 RR 间期序列
	Waveform   []float64 `json:"waveform,omitempty"`  // 原始波形采样
}

// VitalRecord 体征时序记录（对应 vital_records 表）
// Timestamp 由服务端在入库时赋值，不使用设备时间
type VitalRecord struct {
	ID       int64     `db:"id"`
	DeviceID string    `db:"device_id"`
	Timestamp time.Time `db:"ts"`

	// 主体征（缺省为 nil 表示未上报）
	Temperature *float64 `db:"temperature"`
	Humidity    *float64 `db:"humidity"`
	HeartRate   *float64 `db:"heart_rate"`
	Respiration *float64 `db:"respiration"`
	Stress      *float64 `db:"stress"`
	HRV         *float64 `db:"hrv"`

	// 睡眠记录
	SleepQuality  string   `db:"sleep_quality"`
	SleepDuration *float64 `db:"sleep_duration"`

	// 指标袋：开放式 指标名 -> 数值（HRV 细分、扩展体征等）
	Metrics map[string]float64 `db:"metrics"`

	// 信号袋
	Signals SignalSet `db:"signals"`

	// 原始行文本（审计用，入库后不可变）
	Raw string `db:"raw"`
}

// MetricView 返回 指标名 -> 数值 的平铺视图（平铺字段 + 指标袋），
// 供规则表的范围检查与去重判定使用
func (r *VitalRecord) MetricView() map[string]float64 {
	view := make(map[string]float64, len(r.Metrics)+8)
	put := func(name string, v *float64) {
		if v != nil {
			view[name] = *v
		}
	}
	put("temperature", r.Temperature)
	put("humidity", r.Humidity)
	put("heartRate", r.HeartRate)
	put("respiration", r.Respiration)
	put("stress", r.Stress)
	put("hrv", r.HRV)
	put("activity", r.Signals.Activity)
	put("battery", r.Signals.Battery)
	put("microphone", r.Signals.Microphone)
	for k, v := range r.Metrics {
		view[k] = v
	}
	return view
}

// SetMetric 写入指标袋（懒初始化）
func (r *VitalRecord) SetMetric(name string, v float64) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]float64)
	}
	r.Metrics[name] = v
}
