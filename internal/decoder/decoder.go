// Package decoder 解析设备低层传输的带标签定长行（decoder line）。
//
// 行格式：TAG,field1,field2,...（逗号分隔，位置编码）。
// 约定：
//   - 未知标签不报错，只作为原始审计文本保留
//   - 数值字段解析失败 => 字段缺失（不是 0，零值与缺失必须可区分）
//   - 布尔字段仅当位置值可解析为数字时存在，值 == 1 视为 true
//   - 尾部字段缺失 => 缺失，不视为格式错误
package decoder

import (
	"math"
	"strconv"
	"strings"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// HRV 行的 16 个位置字段名（进入指标袋）
// rmssd 与 hr_median 同时提升为平铺字段 hrv / heartRate（兼容旧客户端）
var hrvFields = []string{
	"sdnn", "rmssd", "pnn50", "pnn20",
	"lf", "hf", "lf_hf", "vlf",
	"tp", "sd1", "sd2", "stress_index",
	"hr_mean", "hr_median", "hr_min", "hr_max",
}

const (
	hrvPromoteHRV       = "rmssd"
	hrvPromoteHeartRate = "hr_median"
)

// Fragment 一行解码出的部分记录
type Fragment struct {
	Temperature *float64
	Humidity    *float64
	HeartRate   *float64
	Respiration *float64
	Stress      *float64
	HRV         *float64

	Metrics map[string]float64
	Signals domain.SignalSet
}

// Decode 解析单行。未识别（未知标签或 HRV 短行）返回 (nil, false)。
// 永不返回错误：坏行降级为未识别，由调用方保留原文。
func Decode(line string) (*Fragment, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) == 0 || parts[0] == "" {
		return nil, false
	}
	tag := strings.ToUpper(strings.TrimSpace(parts[0]))
	fields := parts[1:]

	switch tag {
	case "HRV":
		// 整标签拒绝：不足 16 个字段时一个指标都不写
		if len(fields) < len(hrvFields) {
			return nil, false
		}
		f := &Fragment{Metrics: make(map[string]float64, len(hrvFields))}
		for i, name := range hrvFields {
			if v := num(fields, i); v != nil {
				f.Metrics[name] = *v
				switch name {
				case hrvPromoteHRV:
					f.HRV = v
				case hrvPromoteHeartRate:
					f.HeartRate = v
				}
			}
		}
		return f, true
	case "TH":
		return &Fragment{Temperature: num(fields, 0), Humidity: num(fields, 1)}, true
	case "HR":
		return &Fragment{HeartRate: num(fields, 0)}, true
	case "RR":
		return &Fragment{Respiration: num(fields, 0)}, true
	case "ST":
		return &Fragment{Stress: num(fields, 0)}, true
	case "MV":
		return &Fragment{Signals: domain.SignalSet{Motion: flag(fields, 0)}}, true
	case "PS":
		return &Fragment{Signals: domain.SignalSet{Presence: flag(fields, 0)}}, true
	case "AL":
		return &Fragment{Signals: domain.SignalSet{Activity: num(fields, 0)}}, true
	case "BT":
		return &Fragment{Signals: domain.SignalSet{Battery: num(fields, 0)}}, true
	case "MC":
		return &Fragment{Signals: domain.SignalSet{Microphone: num(fields, 0)}}, true
	case "RI":
		return &Fragment{Signals: domain.SignalSet{Intervals: seq(fields)}}, true
	case "WV":
		return &Fragment{Signals: domain.SignalSet{Waveform: seq(fields)}}, true
	default:
		return nil, false
	}
}

// Apply 把片段合并进记录，已有字段被覆盖（后行覆盖前行）
func (f *Fragment) Apply(rec *domain.VitalRecord) {
	if f.Temperature != nil {
		rec.Temperature = f.Temperature
	}
	if f.Humidity != nil {
		rec.Humidity = f.Humidity
	}
	if f.HeartRate != nil {
		rec.HeartRate = f.HeartRate
	}
	if f.Respiration != nil {
		rec.Respiration = f.Respiration
	}
	if f.Stress != nil {
		rec.Stress = f.Stress
	}
	if f.HRV != nil {
		rec.HRV = f.HRV
	}
	for k, v := range f.Metrics {
		rec.SetMetric(k, v)
	}
	if f.Signals.Motion != nil {
		rec.Signals.Motion = f.Signals.Motion
	}
	if f.Signals.Presence != nil {
		rec.Signals.Presence = f.Signals.Presence
	}
	if f.Signals.Activity != nil {
		rec.Signals.Activity = f.Signals.Activity
	}
	if f.Signals.Battery != nil {
		rec.Signals.Battery = f.Signals.Battery
	}
	if f.Signals.Microphone != nil {
		rec.Signals.Microphone = f.Signals.Microphone
	}
	if len(f.Signals.Intervals) > 0 {
		rec.Signals.Intervals = f.Signals.Intervals
	}
	if len(f.Signals.Waveform) > 0 {
		rec.Signals.Waveform = f.Signals.Waveform
	}
}

// DecodeAll 逐行独立解码后按序合并进记录，返回拼接的审计原文。
// 未识别的行不产生字段，但原文保留。
func DecodeAll(lines []string, rec *domain.VitalRecord) string {
	for _, line := range lines {
		if f, ok := Decode(line); ok {
			f.Apply(rec)
		}
	}
	return strings.Join(lines, "\n")
}

// num 读取位置 i 的数值字段；越界、空、非有限数 => nil
func num(fields []string, i int) *float64 {
	if i >= len(fields) {
		return nil
	}
	s := strings.TrimSpace(fields[i])
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// flag 读取位置 i 的布尔字段；仅当可读作数字时存在，== 1 为 true
func flag(fields []string, i int) *bool {
	v := num(fields, i)
	if v == nil {
		return nil
	}
	b := *v == 1
	return &b
}

// seq 读取变长数值序列，跳过坏项
func seq(fields []string) []float64 {
	out := make([]float64, 0, len(fields))
	for i := range fields {
		if v := num(fields, i); v != nil {
			out = append(out, *v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
