// Package rules 静态规则表：按设备类型定义 指标 -> {min, max, 去重模式}。
// 启动时加载，运行期只读。
package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// DedupeMode 去重模式
type DedupeMode string

const (
	ModeAlways   DedupeMode = "always"    // 每条都入库
	ModeOnChange DedupeMode = "on_change" // 仅值变化时入库
)

// Rule 单指标规则。Min/Max 为 nil 表示不限界。
type Rule struct {
	Min  *float64   `json:"min,omitempty"`
	Max  *float64   `json:"max,omitempty"`
	Mode DedupeMode `json:"mode"`
}

// Table 按设备类型索引的规则表
type Table struct {
	byType map[string]map[string]Rule
}

// ForType 返回设备类型的规则集；无规则类型返回 nil（规则阶段直接放行）
func (t *Table) ForType(deviceType string) map[string]Rule {
	if t == nil {
		return nil
	}
	return t.byType[deviceType]
}

func f(v float64) *float64 { return &v }

// Default 内置规则表
func Default() *Table {
	return &Table{byType: map[string]map[string]Rule{
		"SleepBand": {
			"heartRate":   {Min: f(30), Max: f(220), Mode: ModeAlways},
			"respiration": {Min: f(4), Max: f(60), Mode: ModeAlways},
			"hrv":         {Min: f(0), Max: f(500), Mode: ModeAlways},
			"temperature": {Min: f(-20), Max: f(60), Mode: ModeOnChange},
			"humidity":    {Min: f(0), Max: f(100), Mode: ModeOnChange},
			"stress":      {Mode: ModeOnChange},
			"battery":     {Min: f(0), Max: f(100), Mode: ModeOnChange},
			"activity":    {Mode: ModeOnChange},
		},
		"SleepPad": {
			"heartRate":   {Min: f(30), Max: f(220), Mode: ModeAlways},
			"respiration": {Min: f(4), Max: f(60), Mode: ModeAlways},
			"temperature": {Min: f(-20), Max: f(60), Mode: ModeOnChange},
			"microphone":  {Mode: ModeOnChange},
		},
	}}
}

// LoadFile 从 JSON 文件加载规则表（格式：deviceType -> metric -> Rule），
// 用于部署时覆盖内置表
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	byType := make(map[string]map[string]Rule)
	if err := json.Unmarshal(data, &byType); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	for deviceType, set := range byType {
		for name, r := range set {
			switch r.Mode {
			case ModeAlways, ModeOnChange:
			case "":
				r.Mode = ModeAlways
				set[name] = r
			default:
				return nil, fmt.Errorf("rules file %s: unknown mode %q for %s/%s", path, r.Mode, deviceType, name)
			}
		}
	}
	return &Table{byType: byType}, nil
}
