package rules

// extraMetricKeys 扩展指标直通名单：health 消息体里出现这些键时
// 原样搬进指标袋，不走 decoder 行。静态配置表，扩展时不动管道控制流。
var extraMetricKeys = []string{
	// 扩展体征
	"skinTemperature",
	"coreTemperature",
	"heartRateMin",
	"heartRateMax",
	"heartRateResting",
	"respirationMin",
	"respirationMax",
	"spo2",
	"vo2",
	"perfusionIndex",
	"pulsePressure",
	"systolic",
	"diastolic",
	"meanArterialPressure",
	"glucose",
	"lactate",
	"cortisol",
	"hydration",
	"skinConductance",
	// 睡眠细分
	"sleepLatency",
	"deepSleepRatio",
	"remSleepRatio",
	"lightSleepRatio",
	"awakeCount",
	"snoreCount",
	"snoreIntensity",
	"apneaIndex",
	"sleepEfficiency",
	"sleepScore",
	// 运动/姿态
	"posture",
	"postureChanges",
	"turnOverCount",
	"bodyMoveCount",
	"sitUpCount",
	"lyingTime",
	"sittingTime",
	"standingTime",
	"walkingTime",
	"steps",
	"distance",
	"caloriesBurned",
	"restlessness",
	"tremor",
	"gaitScore",
	"balanceScore",
	"fallRisk",
	// 环境
	"ambientLight",
	"ambientNoise",
	"ambientCO2",
	"airQuality",
	"uvExposure",
}

var extraMetricSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(extraMetricKeys))
	for _, k := range extraMetricKeys {
		s[k] = struct{}{}
	}
	return s
}()

// ExtraMetricKeys 返回直通名单（只读使用）
func ExtraMetricKeys() []string { return extraMetricKeys }

// IsExtraMetric 判断指标名是否在直通名单内
func IsExtraMetric(name string) bool {
	_, ok := extraMetricSet[name]
	return ok
}
