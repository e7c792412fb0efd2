package decoder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/decoder"
	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

func TestDecode_HRVFullLine(t *testing.T) {
	line := "HRV,45.2,38.1,12.5,22.0,1200,890,1.35,310,2400,27.1,54.3,88,72,70,55,110"

	f, ok := decoder.Decode(line)
	require.True(t, ok)
	require.Len(t, f.Metrics, 16)

	require.Equal(t, 45.2, f.Metrics["sdnn"])
	require.Equal(t, 38.1, f.Metrics["rmssd"])
	require.Equal(t, 70.0, f.Metrics["hr_median"])
	require.Equal(t, 110.0, f.Metrics["hr_max"])

	// rmssd / hr_median 位置提升为平铺字段
	require.NotNil(t, f.HRV)
	require.Equal(t, 38.1, *f.HRV)
	require.NotNil(t, f.HeartRate)
	require.Equal(t, 70.0, *f.HeartRate)
}

func TestDecode_HRVShortArity(t *testing.T) {
	// 不足 16 个字段：整标签拒绝，一个指标都不产生
	line := "HRV,45.2,38.1,12.5"
	f, ok := decoder.Decode(line)
	require.False(t, ok)
	require.Nil(t, f)
}

func TestDecode_HRVNonNumericField(t *testing.T) {
	line := "HRV,45.2,xx,12.5,22.0,1200,890,1.35,310,2400,27.1,54.3,88,72,70,55,110"
	f, ok := decoder.Decode(line)
	require.True(t, ok)
	// rmssd 不可解析 => 缺失而非 0
	_, present := f.Metrics["rmssd"]
	require.False(t, present)
	require.Nil(t, f.HRV)
	require.Len(t, f.Metrics, 15)
}

func TestDecode_TemperatureHumidity(t *testing.T) {
	f, ok := decoder.Decode("TH,22.5,48")
	require.True(t, ok)
	require.Equal(t, 22.5, *f.Temperature)
	require.Equal(t, 48.0, *f.Humidity)

	// 尾部字段缺失 => 缺失，不报错
	f, ok = decoder.Decode("TH,22.5")
	require.True(t, ok)
	require.Equal(t, 22.5, *f.Temperature)
	require.Nil(t, f.Humidity)
}

func TestDecode_Flags(t *testing.T) {
	f, ok := decoder.Decode("PS,1")
	require.True(t, ok)
	require.NotNil(t, f.Signals.Presence)
	require.True(t, *f.Signals.Presence)

	f, ok = decoder.Decode("PS,0")
	require.True(t, ok)
	require.False(t, *f.Signals.Presence)

	// 2 可读作数字但不等于 1 => false
	f, ok = decoder.Decode("MV,2")
	require.True(t, ok)
	require.False(t, *f.Signals.Motion)

	// 不可读作数字 => 字段不存在
	f, ok = decoder.Decode("MV,on")
	require.True(t, ok)
	require.Nil(t, f.Signals.Motion)
}

func TestDecode_UnknownTag(t *testing.T) {
	f, ok := decoder.Decode("XYZ,1,2,3")
	require.False(t, ok)
	require.Nil(t, f)
}

func TestDecode_ZeroDistinctFromAbsent(t *testing.T) {
	f, ok := decoder.Decode("HR,0")
	require.True(t, ok)
	require.NotNil(t, f.HeartRate)
	require.Equal(t, 0.0, *f.HeartRate)

	f, ok = decoder.Decode("HR")
	require.True(t, ok)
	require.Nil(t, f.HeartRate)
}

func TestDecodeAll_MergeOrder(t *testing.T) {
	rec := &domain.VitalRecord{DeviceID: "0001-000000000001"}
	lines := []string{
		"HR,70",
		"TH,22.5,48",
		"HR,75", // 后行覆盖前行
		"BOGUS LINE",
	}
	raw := decoder.DecodeAll(lines, rec)

	require.Equal(t, 75.0, *rec.HeartRate)
	require.Equal(t, 22.5, *rec.Temperature)
	// 未识别行不产生字段，但原文保留
	require.Contains(t, raw, "BOGUS LINE")
	require.Contains(t, raw, "HR,70")
}

func TestDecode_Sequences(t *testing.T) {
	f, ok := decoder.Decode("RI,812,799,803,xx,820")
	require.True(t, ok)
	require.Equal(t, []float64{812, 799, 803, 820}, f.Signals.Intervals)
}
