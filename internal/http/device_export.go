package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iammayankpratapsingh/dozemate-backend/internal/domain"
)

// DeviceExportHeader 设备导出表头
var DeviceExportHeader = []string{
	"Device ID",
	"Device Type",
	"Manufacturer",
	"Status",
	"Profile ID",
	"User ID",
	"Firmware Version",
	"Location",
	"Last Active At",
	"Valid Until",
}

// GenerateDeviceExport 生成设备清单 Excel 文件
func GenerateDeviceExport(devices []*domain.Device) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Devices"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range DeviceExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{22, 15, 18, 12, 38, 38, 18, 20, 22, 22}
	for i := range DeviceExportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(columnWidths) {
			if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for rowIdx, d := range devices {
		row := rowIdx + 2
		values := []any{
			d.DeviceID,
			d.DeviceType,
			d.Manufacturer,
			d.Status,
			nullableStr(d.ProfileID.Valid, d.ProfileID.String),
			nullableStr(d.UserID.Valid, d.UserID.String),
			nullableStr(d.FirmwareVersion.Valid, d.FirmwareVersion.String),
			nullableStr(d.Location.Valid, d.Location.String),
			nullableTime(d.LastActiveAt.Valid, d.LastActiveAt.Time),
			nullableTime(d.ValidUntil.Valid, d.ValidUntil.Time),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func nullableStr(valid bool, s string) string {
	if !valid {
		return ""
	}
	return s
}

func nullableTime(valid bool, t time.Time) string {
	if !valid {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
