package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/service"
)

// QueryExportHeader 查询结果导出表头（全部为去标识化字段）
var QueryExportHeader = []string{
	"Cohort Index",
	"Gender Concept ID",
	"Year of Birth",
	"Condition Start Date",
	"Condition Source Value",
	"Line of Therapy Count",
	"Latest Measurements",
}

// GenerateCohortExport 生成队列投影导出 Excel 文件
// entries: 去标识化队列条目，为空则只生成表头
func GenerateCohortExport(entries []service.CohortEntry) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Cohort"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close() // Close on error
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 设置表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
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

	// 写入表头
	for col, header := range QueryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to get cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写入数据行
	for row, entry := range entries {
		measurements := ""
		for i, m := range entry.LatestMeasurements {
			if i > 0 {
				measurements += "; "
			}
			if m.ValueAsNumber != nil {
				measurements += fmt.Sprintf("%d=%g (%s)", m.ConceptID, *m.ValueAsNumber, m.Date.Format("2006-01-02"))
			} else {
				measurements += fmt.Sprintf("%d (%s)", m.ConceptID, m.Date.Format("2006-01-02"))
			}
		}

		values := []any{
			entry.CohortIndex,
			entry.GenderConceptID,
			entry.YearOfBirth,
			entry.ConditionStartDate,
			entry.ConditionSourceValue,
			entry.LineOfTherapyCount,
			measurements,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to get cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value: %w", err)
			}
		}
	}

	// 自适应列宽
	for col := range QueryExportHeader {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheetName, name, name, 22)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	f.Close()

	return buf.Bytes(), nil
}

// ExportQuery GET /rwe/api/v1/queries/{id}/export
// 重新执行队列选取并导出 Excel（审计记录只存分账结果，不存投影数据）
func (h *RweQueryHandler) ExportQuery(w http.ResponseWriter, r *http.Request, queryID string) {
	if _, err := h.authenticate(r); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.queries.GetQuery(r.Context(), queryID)
	if err != nil {
		writeError(w, err)
		return
	}

	selection, err := h.cohortService.SelectCohort(r.Context(), q.ConceptID)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := GenerateCohortExport(selection.Entries)
	if err != nil {
		h.logger.Error("Failed to generate cohort export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("cohort_%s_%s.xlsx", queryID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}
