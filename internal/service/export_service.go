package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/model"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/repository"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportRange        = pkgerrors.New(pkgerrors.KindInvalidInput, "导出区间无效")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// exportMaxDays 单次导出的最大天数
const exportMaxDays = 186

// ExportService 名单导出接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入；
// 每行一条课程记录（含已取消），按日期、时刻、教练排序
type ExportService interface {
	ExportRoster(ctx context.Context, scope model.OwnerScope, from, to string, caller Caller) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo      *repository.Repository
	ownership OwnershipService
	logger    *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, ownership OwnershipService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, ownership: ownership, logger: logger}
}

var (
	statusNames = map[string]string{
		model.ClassReserved:  "已预约",
		model.ClassCompleted: "已完成",
		model.ClassCancelled: "已取消",
	}
	attendanceNames = map[string]string{
		model.AttendancePending: "待登记",
		model.AttendancePresent: "出席",
		model.AttendanceAbsent:  "缺席",
	}
	weekdayNames = []string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}
)

func (s *exportService) ExportRoster(ctx context.Context, scope model.OwnerScope, from, to string, caller Caller) (*bytes.Buffer, string, error) {
	if err := s.ownership.AuthorizeOwner(ctx, caller, scope); err != nil {
		return nil, "", err
	}
	fromDate, err := civil.ParseDate(from)
	if err != nil {
		return nil, "", ErrInvalidInput.WithDetail("%v", err)
	}
	toDate, err := civil.ParseDate(to)
	if err != nil {
		return nil, "", ErrInvalidInput.WithDetail("%v", err)
	}
	if toDate.Before(fromDate) || toDate.Sub(fromDate).Hours()/24 > exportMaxDays {
		return nil, "", ErrExportRange
	}

	items, err := s.repo.Occurrence.ListRange(ctx, scope.Owner(), fromDate, toDate)
	if err != nil {
		s.logger.Error("查询名单失败", zap.String("scope", scope.String()), zap.Error(err))
		return nil, "", err
	}
	// 普通教练只导出自己的课程
	if scope.StaffID != "" {
		filtered := items[:0]
		for _, o := range items {
			if o.Scope().StaffID == scope.StaffID {
				filtered = append(filtered, o)
			}
		}
		items = filtered
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "名单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"日期", "星期", "时间", "教练", "学员", "状态", "出勤", "系列", "体验课"}
	widths := []float64{12, 6, 8, 38, 38, 8, 8, 38, 8}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 名单 %s ~ %s", scope, from, to))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	row := 3
	for i := range items {
		o := &items[i]
		learner, series, trial := "-", "-", ""
		if o.LearnerID != nil {
			learner = *o.LearnerID
		}
		if o.SeriesID != nil {
			series = *o.SeriesID
		}
		if o.IsTrial {
			trial = "是"
		}
		staff := o.Scope().StaffID
		if staff == "" {
			staff = "-"
		}
		values := []interface{}{
			civil.FormatDate(o.ClassDate),
			weekdayNames[civil.Weekday(o.ClassDate)],
			civil.NormalizeClock(o.StartTime),
			staff,
			learner,
			statusNames[o.Status],
			attendanceNames[o.Attendance],
			series,
			trial,
		}
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("roster_%s_%s.xlsx", from, to)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
