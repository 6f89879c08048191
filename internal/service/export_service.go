package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/internal/seed"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Excel：班次清单 + 按小时的周视图
//   - ICS：每个有固定时间的班次一个每周重复事件，覆盖配置的学期区间
//   - 无固定时间 (TBA) 的班次只出现在 Excel 清单中
type ExportService interface {
	ExportXLSX(ctx context.Context, studentID, scheduleID string) (*bytes.Buffer, string, error)
	ExportICS(ctx context.Context, studentID, scheduleID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, logger: logger}
}

// exportRow 导出用的班次行
type exportRow struct {
	position     int
	courseNumber string
	courseName   string
	section      *model.Section
}

func (s *exportService) load(ctx context.Context, studentID, scheduleID string) (*model.GeneratedSchedule, []exportRow, error) {
	schedule, err := loadOwnedSchedule(ctx, s.repo, studentID, scheduleID)
	if err != nil {
		if !errors.Is(err, ErrScheduleNotFound) {
			s.logger.Error("查询课表失败", zap.Error(err))
		}
		return nil, nil, err
	}

	rows := make([]exportRow, 0, len(schedule.Sections))
	for _, link := range schedule.Sections {
		if link.Section == nil {
			continue
		}
		row := exportRow{
			position:     link.Position + 1,
			courseNumber: link.Section.CourseNumber,
			section:      link.Section,
		}
		if link.Section.Course != nil {
			row.courseName = link.Section.Course.Name
		}
		rows = append(rows, row)
	}
	return schedule, rows, nil
}

// ═══════════════════════════════════════════════════════════
// ExportXLSX — 导出课表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "课表"：序号 | 课程号 | 课程名称 | 班次 | 上课日 | 时间
//   - Sheet "周视图"：行头为整点小时，列头为周一 ~ 周五，单元格为 课程号 班次

func (s *exportService) ExportXLSX(ctx context.Context, studentID, scheduleID string) (*bytes.Buffer, string, error) {
	schedule, rows, err := s.load(ctx, studentID, scheduleID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	listSheet := "课表"
	idx, _ := f.NewSheet(listSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})

	// ── 班次清单 ──
	f.SetColWidth(listSheet, "A", "A", 6)
	f.SetColWidth(listSheet, "B", "B", 12)
	f.SetColWidth(listSheet, "C", "C", 40)
	f.SetColWidth(listSheet, "D", "D", 12)
	f.SetColWidth(listSheet, "E", "E", 10)
	f.SetColWidth(listSheet, "F", "F", 20)

	f.SetCellValue(listSheet, "A1", fmt.Sprintf("%s 课表", s.cfg.Term.Name))
	f.MergeCell(listSheet, "A1", "F1")
	f.SetCellStyle(listSheet, "A1", "F1", headerStyle)

	for i, h := range []string{"序号", "课程号", "课程名称", "班次", "上课日", "时间"} {
		f.SetCellValue(listSheet, cell(colName(i), 2), h)
	}

	row := 3
	for _, r := range rows {
		f.SetCellValue(listSheet, cell("A", row), r.position)
		f.SetCellValue(listSheet, cell("B", row), r.courseNumber)
		f.SetCellValue(listSheet, cell("C", row), r.courseName)
		f.SetCellValue(listSheet, cell("D", row), r.section.Label)
		f.SetCellValue(listSheet, cell("E", row), r.section.Days)
		f.SetCellValue(listSheet, cell("F", row), sectionTimeText(r.section))
		row++
	}
	f.SetCellValue(listSheet, cell("A", row+1), schedule.Rationale)
	f.MergeCell(listSheet, cell("A", row+1), cell("F", row+1))

	// ── 周视图 ──
	gridSheet := "周视图"
	f.NewSheet(gridSheet)
	f.SetColWidth(gridSheet, "A", "A", 10)
	f.SetColWidth(gridSheet, "B", "F", 18)

	dayNames := []string{"周一", "周二", "周三", "周四", "周五"}
	f.SetCellValue(gridSheet, "A1", "时间")
	for i, name := range dayNames {
		f.SetCellValue(gridSheet, cell(colName(1+i), 1), name)
	}
	f.SetCellStyle(gridSheet, "A1", "F1", headerStyle)

	grid := make(map[string][]string) // "hour:day" → 班次文本
	firstHour, lastHour := 8, 17
	for _, r := range rows {
		if !r.section.HasTimes() {
			continue
		}
		start, end := *r.section.StartMin, *r.section.EndMin
		if h := start / 60; h < firstHour {
			firstHour = h
		}
		if h := (end - 1) / 60; h > lastHour {
			lastHour = h
		}
		for _, day := range sectionDays(r.section.Days) {
			if day > 4 {
				continue
			}
			for hour := start / 60; hour <= (end-1)/60; hour++ {
				key := fmt.Sprintf("%d:%d", hour, day)
				grid[key] = append(grid[key], r.courseNumber+" "+r.section.Label)
			}
		}
	}

	for hour := firstHour; hour <= lastHour; hour++ {
		gridRow := hour - firstHour + 2
		f.SetCellValue(gridSheet, cell("A", gridRow), seed.MinutesToClock(hour*60))
		for day := 0; day < len(dayNames); day++ {
			text := strings.Join(grid[fmt.Sprintf("%d:%d", hour, day)], "\n")
			f.SetCellValue(gridSheet, cell(colName(1+day), gridRow), text)
		}
	}
	f.SetCellStyle(gridSheet, "B2", cell("F", lastHour-firstHour+2), wrapStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课表_%s_%s.xlsx", s.cfg.Term.Name, shortID(schedule.ScheduleID))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS — 导出课表为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportICS(ctx context.Context, studentID, scheduleID string) (*bytes.Buffer, string, error) {
	schedule, rows, err := s.load(ctx, studentID, scheduleID)
	if err != nil {
		return nil, "", err
	}

	termStart, err := s.cfg.Term.Start()
	if err != nil {
		return nil, "", err
	}
	termEnd, err := s.cfg.Term.End()
	if err != nil {
		return nil, "", err
	}
	loc := s.cfg.Term.Location()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//course-advisor//schedule//EN")

	// UNTIL 取学期最后一天结束时刻
	until := time.Date(termEnd.Year(), termEnd.Month(), termEnd.Day(), 23, 59, 59, 0, loc).UTC()
	stamp := time.Now().UTC()

	for _, r := range rows {
		if !r.section.HasTimes() {
			continue
		}
		days := sectionDays(r.section.Days)
		if len(days) == 0 {
			continue
		}

		first := firstMeeting(termStart, days)
		start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc).
			Add(time.Duration(*r.section.StartMin) * time.Minute)
		end := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc).
			Add(time.Duration(*r.section.EndMin) * time.Minute)

		evt := cal.AddEvent(uuid.NewString() + "@course-advisor")
		evt.SetDtStampTime(stamp)
		evt.SetSummary(strings.TrimSpace(r.courseNumber + " " + r.section.Label))
		if r.courseName != "" {
			evt.SetDescription(r.courseName)
		}
		setEventTime(evt, ics.ComponentPropertyDtStart, start, loc)
		setEventTime(evt, ics.ComponentPropertyDtEnd, end, loc)
		evt.AddRrule(fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s", icsByDay(days), until.Format("20060102T150405Z")))
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("schedule_%s_%s.ics", s.cfg.Term.Name, shortID(schedule.ScheduleID))
	return buf, filename, nil
}

// ── 辅助函数 ──

// setEventTime 非 UTC 时区写入带 TZID 的本地时间，夏令时切换后上课时间不变
func setEventTime(evt *ics.VEvent, prop ics.ComponentProperty, t time.Time, loc *time.Location) {
	if loc == time.UTC {
		evt.SetProperty(prop, t.UTC().Format("20060102T150405Z"))
		return
	}
	evt.SetProperty(prop, t.In(loc).Format("20060102T150405"),
		&ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{loc.String()}})
}

var sectionDayOffsets = map[rune]int{'M': 0, 'T': 1, 'W': 2, 'R': 3, 'F': 4, 'S': 5, 'U': 6}

var icsDayNames = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// sectionDays 解析 "MWF" / "TR" 为去重后的日偏移，"TBA" 返回空
func sectionDays(days string) []int {
	if strings.EqualFold(strings.TrimSpace(days), "TBA") {
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, r := range strings.ToUpper(days) {
		if off, ok := sectionDayOffsets[r]; ok && !seen[off] {
			seen[off] = true
			out = append(out, off)
		}
	}
	sort.Ints(out)
	return out
}

func icsByDay(days []int) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = icsDayNames[d]
	}
	return strings.Join(names, ",")
}

// firstMeeting 学期开始当天或之后第一个上课日
func firstMeeting(termStart time.Time, days []int) time.Time {
	for i := 0; i < 7; i++ {
		d := termStart.AddDate(0, 0, i)
		off := weekdayOffset(d.Weekday())
		for _, day := range days {
			if day == off {
				return d
			}
		}
	}
	return termStart
}

func sectionTimeText(s *model.Section) string {
	if !s.HasTimes() {
		return "TBA"
	}
	return seed.MinutesToClock(*s.StartMin) + "-" + seed.MinutesToClock(*s.EndMin)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
