package service

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"course-advisor/backend/internal/model"
)

// ── ICS 忙碌时段导入 ──────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 中每周重复的日程转换为每周空闲位图：
//   - 仅统计 RRULE FREQ=WEEKLY 且重复区间与学期相交的事件
//   - BYDAY 决定星期，缺省时取 DTSTART 的星期
//   - 事件覆盖到的每个整点小时都标记为忙碌，其余时段为空闲
//   - TRANSP:TRANSPARENT 的事件不占用时间
// ─────────────────────────────────────────────────────────────

const icsMaxFileSize = 2 * 1024 * 1024 // 2MB

// weeklyBlock 每周固定的忙碌时段
type weeklyBlock struct {
	Days     []int // 0=Monday … 6=Sunday，与位图的日偏移一致
	StartMin int
	EndMin   int
}

// icsImportResult 导入结果
type icsImportResult struct {
	Bitmap    string
	Events    int
	BusySlots int
}

// ParseBusyICS 解析 ICS 并生成空闲位图
func ParseBusyICS(reader io.Reader, termStart, termEnd time.Time, loc *time.Location) (*icsImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("读取 ICS 失败: %w", err)
	}
	if !bytes.Contains(bytes.ToUpper(data), []byte("BEGIN:VCALENDAR")) {
		return nil, fmt.Errorf("缺少 VCALENDAR")
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var blocks []weeklyBlock
	for _, evt := range cal.Events() {
		if b, ok := parseWeeklyBlock(evt, termStart, termEnd, loc); ok {
			blocks = append(blocks, b)
		}
	}

	bitmap := []byte(strings.Repeat("1", model.AvailabilitySlots))
	for _, b := range blocks {
		for _, day := range b.Days {
			for hour := b.StartMin / 60; hour <= (b.EndMin-1)/60; hour++ {
				if idx := day + 7*hour; idx >= 0 && idx < len(bitmap) {
					bitmap[idx] = '0'
				}
			}
		}
	}

	busy := 0
	for _, c := range bitmap {
		if c == '0' {
			busy++
		}
	}
	return &icsImportResult{Bitmap: string(bitmap), Events: len(blocks), BusySlots: busy}, nil
}

// parseWeeklyBlock 解析单个 VEVENT；非每周重复或与学期无交集时返回 false
func parseWeeklyBlock(evt *ics.VEvent, termStart, termEnd time.Time, loc *time.Location) (weeklyBlock, bool) {
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return weeklyBlock{}, false
	}

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return weeklyBlock{}, false
	}
	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		return weeklyBlock{}, false
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return weeklyBlock{}, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		d, ok := parseDuration(evt)
		if !ok {
			return weeklyBlock{}, false
		}
		dtEnd = dtStart.Add(d)
	}
	if !dtEnd.After(dtStart) {
		return weeklyBlock{}, false
	}

	if !recurrenceIntersects(rule, dtStart, termStart, termEnd) {
		return weeklyBlock{}, false
	}

	startMin := dtStart.Hour()*60 + dtStart.Minute()
	endMin := startMin + int(dtEnd.Sub(dtStart).Minutes())
	if endMin > 24*60 {
		endMin = 24 * 60 // 跨天事件截断到当天结束
	}

	days := rule.byDay
	if len(days) == 0 {
		days = []int{weekdayOffset(dtStart.Weekday())}
	}
	return weeklyBlock{Days: days, StartMin: startMin, EndMin: endMin}, true
}

// recurrenceIntersects 重复区间 [首次, 末次] 与学期 [termStart, termEnd] 相交
func recurrenceIntersects(rule rruleParams, dtStart, termStart, termEnd time.Time) bool {
	if dtStart.After(termEnd.AddDate(0, 0, 1)) {
		return false
	}
	last := time.Time{}
	if rule.count > 0 {
		last = dtStart.AddDate(0, 0, 7*rule.interval*(rule.count-1)+6)
	}
	if !rule.until.IsZero() && (last.IsZero() || rule.until.Before(last)) {
		last = rule.until
	}
	return last.IsZero() || !last.Before(termStart)
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
	byDay    []int
}

var icsDayOffsets = map[string]int{"MO": 0, "TU": 1, "WE": 2, "TH": 3, "FR": 4, "SA": 5, "SU": 6}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20251209T235959Z）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.count = n
			}
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		case "BYDAY":
			seen := map[int]bool{}
			for _, d := range strings.Split(strings.ToUpper(kv[1]), ",") {
				d = strings.TrimSpace(d)
				if len(d) > 2 {
					d = d[len(d)-2:] // 去掉 1MO / -1FR 之类的序号
				}
				if off, ok := icsDayOffsets[d]; ok && !seen[off] {
					seen[off] = true
					r.byDay = append(r.byDay, off)
				}
			}
		}
	}
	return r
}

// parseDuration 解析简单的 DURATION（PT1H30M / PT50M）
func parseDuration(evt *ics.VEvent) (time.Duration, bool) {
	p := evt.GetProperty(ics.ComponentProperty(ics.PropertyDuration))
	if p == nil {
		return 0, false
	}
	v := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(p.Value), "+"))
	if !strings.HasPrefix(v, "PT") {
		return 0, false
	}
	d, err := time.ParseDuration(strings.ToLower(strings.TrimPrefix(v, "PT")))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// weekdayOffset time.Weekday (0=Sunday) → 位图日偏移 (0=Monday … 6=Sunday)
func weekdayOffset(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("缺少属性 %s", propName)
	}
	val := prop.Value

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
