package planner

import "strings"

// 星期代码到位图偏移：M T W R F → 0..4，其他字符忽略
var dayOffsets = map[rune]int{
	'M': 0,
	'T': 1,
	'W': 2,
	'R': 3,
	'F': 4,
}

// isTBA 上课日待定
func isTBA(days string) bool {
	return strings.EqualFold(strings.TrimSpace(days), "TBA")
}

// meetingDays 解析班次的上课日偏移，保持出现顺序并去重；"TBA" 没有上课日
func meetingDays(days string) []int {
	if isTBA(days) {
		return nil
	}
	var out []int
	var seen [5]bool
	for _, r := range days {
		off, ok := dayOffsets[r]
		if !ok || seen[off] {
			continue
		}
		seen[off] = true
		out = append(out, off)
	}
	return out
}

// IsAvailable 判断班次时间是否落在学生空闲时段内
//
// 位图下标为 day + 7*hour。从开始时间起每 60 分钟取样一次，
// 覆盖 [start, end)；不足一小时的末段不再单独取样。
// 下标越界或对应位不是 '1' 视为忙碌。无固定时间的班次返回 false。
func IsAvailable(s Section, bitmap string) bool {
	if !s.HasTimes() {
		return false
	}
	start, end := *s.Start, *s.End
	for _, day := range meetingDays(s.Days) {
		for m := start; m < end; m += 60 {
			idx := day + 7*(m/60)
			if idx < 0 || idx >= len(bitmap) || bitmap[idx] != '1' {
				return false
			}
		}
	}
	return true
}
