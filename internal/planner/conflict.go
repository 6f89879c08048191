package planner

// Overlaps 判断两个班次是否时间冲突
// 没有共同上课日不冲突；否则除非 a.End <= b.Start 或 a.Start >= b.End，均视为冲突
func Overlaps(a, b Section) bool {
	if !a.HasTimes() || !b.HasTimes() {
		return false
	}
	if !shareDay(a.Days, b.Days) {
		return false
	}
	return !(*a.End <= *b.Start || *a.Start >= *b.End)
}

func shareDay(a, b string) bool {
	var mask [5]bool
	for _, d := range meetingDays(a) {
		mask[d] = true
	}
	for _, d := range meetingDays(b) {
		if mask[d] {
			return true
		}
	}
	return false
}
