package planner

import "testing"

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Section
		want bool
	}{
		{"同日部分重叠", sec("a", "X", "M", 540, 600), sec("b", "Y", "M", 570, 630), true},
		{"首尾相接不冲突", sec("a", "X", "MW", 540, 600), sec("b", "Y", "W", 600, 660), false},
		{"包含", sec("a", "X", "TR", 540, 700), sec("b", "Y", "R", 560, 600), true},
		{"完全相同", sec("a", "X", "F", 540, 600), sec("b", "Y", "F", 540, 600), true},
		{"不同日", sec("a", "X", "MWF", 540, 600), sec("b", "Y", "TR", 540, 600), false},
		{"同日不相交", sec("a", "X", "M", 540, 600), sec("b", "Y", "M", 700, 750), false},
		{"缺少时间", tba("a", "X"), sec("b", "Y", "M", 540, 600), false},
		{"TBA 带时间不与周二冲突", Section{ID: "a", CourseNumber: "X", Days: "TBA", Start: intp(600), End: intp(650)}, sec("b", "Y", "T", 600, 650), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlaps(a, b) = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("Overlaps(b, a) = %v, want %v", got, tt.want)
			}
		})
	}
}
