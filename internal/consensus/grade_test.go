package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeForPercentage(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"},
		{95, "A+"},
		{94.9, "A"},
		{91, "A"},
		{85, "A"},
		{84, "B+"},
		{75, "B+"},
		{65, "B"},
		{55, "C+"},
		{45, "C"},
		{35, "D"},
		{34.9, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeForPercentage(tt.pct), "pct=%v", tt.pct)
	}
}

func TestMajorityGrade(t *testing.T) {
	tests := []struct {
		name   string
		grades []string
		want   string
		wantOK bool
	}{
		{
			name:   "clear majority",
			grades: []string{"A", "A", "B"},
			want:   "A",
			wantOK: true,
		},
		{
			name:   "unanimous",
			grades: []string{"B+", "B+"},
			want:   "B+",
			wantOK: true,
		},
		{
			name:   "all disagree",
			grades: []string{"A", "B", "C"},
			wantOK: false,
		},
		{
			name:   "two-way tie",
			grades: []string{"A", "A", "B", "B"},
			wantOK: false,
		},
		{
			name:   "single vote is no majority",
			grades: []string{"A"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := majorityGrade(tt.grades)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
