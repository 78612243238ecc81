package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareTimestamps(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "100.000000001", "100.000000001", 0},
		{"seconds differ", "99.999999999", "100.000000000", -1},
		{"nanos differ", "100.000000001", "100.000000002", -1},
		{"greater", "200.5", "100.9", 1},
		{"empty sorts first", "", "0.000000001", -1},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareTimestamps(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareTimestamps(tt.b, tt.a))
		})
	}
}

func TestMaxTimestamp(t *testing.T) {
	assert.Equal(t, "100.000000002", MaxTimestamp("100.000000001", "100.000000002"))
	assert.Equal(t, "100.000000002", MaxTimestamp("100.000000002", ""))
	assert.Equal(t, "", MaxTimestamp("", ""))
}
