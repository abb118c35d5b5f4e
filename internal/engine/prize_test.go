package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePrize(t *testing.T) {
	tests := []struct {
		name      string
		chance    int
		amount    int64
		houseEdge int
		want      int64
	}{
		{"even money no edge", 50, 100, 0, 200},
		{"even money default edge", 50, 100, 1, 198},
		{"long shot", 1, 100, 1, 9900},
		{"near certain", 98, 100, 1, 101},
		{"one in three", 3, 100, 1, 3300},
		{"truncation drops remainder", 7, 100, 1, 1414}, // 9900/7 = 1414.28...
		{"high edge", 50, 100, 10, 180},
		{"max edge", 50, 100, 99, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculatePrize(tt.chance, tt.amount, tt.houseEdge))
		})
	}
}
