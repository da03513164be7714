package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name               string
		page, size         int
		wantPage, wantSize int
	}{
		{"defaults", 0, 0, 1, 20},
		{"negative", -3, -1, 1, 20},
		{"within bounds", 4, 50, 4, 50},
		{"capped", 1, 1000, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := Normalize(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p)
			assert.Equal(t, tt.wantSize, s)
		})
	}
}

func TestFromSkipTake(t *testing.T) {
	p, s := FromSkipTake(0, 10)
	assert.Equal(t, 1, p)
	assert.Equal(t, 10, s)

	p, s = FromSkipTake(25, 10)
	assert.Equal(t, 3, p)
	assert.Equal(t, 10, s)

	p, s = FromSkipTake(-5, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, DefaultSize, s)
}
