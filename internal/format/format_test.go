package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	cases := []struct {
		part, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
	}
	for _, c := range cases {
		got := Percent(c.part, c.total)
		assert.Equal(t, c.want, got)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1000, "1s"},
		{59_000, "59s"},
		{60_000, "1m"},
		{120_000, "2m"},
		{90_000, "1m 30s"},
		{75_500, "1m 15s"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.ms))
	}
}
