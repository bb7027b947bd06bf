package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, seoul)

	tests := []struct {
		name     string
		deadline string
		want     bool
	}{
		{name: "empty", deadline: "", want: false},
		{name: "garbage", deadline: "next friday", want: false},
		{name: "yesterday", deadline: "2026-02-28", want: true},
		{name: "today counts as open", deadline: "2026-03-01", want: false},
		{name: "local time passed", deadline: "2026-03-01T09:59:59", want: true},
		{name: "local time ahead", deadline: "2026-03-01 10:30", want: false},
		{name: "zoned instant passed", deadline: "2026-03-01T00:59:00Z", want: true},
		{name: "zoned instant ahead", deadline: "2026-03-01T01:30:00Z", want: false},
		{name: "padded", deadline: "  2026-02-01  ", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.deadline, now))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	assert.Equal(t, "2026-02-10 17:30", FormatTimestamp("2026-02-10T08:30:00Z", seoul))
	assert.Equal(t, "2026-02-10 08:30", FormatTimestamp("2026-02-10T08:30:00.123456", seoul))
	assert.Equal(t, "2026-02-10 00:00", FormatTimestamp("2026-02-10", seoul))
	assert.Equal(t, "sometime", FormatTimestamp("sometime", seoul))
	assert.Empty(t, FormatTimestamp(" ", seoul))
}
