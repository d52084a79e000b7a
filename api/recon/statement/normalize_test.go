package statement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"05/03/2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"05-03-2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"5-Mar-2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"20240305", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{" 2024-03-05 ", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseDate(c.in)
		require.NoError(t, err, c.in)
		assert.True(t, got.Equal(c.want), "%s parsed as %s", c.in, got)
	}

	_, err := ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("not a date")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"123,45", "123.45"},
		{"1,234", "1234"},
		{"-100.50", "-100.5"},
		{"(100.50)", "-100.5"},
		{"100.50-", "-100.5"},
		{"$ 2,500.00", "2500"},
		{"INR 750", "750"},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got.String(), "input %q", c.in)
	}

	_, err := ParseAmount("")
	assert.Error(t, err)
	_, err = ParseAmount("n/a")
	assert.Error(t, err)
}
