package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2026, time.March, 10)

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-10"`, string(b))

	var parsed Date
	require.NoError(t, parsed.UnmarshalJSON(b))
	assert.True(t, d.Equal(parsed.Time))
}

func TestDateUnmarshalRejectsBadFormat(t *testing.T) {
	var d Date
	err := d.UnmarshalJSON([]byte(`"10/03/2026"`))
	assert.Error(t, err)
}

func TestDateUnmarshalNull(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.True(t, d.IsZero())
}

func TestDateArithmetic(t *testing.T) {
	start := NewDate(2026, time.January, 31)

	end := start.AddDays(30)
	assert.Equal(t, "2026-03-02", end.String())
	assert.Equal(t, 30, start.DaysUntil(end))
	assert.Equal(t, -30, end.DaysUntil(start))

	assert.True(t, start.Before(end))
	assert.False(t, end.Before(start))
	assert.False(t, start.Before(start))
}

func TestDateScan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan(time.Date(2026, time.March, 10, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2026-03-10", d.String())

	require.NoError(t, d.Scan([]byte("2026-03-10")))
	assert.Equal(t, "2026-03-10", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}
