package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "2019-01-01 08:00:00", want: "2019-01-01 08:00:00"},
		{in: "2019-01-01T09:30:00", want: "2019-01-01 09:30:00"},
		{in: " 2019-01-01 09:00 ", want: "2019-01-01 09:00:00"},
		{in: "01/02/2019 10:15", want: "2019-01-02 10:15:00"},
		{in: "", want: ""},
		{in: "NaN", want: ""},
		{in: "not a date", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(Parse(tt.in, time.UTC)))
		})
	}
}

func TestParse_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	ts := Parse("2019-07-01 08:00:00", loc)
	require.NotNil(t, ts)
	assert.Equal(t, "America/Chicago", ts.Location().String())
	assert.Equal(t, 8, ts.Hour())
}
