package coerce

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"short string", "750", "00750"},
		{"four digits", "1001", "01001"},
		{"already padded", "33000", "33000"},
		{"json number", json.Number("1001"), "01001"},
		{"float column", 1001.0, "01001"},
		{"stringified float", "1001.0", "01001"},
		{"int", 750, "00750"},
		{"int64", int64(6000), "06000"},
		{"corsica", "2A004", "2A004"},
		{"whitespace", " 33000 ", "33000"},
		{"nil", nil, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.in))
		})
	}
}

func TestCodeAlwaysFiveChars(t *testing.T) {
	for n := 1; n < 100000; n += 7919 {
		assert.Len(t, Code(fmt.Sprint(n)), CodeLength, "input %d", n)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"comma decimal", "12,5", ptr(12.5)},
		{"dot decimal", "12.5", ptr(12.5)},
		{"thousands space", "1 234,5", ptr(1234.5)},
		{"nbsp thousands", "1\u00a0234", ptr(1234)},
		{"json number", json.Number("9.75"), ptr(9.75)},
		{"float", 3.0, ptr(3)},
		{"int", 7, ptr(7)},
		{"empty", "", nil},
		{"text", "maison", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestDate(t *testing.T) {
	want := time.Date(2023, time.March, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"date only", "2023-03-14", true},
		{"rfc3339", "2023-03-14T10:20:30Z", true},
		{"timestamp", "2023-03-14 10:20:30", true},
		{"french", "14/03/2023", true},
		{"time value", time.Date(2023, 3, 14, 18, 0, 0, 0, time.UTC), true},
		{"garbage", "not a date", false},
		{"empty", "", false},
		{"number", 20230314, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %v", got)
			}
		})
	}
}

func ptr(f float64) *float64 {
	return &f
}
