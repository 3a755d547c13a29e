package pidspec

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParse_Explicit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int
	}{
		{name: "single", raw: "42", want: []int{42}},
		{name: "ordered", raw: "30,10,20", want: []int{30, 10, 20}},
		{name: "duplicates kept", raw: "5,5,1,5", want: []int{5, 5, 1, 5}},
		{name: "zero", raw: "0", want: []int{0}},
		{name: "max pid", raw: strconv.Itoa(MaxPID), want: []int{MaxPID}},
		{name: "leading zeros", raw: "007", want: []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(strPtr(tt.raw), false)
			require.NoError(t, err)
			assert.False(t, spec.IsAll())
			assert.Equal(t, tt.want, spec.PIDs())
			assert.Equal(t, len(tt.want), spec.Len())
		})
	}
}

func TestParse_FlagCombinations(t *testing.T) {
	tests := []struct {
		name    string
		raw     *string
		all     bool
		wantAll bool
		wantErr error
	}{
		{name: "absent without all", raw: nil, all: false, wantErr: ErrMissingPidSpec},
		{name: "empty without all", raw: strPtr(""), all: false, wantErr: ErrMissingPidSpec},
		{name: "value with all", raw: strPtr("5"), all: true, wantErr: ErrConflictingPidSpec},
		{name: "absent with all", raw: nil, all: true, wantAll: true},
		{name: "empty with all", raw: strPtr(""), all: true, wantAll: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw, tt.all)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAll, spec.IsAll())
			assert.Nil(t, spec.PIDs())
		})
	}
}

func TestParse_InvalidTokens(t *testing.T) {
	tests := []struct {
		raw       string
		wantToken string
	}{
		{raw: "12,abc,7", wantToken: "abc"},
		{raw: "1,,2", wantToken: ""},
		{raw: "1,", wantToken: ""},
		{raw: ",1", wantToken: ""},
		{raw: "-1", wantToken: "-1"},
		{raw: "+3", wantToken: "+3"},
		{raw: " 3", wantToken: " 3"},
		{raw: "2147483648", wantToken: "2147483648"},
		{raw: "99999999999999999999999", wantToken: "99999999999999999999999"},
		{raw: "0x10", wantToken: "0x10"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := Parse(strPtr(tt.raw), false)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPid)

			var invalid *InvalidPIDError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.wantToken, invalid.Token)
			assert.Nil(t, spec.PIDs(), "no partial list on error")
		})
	}
}

func TestSpec_String(t *testing.T) {
	assert.Equal(t, "*", All().String())
	assert.Equal(t, "3,1,3", Explicit(3, 1, 3).String())
}

func TestExplicit_Copies(t *testing.T) {
	in := []int{1, 2}
	spec := Explicit(in...)
	in[0] = 99
	assert.Equal(t, []int{1, 2}, spec.PIDs())

	out := spec.PIDs()
	out[1] = 99
	assert.Equal(t, []int{1, 2}, spec.PIDs())
}
