package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		region string
		want   string
		err    bool
	}{
		{name: "blank", raw: "  ", region: "US", want: ""},
		{name: "international", raw: "+44 121 234 5678", region: "US", want: "+441212345678"},
		{name: "national with region", raw: "(201) 555-0123", region: "US", want: "+12015550123"},
		{name: "garbage", raw: "call me", region: "US", err: true},
		{name: "too short", raw: "123", region: "US", err: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw, tc.region)
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
