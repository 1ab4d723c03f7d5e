package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminTokenValidate(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (AdminToken{Token: tc.stored}).Validate(tc.input)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCheckHeader(t *testing.T) {
	v := AdminToken{Token: "s3cret"}
	require.NoError(t, CheckHeader(v, "Bearer s3cret"))
	require.NoError(t, CheckHeader(v, "bearer  s3cret "))
	require.ErrorIs(t, CheckHeader(v, "Bearer nope"), ErrUnauthorized)
	require.ErrorIs(t, CheckHeader(v, "Basic s3cret"), ErrUnauthorized)
	require.ErrorIs(t, CheckHeader(v, ""), ErrUnauthorized)

	_, ok := FromHeader("Bearer ")
	require.False(t, ok)
}
