package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message only", NewErrorf("bad %s", "thing"), "bad thing"},
		{"with op", NewErrorf("bad").WithOperation("validate"), "validate: bad"},
		{"with component and op", NewErrorf("bad").WithOperation("validate").WithComponent("heavyball"), "heavyball: validate: bad"},
		{"wrapped", WrapErrorf(ErrDimensionMismatch, "q has length %d", 2), "dimension mismatch: q has length 2"},
		{"wrapped without message", &Error{Err: ErrSingular, Op: "minimizer"}, "minimizer: singular matrix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorChain(t *testing.T) {
	assert.Nil(t, WrapErrorf(nil, "ignored"))

	err := fmt.Errorf("outer: %w", WrapErrorf(ErrInvalidOptions, "maxiter").WithComponent("heavyball"))
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "heavyball", e.Component)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)

	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	zero := DefaultOptions()
	zero.MaxIter = 0
	assert.NoError(t, zero.Validate())

	bad := DefaultOptions()
	bad.MaxIter = -3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)

	assert.Equal(t, "alpha=0.01 beta=0.8 maxiter=1000 eps=1e-05", DefaultOptions().String())
}
