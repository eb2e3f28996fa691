package errors_test

import (
	"fmt"
	"testing"

	"github.com/moleculadb/insertdest/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("Is", func(t *testing.T) {
		uncoded := errors.New(errors.ErrUncoded, "uncoded error")
		unavailable := errors.New(errors.BlockUnavailable, "block 12 unavailable")
		mismatch := errors.New(errors.SchemaMismatch, "custom field message")

		tests := []struct {
			err    error
			target errors.Code
			exp    bool
		}{
			{err: uncoded, target: errors.ErrUncoded, exp: true},
			{err: uncoded, target: errors.BlockUnavailable, exp: false},
			{err: unavailable, target: errors.BlockUnavailable, exp: true},
			{err: unavailable, target: errors.SchemaMismatch, exp: false},
			{err: errors.Wrap(unavailable, "with message"), target: errors.BlockUnavailable, exp: true},
			{err: mismatch, target: errors.SchemaMismatch, exp: true},
		}

		for i, test := range tests {
			t.Run(fmt.Sprintf("test-%d", i), func(t *testing.T) {
				got := errors.Is(test.err, test.target)
				assert.Equal(t, test.exp, got)
			})
		}
	})

	t.Run("Newf", func(t *testing.T) {
		err := errors.Newf(errors.BlockUnavailable, "block %d unavailable", 12)
		assert.Equal(t, "block 12 unavailable", err.Error())
		assert.True(t, errors.Is(err, errors.BlockUnavailable))
	})

	t.Run("WithCode", func(t *testing.T) {
		assert.Nil(t, errors.WithCode(nil, errors.BusSendFailed))

		underlying := fmt.Errorf("connection refused")
		coded := errors.WithCode(underlying, errors.BusSendFailed)
		assert.Equal(t, "connection refused", coded.Error())
		assert.True(t, errors.Is(coded, errors.BusSendFailed))
	})
}
