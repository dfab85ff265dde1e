package errors_test

import (
	stderrors "errors"
	"testing"

	apperr "github.com/CS-5/apalto-bot/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := apperr.New(
		apperr.CodeInvalidCategory,
		"category belongs to another guild",
		apperr.FieldGuildID("111"),
		apperr.FieldChannelID("222"),
	)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidCategory, apperr.CodeOf(err))
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidCategory))
	assert.True(t, apperr.IsInvalidInput(err))

	fields := apperr.FieldsOf(err)
	assert.Equal(t, "111", fields["guild_id"])
	assert.Equal(t, "222", fields["channel_id"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("missing access")
	err := apperr.Errorf(apperr.CodePermissionEditFailed, "editing overwrites: %w", inner)

	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, apperr.CodePermissionEditFailed, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "missing access")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, apperr.Wrap(nil, apperr.CodeChannelNotFound, "gone"))
	assert.NoError(t, apperr.Wrapf(nil, apperr.CodeChannelNotFound, "gone %s", "x"))
}

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := apperr.New(apperr.CodeChannelNotFound, "unknown channel")
	err := apperr.Wrap(inner, apperr.CodePermissionEditFailed, "granting leader")

	assert.Equal(t, apperr.CodeChannelNotFound, apperr.CodeOf(err))
	assert.True(t, apperr.IsNotFound(err))
}

func TestPlainErrorHasNoCode(t *testing.T) {
	err := stderrors.New("boom")
	assert.Equal(t, apperr.Code(""), apperr.CodeOf(err))
	assert.False(t, apperr.IsNotFound(err))
	assert.Nil(t, apperr.FieldsOf(err))
	assert.False(t, apperr.HasCode(nil, apperr.CodeChannelNotFound))
}
