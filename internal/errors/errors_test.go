package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBase = stderrors.New("boom")

func TestWrap_KeepsCode(t *testing.T) {
	inner := ValidationError("bad record", errBase)
	wrapped := Wrap(inner, "failed to load")

	assert.Equal(t, CodeValidationError, GetCode(wrapped))
	assert.ErrorIs(t, wrapped, errBase)
	assert.Equal(t, "failed to load: bad record: boom", wrapped.Error())
}

func TestWrap_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternalError, GetCode(Wrapf(errBase, "step %d", 3)))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, errBase)
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.ErrorIs(t, err, errBase)

	recoded := WithCode(CodeConfigInvalid, InvalidInput("bad mode"))
	assert.Equal(t, CodeConfigInvalid, GetCode(recoded))
	assert.Equal(t, "bad mode", recoded.Error())
}

func TestGetCode_Unknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(errBase))
}
