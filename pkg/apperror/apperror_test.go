package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromUnwrapsChain(t *testing.T) {
	base := NotFound("coupon not found")
	wrapped := fmt.Errorf("redeem: %w", base)

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestUntypedErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Nil(t, From(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestModuleNotEnabledIsDistinguishable(t *testing.T) {
	generic := Forbidden("insufficient permissions")
	module := ModuleNotEnabled("customer_segmentation")

	assert.Equal(t, generic.Status, module.Status)
	assert.NotEqual(t, generic.Code, module.Code)
	assert.False(t, errors.Is(module, generic))
	assert.True(t, errors.Is(module, ModuleNotEnabled("other")))
}

func TestWrapKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(nil).Wrap(cause)

	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
