package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationError(t *testing.T) {
	cause := fmt.Errorf("%w: vendor said INVALID_ARGUMENT", ErrUnsupportedReferenceImage)
	err := error(&GenerationError{Reason: ReasonReferenceImage, Err: cause})

	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ErrUnsupportedReferenceImage)
	assert.NotErrorIs(t, err, ErrDeductionFailed)

	var ge *GenerationError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &ge))
	assert.Equal(t, ReasonReferenceImage, ge.Reason)
	assert.Contains(t, err.Error(), "INVALID_ARGUMENT")

	assert.Equal(t, "generation failed: "+ReasonGeneric, (&GenerationError{Reason: ReasonGeneric}).Error())
}
