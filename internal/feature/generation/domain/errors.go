// Package domain defines domain-level errors for the generation feature.
package domain

import "errors"

var (
	// ErrEmptyPrompt indicates that the prompt is empty after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrUnsupportedAspectRatio indicates an aspect ratio outside the supported set.
	ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")

	// ErrUnsupportedReferenceImage indicates a reference image that is too large,
	// malformed, or rejected by the image generator.
	ErrUnsupportedReferenceImage = errors.New("unsupported reference image")

	// ErrInsufficientCredits indicates that the current user has no credits left.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrGenerationFailed is matched by every *GenerationError.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNoImageReturned indicates that the generator answered without an image.
	ErrNoImageReturned = errors.New("no image returned")

	// ErrDeductionFailed indicates that the image was produced but the credit could not be
	// deducted. The image is discarded and nothing is charged.
	ErrDeductionFailed = errors.New("credit deduction failed")
)

// Public reasons attached to a GenerationError.
const (
	ReasonNoImage        = "The model did not return an image. Please try a more descriptive prompt."
	ReasonReferenceImage = "The image service couldn't process the uploaded image. Try a smaller file or a different format (JPG/PNG)."
	ReasonTimeout        = "Image generation timed out. Please try again."
	ReasonBusy           = "The image service is busy. Please try again in a moment."
	ReasonStorage        = "The generated image could not be saved. Please try again."
	ReasonGeneric        = "Image generation failed. Please try again."
)

// GenerationError wraps a failure of the external image generation call.
// Reason is safe to show to users; Err is the underlying cause.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation failed: " + e.Reason
	}
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is makes every GenerationError match ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}
