// Package ssim computes the Structural Similarity Index between two
// rasters. It is the expensive confirmation step behind the cheap pHash
// filter: O(width·height·window²), so callers must pre-filter candidates.
package ssim

import (
	"errors"
	"fmt"

	"photocull/internal/raster"
)

// DefaultWindowSize is the side of the sliding comparison window.
const DefaultWindowSize = 11

// Stabilizing constants from the reference SSIM formulation, for 8-bit
// luminance range.
const (
	c1 = (0.01 * 255) * (0.01 * 255)
	c2 = (0.03 * 255) * (0.03 * 255)
)

// ErrDimensionMismatch is returned when the two images differ in size.
// Inputs are never auto-resized.
var ErrDimensionMismatch = errors.New("image dimensions do not match")

// Compare computes the mean SSIM score of two same-sized images over all
// interior window positions. Border pixels within windowSize/2 of an edge
// are excluded; there is no wraparound. The score is approximately in
// [0, 1] and may exceed 1 slightly due to the stabilizing constants.
func Compare(a, b *raster.Image, windowSize int) (float64, error) {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if a.Width != b.Width || a.Height != b.Height {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d",
			ErrDimensionMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	if a.Width < windowSize || a.Height < windowSize {
		return 0, fmt.Errorf("image %dx%d smaller than %d px window",
			a.Width, a.Height, windowSize)
	}

	return CompareLuma(a.Luminance(), b.Luminance(), a.Width, a.Height, windowSize)
}

// CompareLuma is Compare over pre-extracted luminance planes of identical
// width×height layout. It lets callers that cache decoded luminance skip
// repeated conversion.
func CompareLuma(lumaA, lumaB []float64, width, height, windowSize int) (float64, error) {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if len(lumaA) != width*height || len(lumaB) != width*height {
		return 0, fmt.Errorf("%w: luminance planes %d and %d for %dx%d",
			ErrDimensionMismatch, len(lumaA), len(lumaB), width, height)
	}
	if width < windowSize || height < windowSize {
		return 0, fmt.Errorf("image %dx%d smaller than %d px window", width, height, windowSize)
	}

	half := windowSize / 2
	n := float64(windowSize * windowSize)

	var total float64
	var windows int

	for cy := half; cy < height-half; cy++ {
		for cx := half; cx < width-half; cx++ {
			var sumA, sumB float64
			for wy := cy - half; wy <= cy+half; wy++ {
				rowOff := wy * width
				for wx := cx - half; wx <= cx+half; wx++ {
					sumA += lumaA[rowOff+wx]
					sumB += lumaB[rowOff+wx]
				}
			}
			meanA := sumA / n
			meanB := sumB / n

			var varA, varB, cov float64
			for wy := cy - half; wy <= cy+half; wy++ {
				rowOff := wy * width
				for wx := cx - half; wx <= cx+half; wx++ {
					da := lumaA[rowOff+wx] - meanA
					db := lumaB[rowOff+wx] - meanB
					varA += da * da
					varB += db * db
					cov += da * db
				}
			}
			// Unbiased N-1 estimator.
			varA /= n - 1
			varB /= n - 1
			cov /= n - 1

			num := (2*meanA*meanB + c1) * (2*cov + c2)
			den := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
			total += num / den
			windows++
		}
	}

	return total / float64(windows), nil
}
