// Package quality ranks near-duplicate images so the best frame of a group
// can be nominated automatically.
package quality

import "photocull/internal/models"

// Signal weights. They intentionally do not sum to 1; the score is a
// relative ranking signal within a group, never an absolute metric.
const (
	focusWeight    = 0.4
	eyesWeight     = 0.3
	faceAreaWeight = 0.2
	exposureWeight = 0.1
	ratingWeight   = 0.1
)

// Score combines externally supplied quality signals into a single value
// used to pick a group's representative. A term whose source data is
// absent contributes 0.
func Score(img *models.ImageRecord) float64 {
	var score float64

	if img.FocusScore != nil {
		score += focusWeight * *img.FocusScore
	}
	if len(img.Faces) > 0 {
		score += eyesWeight * eyesOpenRatio(img.Faces)
		score += faceAreaWeight * avgFaceAreaFraction(img.Faces)
	}
	if img.ExposureScore != nil {
		score += exposureWeight * *img.ExposureScore
	}
	score += ratingWeight * float64(img.Rating)

	return score
}

// eyesOpenRatio is the fraction of detected faces with both eyes open.
func eyesOpenRatio(faces []models.Face) float64 {
	open := 0
	for _, f := range faces {
		if f.EyesOpen() {
			open++
		}
	}
	return float64(open) / float64(len(faces))
}

// avgFaceAreaFraction is the mean image-area fraction covered by the
// detected face bounding boxes.
func avgFaceAreaFraction(faces []models.Face) float64 {
	var sum float64
	for _, f := range faces {
		sum += f.AreaFraction()
	}
	return sum / float64(len(faces))
}
