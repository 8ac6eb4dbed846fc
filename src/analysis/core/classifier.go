package core

import (
	"time"

	"feed-observer/src/models"
)

const (
	// StaleThreshold is the age at which a price stops being current. Inclusive.
	StaleThreshold = 10 * time.Second

	// Placeholder is rendered for values that do not exist yet
	Placeholder = "-"

	ColorWarning = "warning"
	ColorInfo    = "info"
	ColorDanger  = "danger"
)

// -----------------------------------------------------------------------------

// Classify derives the display state of the latest snapshot of a stream.
// latest is nil when the stream has no data.
func Classify(latest *models.MPriceSnapshot, updateCount int64, nowMs int64) models.MClassification {
	if latest == nil {
		return models.MClassification{
			HasData:     false,
			Direction:   models.DirectionStale,
			Price:       Placeholder,
			LastUpdated: Placeholder,
			UpdateCount: updateCount,
			Color:       ColorWarning,
		}
	}

	c := models.MClassification{
		HasData:     true,
		Price:       FormatPrice(*latest),
		UpdateCount: updateCount,
	}

	elapsed := Elapsed(latest.Timestamp, nowMs)
	if elapsed >= StaleThreshold {
		c.Direction = models.DirectionStale
		c.LastUpdated = elapsed.String()
		c.Color = ColorWarning
		return c
	}

	c.Direction = latest.Direction
	c.LastUpdated = Placeholder
	c.Color = DirectionColor(latest.Direction)
	return c
}

// -----------------------------------------------------------------------------

// Elapsed is the age of a timestamp truncated to whole seconds. Clock skew is clamped to 0.
func Elapsed(timestampMs, nowMs int64) time.Duration {
	ms := nowMs - timestampMs
	if ms < 0 {
		ms = 0
	}
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second)
}

// -----------------------------------------------------------------------------

func DirectionColor(direction models.MDirection) string {
	switch direction {
	case models.DirectionBuy:
		return ColorInfo
	case models.DirectionSell:
		return ColorDanger
	default:
		return ColorWarning
	}
}

// -----------------------------------------------------------------------------

// FormatPrice renders the fixed-point close with exactly DecimalPlaces digits
func FormatPrice(s models.MPriceSnapshot) string {
	return s.Price().StringFixed(s.DecimalPlaces)
}
