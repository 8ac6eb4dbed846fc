package analysis

import (
	"strings"
	"time"

	"feed-observer/src/analysis/core"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

// FeedFacade turns price stream views into display rows
type FeedFacade struct {
	VolumeWindow time.Duration
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewFeedFacade(volumeWindow time.Duration, log *logger.Logger) *FeedFacade {
	if volumeWindow <= 0 {
		volumeWindow = time.Minute
	}
	return &FeedFacade{
		VolumeWindow: volumeWindow,
		Logger:       log,
	}
}

// -----------------------------------------------------------------------------

// BuildPrices classifies every view at nowMs, keeping the order of views
func (f *FeedFacade) BuildPrices(views []interfaces.IPriceView, nowMs int64) []models.MFeedPrice {
	prices := make([]models.MFeedPrice, 0, len(views))
	for _, view := range views {
		prices = append(prices, f.BuildPrice(view, nowMs))
	}
	return prices
}

// -----------------------------------------------------------------------------

func (f *FeedFacade) BuildPrice(view interfaces.IPriceView, nowMs int64) models.MFeedPrice {
	inst := view.Instrument()

	// One history load serves both the latest entry and the volume scan
	history := view.History()
	var latest *models.MPriceSnapshot
	if n := len(history); n > 0 {
		last := history[n-1]
		latest = &last
	}

	c := core.Classify(latest, view.UpdateCount(), nowMs)

	return models.MFeedPrice{
		ID:          ElementID(inst.Epic),
		Epic:        inst.Epic,
		Instrument:  inst.Name,
		HasData:     c.HasData,
		Price:       c.Price,
		Direction:   c.Direction,
		LastUpdated: c.LastUpdated,
		UpdateCount: c.UpdateCount,
		Color:       c.Color,
		TickVolume:  core.TickVolume(history, f.VolumeWindow, nowMs),
	}
}

// -----------------------------------------------------------------------------

// ElementID makes an epic usable as a DOM id
func ElementID(epic string) string {
	return strings.ReplaceAll(epic, ".", "_")
}
