package utils

import (
	"sync"
	"time"

	"feed-observer/src/logger"
	"feed-observer/src/models"
)

// MarketScheduler maps instruments to their exchange calendars
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar // by epic
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(instruments []models.MInstrument, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.MapInstrumentsToCalendars(instruments)
	return ms
}

// -----------------------------------------------------------------------------

// MapInstrumentsToCalendars replaces the mapping with the given instruments
func (ms *MarketScheduler) MapInstrumentsToCalendars(instruments []models.MInstrument) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar, len(instruments))

	// Share one calendar per MIC
	byMIC := make(map[string]*TradingCalendar)
	for _, inst := range instruments {
		cal, ok := byMIC[inst.Calendar]
		if !ok {
			cal = GetCalendar(inst.Calendar)
			byMIC[inst.Calendar] = cal
			if cal.Fallback {
				ms.Logger.Warning("No calendar for MIC '%s', using Mon-Fri 09:30-16:00 New York", inst.Calendar)
			}
		}
		ms.Calendars[inst.Epic] = cal
	}

	ms.Logger.Info("MarketScheduler: Mapped %d instruments to %d unique calendars.", len(instruments), len(byMIC))
}

// -----------------------------------------------------------------------------

// AddInstrument maps one more instrument
func (ms *MarketScheduler) AddInstrument(inst models.MInstrument) {
	cal := GetCalendar(inst.Calendar)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.Calendars[inst.Epic] = cal
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market of epic is open at t. Unknown epics are treated as open.
func (ms *MarketScheduler) IsOpen(epic string, t time.Time) bool {
	ms.mu.RLock()
	cal, ok := ms.Calendars[epic]
	ms.mu.RUnlock()

	if !ok {
		return true
	}
	return cal.IsOpen(t)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are open at t
func (ms *MarketScheduler) AnyMarketOpen(t time.Time) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, cal := range ms.Calendars {
		if cal.IsOpen(t) {
			return true
		}
	}
	return false
}
