package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"feed-observer/src/analysis/core"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/streaming"
)

func TestEURUSDScenario(t *testing.T) {
	inst := models.MInstrument{Epic: "CS.D.EURUSD.MINI.IP", Name: "EURUSD", Precision: 4}
	stream := streaming.NewInstrumentPriceStream(inst, 512, 0)

	ticks := []struct {
		ts        int64
		price     string
		direction models.MDirection
	}{
		{0, "1.1000", models.DirectionBuy},
		{5000, "1.1005", models.DirectionBuy},
		{16000, "1.0990", models.DirectionSell},
	}
	for _, tk := range ticks {
		err := stream.OnTick(models.MPriceTick{
			Epic:      inst.Epic,
			Timestamp: tk.ts,
			Price:     decimal.RequireFromString(tk.price),
			Direction: tk.direction,
		})
		if err != nil {
			t.Fatalf("tick at %d rejected: %v", tk.ts, err)
		}
	}

	facade := NewFeedFacade(60*time.Second, logger.NewNopLogger())
	views := []interfaces.IPriceView{stream}

	// 1s after the last tick the price is still current
	at17 := facade.BuildPrices(views, 17000)[0]
	if at17.Direction != models.DirectionSell || at17.LastUpdated != core.Placeholder {
		t.Fatalf("unexpected row at 17000: %+v", at17)
	}

	at26 := facade.BuildPrices(views, 26000)[0]
	if at26.Direction != models.DirectionStale || at26.LastUpdated != "10s" {
		t.Fatalf("unexpected row at 26000: %+v", at26)
	}

	for _, row := range []models.MFeedPrice{at17, at26} {
		if row.Price != "1.0990" || row.UpdateCount != 3 || row.TickVolume != 3 {
			t.Fatalf("unexpected price/count/volume %+v", row)
		}
		if row.ID != "CS_D_EURUSD_MINI_IP" || row.Instrument != "EURUSD" {
			t.Fatalf("unexpected identity %+v", row)
		}
	}
}

func TestBuildPriceWithoutData(t *testing.T) {
	inst := models.MInstrument{Epic: "IX.D.FTSE.DAILY.IP", Name: "FTSE 100", Precision: 1}
	stream := streaming.NewInstrumentPriceStream(inst, 8, 0)

	row := NewFeedFacade(0, logger.NewNopLogger()).BuildPrice(stream, 1000)
	if row.HasData || row.Price != core.Placeholder || row.Direction != models.DirectionStale {
		t.Fatalf("unexpected empty row %+v", row)
	}
	if row.TickVolume != 0 || row.UpdateCount != 0 {
		t.Fatalf("empty stream must report zero counts")
	}
}
