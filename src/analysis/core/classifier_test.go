package core

import (
	"testing"

	"feed-observer/src/models"
)

func TestClassifyNoData(t *testing.T) {
	c := Classify(nil, 0, 1000)
	if c.HasData || c.Direction != models.DirectionStale {
		t.Fatalf("unexpected classification %+v", c)
	}
	if c.Price != Placeholder || c.LastUpdated != Placeholder || c.Color != ColorWarning {
		t.Fatalf("expected placeholders, got %+v", c)
	}
}

func TestClassifyStaleBoundary(t *testing.T) {
	s := &models.MPriceSnapshot{Timestamp: 0, Close: 11000, DecimalPlaces: 4, Direction: models.DirectionBuy}

	fresh := Classify(s, 1, 9999)
	if fresh.Direction != models.DirectionBuy || fresh.LastUpdated != Placeholder || fresh.Color != ColorInfo {
		t.Fatalf("9999ms should be fresh, got %+v", fresh)
	}

	stale := Classify(s, 1, 10000)
	if stale.Direction != models.DirectionStale || stale.LastUpdated != "10s" || stale.Color != ColorWarning {
		t.Fatalf("10000ms should be stale, got %+v", stale)
	}
	if !stale.HasData || stale.Price != "1.1000" {
		t.Fatalf("stale must keep the price, got %+v", stale)
	}

	older := Classify(s, 1, 72500)
	if older.LastUpdated != "1m12s" {
		t.Fatalf("unexpected elapsed format %q", older.LastUpdated)
	}
}

func TestClassifySellColorAndFutureTimestamp(t *testing.T) {
	s := &models.MPriceSnapshot{Timestamp: 5000, Close: 10990, DecimalPlaces: 4, Direction: models.DirectionSell}
	c := Classify(s, 7, 1000)
	if c.Direction != models.DirectionSell || c.Color != ColorDanger {
		t.Fatalf("negative elapsed must be treated as fresh, got %+v", c)
	}
	if c.UpdateCount != 7 {
		t.Fatalf("update count not surfaced")
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		close int64
		dp    int32
		want  string
	}{
		{10990, 4, "1.0990"},
		{80005, 1, "8000.5"},
		{42, 0, "42"},
		{5, 3, "0.005"},
	}
	for _, tc := range cases {
		got := FormatPrice(models.MPriceSnapshot{Close: tc.close, DecimalPlaces: tc.dp})
		if got != tc.want {
			t.Fatalf("FormatPrice(%d, %d) = %s, want %s", tc.close, tc.dp, got, tc.want)
		}
	}
}
