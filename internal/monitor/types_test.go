package monitor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestThresholdsIsBig(t *testing.T) {
	th := Thresholds{Size: d("500"), Value: d("100")}

	tests := []struct {
		name  string
		size  string
		price string
		want  bool
	}{
		{"big by size", "600", "0.5", true},
		{"big by value", "400", "0.3", true}, // 400*0.3 = 120 >= 100
		{"size exactly at threshold", "500", "0.01", true},
		{"value exactly at threshold", "200", "0.5", true}, // 200*0.5 = 100
		{"neither", "50", "0.1", false},                    // value 5
		{"just under size, just under value", "499", "0.2", false},
		{"zero size", "0", "0.5", false},
		{"negative size", "-600", "0.5", false},
		{"negative price", "600", "-0.5", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, th.IsBig(d(tc.size), d(tc.price)))
		})
	}
}

func TestThresholdsMonotonic(t *testing.T) {
	// Raising a threshold can only shrink the set of flagged orders.
	low := Thresholds{Size: d("100"), Value: d("50")}
	high := Thresholds{Size: d("1000"), Value: d("500")}

	sizes := []string{"50", "150", "600", "2000"}
	prices := []string{"0.1", "0.5", "0.9"}
	for _, s := range sizes {
		for _, p := range prices {
			if high.IsBig(d(s), d(p)) {
				assert.True(t, low.IsBig(d(s), d(p)),
					"flagged at high thresholds but not low: size=%s price=%s", s, p)
			}
		}
	}
}

func TestOrderValue(t *testing.T) {
	o := Order{Price: d("0.45"), Size: d("1000")}
	assert.True(t, o.Value().Equal(d("450")))
}

func TestObservationID(t *testing.T) {
	o := Order{TokenID: "tok1", Side: SideBid, Price: d("0.45"), Size: d("1000")}
	assert.Equal(t, "tok1_BID_0.45_1000", o.ObservationID())

	// Same observation yields the same ID.
	same := Order{TokenID: "tok1", Side: SideBid, Price: d("0.45"), Size: d("1000")}
	assert.Equal(t, o.ObservationID(), same.ObservationID())

	// Any differing field yields a different ID.
	assert.NotEqual(t, o.ObservationID(), Order{TokenID: "tok2", Side: SideBid, Price: d("0.45"), Size: d("1000")}.ObservationID())
	assert.NotEqual(t, o.ObservationID(), Order{TokenID: "tok1", Side: SideAsk, Price: d("0.45"), Size: d("1000")}.ObservationID())
	assert.NotEqual(t, o.ObservationID(), Order{TokenID: "tok1", Side: SideBid, Price: d("0.46"), Size: d("1000")}.ObservationID())
	assert.NotEqual(t, o.ObservationID(), Order{TokenID: "tok1", Side: SideBid, Price: d("0.45"), Size: d("999")}.ObservationID())
}
