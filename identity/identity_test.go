package identity

import (
	"testing"

	"flight-deals-bot/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func baseOffer() *models.Offer {
	return &models.Offer{
		Name:        "✈️ טיסה לאתונה",
		Destination: "אתונה",
		Link:        "https://example.com/deal/1",
		Amount:      floatPtr(300),
		Currency:    "₪",
		GoDate:      "2025-08-29",
		BackDate:    "2025-09-02",
	}
}

func TestKeyStability(t *testing.T) {
	a := baseOffer()
	b := baseOffer()
	// fields outside the key tuple must not move the key
	b.Link = "https://example.com/deal/other"
	b.Seats = intPtr(2)
	b.GoDepart = "06:00"

	if Key(a) != Key(b) {
		t.Errorf("offers with identical key fields got different keys: %s vs %s", Key(a), Key(b))
	}
}

func TestKeyDiffersPerField(t *testing.T) {
	base := baseOffer()

	mutations := map[string]func(*models.Offer){
		"destination": func(o *models.Offer) { o.Destination = "לרנקה" },
		"go date":     func(o *models.Offer) { o.GoDate = "2025-08-30" },
		"back date":   func(o *models.Offer) { o.BackDate = "" },
		"price":       func(o *models.Offer) { o.Amount = floatPtr(250) },
	}

	for name, mutate := range mutations {
		o := baseOffer()
		mutate(o)
		if Key(o) == Key(base) {
			t.Errorf("mutating %s did not change the key", name)
		}
	}
}

func TestKeyUnknownPrice(t *testing.T) {
	a := baseOffer()
	a.Amount = nil
	b := baseOffer()
	b.Amount = nil

	if Key(a) != Key(b) {
		t.Error("two offers with unknown price should share a key")
	}
	if Key(a) == Key(baseOffer()) {
		t.Error("unknown price should not collide with a priced offer")
	}
}

func TestChanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Offer)
		want   bool
	}{
		{"identical", func(o *models.Offer) {}, false},
		{"link churn", func(o *models.Offer) { o.Link = "https://example.com/new" }, true},
		{"seats appear", func(o *models.Offer) { o.Seats = intPtr(3) }, true},
		{"depart time", func(o *models.Offer) { o.GoDepart = "07:15" }, true},
		{"provider", func(o *models.Offer) { o.Provider = "Arkia" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := baseOffer()
			fresh := baseOffer()
			tt.mutate(fresh)
			if got := Changed(old, fresh); got != tt.want {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangedSeatsValue(t *testing.T) {
	old := baseOffer()
	old.Seats = intPtr(2)
	fresh := baseOffer()
	fresh.Seats = intPtr(1)
	if !Changed(old, fresh) {
		t.Error("seat count change should be a change")
	}

	fresh.Seats = intPtr(2)
	if Changed(old, fresh) {
		t.Error("equal seat counts should not be a change")
	}
}
