package filter

import (
	"flight-deals-bot/db"
)

// Filter applies a user's browse preferences to stored flights
type Filter struct {
	prefs *db.UserPrefs
}

// NewFilter creates a new Filter instance
func NewFilter(prefs *db.UserPrefs) *Filter {
	return &Filter{
		prefs: prefs,
	}
}

// Apply filters flights based on the user's preferences
func (f *Filter) Apply(flights []db.Flight) []db.Flight {
	var filtered []db.Flight

	for _, flight := range flights {
		if f.matches(flight) {
			filtered = append(filtered, flight)
		}
	}

	return filtered
}

// matches checks if a flight passes all preference criteria
func (f *Filter) matches(flight db.Flight) bool {
	// Price bounds apply only when the price is known. An offer without
	// an extractable price is never hidden by a price filter.
	if flight.Offer.Amount != nil {
		price := *flight.Offer.Amount
		if price < f.prefs.MinPrice || price > f.prefs.MaxPrice {
			return false
		}
	}

	selected := f.prefs.SelectedDestinations()
	if selected == nil {
		return true
	}
	for _, d := range selected {
		if flight.Offer.Destination == d {
			return true
		}
	}
	return false
}
