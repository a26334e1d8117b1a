package models

// Offer represents a single flight deal extracted from the source page.
// Optional fields use pointers so "unknown" stays distinct from zero.
type Offer struct {
	Name        string // display title, e.g. "✈️ טיסה לאתונה"
	Destination string // required
	Origin      string
	Provider    string
	Link        string

	Amount   *float64 // price in the source currency, nil when unknown
	Currency string   // symbol or code as seen on the page ("₪", "$", "EUR")

	GoDate     string // YYYY-MM-DD, required
	GoDepart   string // HH:MM, empty when unknown
	GoArrive   string
	BackDate   string // empty for one-way offers
	BackDepart string
	BackArrive string

	Seats *int // "N seats left" badge, nil when the badge is absent

	ItemID    string // raw source identifiers, kept for debugging
	SubItemID string
}

// Valid reports whether the offer carries the two fields nothing
// downstream can work without.
func (o *Offer) Valid() bool {
	return o != nil && o.Destination != "" && o.GoDate != ""
}

// AmountValue returns the price amount or 0 when unknown.
func (o *Offer) AmountValue() float64 {
	if o.Amount == nil {
		return 0
	}
	return *o.Amount
}

// SeatsValue returns the seat count or -1 when unknown.
func (o *Offer) SeatsValue() int {
	if o.Seats == nil {
		return -1
	}
	return *o.Seats
}
