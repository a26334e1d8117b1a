package parser

import (
	"testing"
)

const sourceURL = "https://deals.example.com/Arkia/Home"

func card(dest, brand, price string) string {
	return `
<div class="show_item" con_desc="` + dest + `"
     data_number_ga_price="` + price + `" data_ga_currency="₪"
     data_ga_item_brand="` + brand + `">
  <div class="show_item_name">טיסה ל` + dest + `</div>
</div>`
}

func TestParseHTMLPrimary(t *testing.T) {
	html := `<html><body>
` + card("אתונה", "8/29/2025 7:30:00 AM-9/2/2025 6:00:00 PM", "300") + `
` + card("לרנקה", "9/5/2025 9:00:00 AM", "250") + `
</body></html>`

	p := testParser()
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2", len(offers))
	}
	// document order preserved
	if offers[0].Destination != "אתונה" || offers[1].Destination != "לרנקה" {
		t.Errorf("order = %q, %q", offers[0].Destination, offers[1].Destination)
	}
}

func TestParseHTMLDeduplicates(t *testing.T) {
	dup := card("אתונה", "8/29/2025 7:30:00 AM", "300")
	html := `<html><body>` + dup + dup + card("לרנקה", "9/5/2025 9:00:00 AM", "250") + `</body></html>`

	p := testParser()
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("got %d offers, want 2 after de-duplication", len(offers))
	}
}

func TestParseHTMLSkipsBadFragmentOnly(t *testing.T) {
	bad := `<div class="show_item"><div class="show_item_total_price">₪300</div></div>`
	html := `<html><body>` + bad + card("אתונה", "8/29/2025 7:30:00 AM", "300") + `</body></html>`

	p := testParser()
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1 (bad fragment skipped, sibling kept)", len(offers))
	}
}

func TestParseHTMLZeroOffers(t *testing.T) {
	p := testParser()
	offers, err := p.ParseHTML("<html><body><p>maintenance</p></body></html>", sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("got %d offers from an empty page, want 0", len(offers))
	}
}

func TestParseHTMLLooseMode(t *testing.T) {
	// no offer-card markup at all; the loose scan has to find the price,
	// a destination-like token and the DD/MM pair in the same vicinity
	html := `<html><body>
<div class="promo">
  <span>אתונה 20/11 - 23/11 רק ₪299</span>
  <a href="/deal/7">הזמינו</a>
</div>
</body></html>`

	p := NewParser("₪", true)
	p.now = testParser().now
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1 from loose scan", len(offers))
	}
	o := offers[0]
	if o.Destination == "" || o.GoDate != "2025-11-20" {
		t.Errorf("loose offer = %+v", o)
	}
	if o.AmountValue() != 299 || o.Currency != "₪" {
		t.Errorf("loose price = %v %s", o.Amount, o.Currency)
	}
	if o.Link != "https://deals.example.com/deal/7" {
		t.Errorf("loose link = %q", o.Link)
	}
}

func TestParseHTMLLooseModeStillRejects(t *testing.T) {
	// price with no destination or date nearby must not produce an offer
	html := `<html><body><div><span>₪299</span></div></body></html>`

	p := NewParser("₪", true)
	p.now = testParser().now
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("got %d offers, want 0", len(offers))
	}
}

func TestParseHTMLLooseOnlyWhenPrimaryAbsent(t *testing.T) {
	// a page that has offer cards must never take the loose path, even
	// in loose mode
	html := `<html><body>
` + card("אתונה", "8/29/2025 7:30:00 AM", "300") + `
<div class="promo"><span>זבל 20/11 רק ₪1</span></div>
</body></html>`

	p := NewParser("₪", true)
	p.now = testParser().now
	offers, err := p.ParseHTML(html, sourceURL)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(offers) != 1 || offers[0].Destination != "אתונה" {
		t.Fatalf("offers = %+v, want only the card offer", offers)
	}
}
