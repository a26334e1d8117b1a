// Package parser locates offer fragments in a fetched deals page and
// extracts normalized offers from them.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"flight-deals-bot/identity"
	"flight-deals-bot/models"

	"github.com/PuerkitoBio/goquery"
)

// offerSelector matches the offer-card markup of the deals page.
const offerSelector = "div.show_item"

var (
	digitRe   = regexp.MustCompile(`\d`)
	letterRe  = regexp.MustCompile(`[A-Za-zא-ת]`)
	splitRe   = regexp.MustCompile(`[0-9][0-9.,\s]*`)
	symPrefix = regexp.MustCompile(`[₪$€£]\s*([0-9][0-9.,]*)`)
	symSuffix = regexp.MustCompile(`([0-9][0-9.,]*)\s*[₪$€£]`)
)

// Parser extracts flight offers from HTML
type Parser struct {
	defaultCurrency string
	loose           bool

	// now is injectable so year resolution is testable
	now func() time.Time
}

// NewParser creates a new Parser instance. loose enables the degraded
// text-scan fallback for deployment variants where the offer-card
// markup is absent.
func NewParser(defaultCurrency string, loose bool) *Parser {
	return &Parser{
		defaultCurrency: defaultCurrency,
		loose:           loose,
		now:             time.Now,
	}
}

// ParseHTML extracts offers from a fetched page body. The result is
// de-duplicated on (destination, dates, price) in document order;
// a page with no recognizable offers yields an empty slice, not an
// error, so the caller can skip reconciliation without purging state.
func (p *Parser) ParseHTML(htmlContent string, sourceURL string) ([]models.Offer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", sourceURL, err)
	}

	var offers []models.Offer

	cards := doc.Find(offerSelector)
	cards.Each(func(i int, s *goquery.Selection) {
		if offer, ok := p.extractOffer(s, base); ok {
			offers = append(offers, *offer)
		}
	})

	// Degraded path: only when the structural marker is entirely absent
	if cards.Length() == 0 && p.loose {
		offers = p.looseScan(doc, base)
	}

	return dedupe(offers), nil
}

// looseScan is the degraded strategy: walk leaf text nodes for anything
// price-shaped, then look around it for a destination-like token and a
// pair of day/month tokens. Evidence here is much weaker, but the
// mandatory-field rule (destination + outbound date) still applies.
func (p *Parser) looseScan(doc *goquery.Document, base *url.URL) []models.Offer {
	var offers []models.Offer
	now := p.now()

	doc.Find("body *").Each(func(i int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := cleanText(s.Text())
		if text == "" || !digitRe.MatchString(text) {
			return
		}

		amount, currency := parseLoosePrice(text)
		if amount == nil && currency == "" {
			return
		}

		context := cleanText(s.Parent().Text())

		dest := destinationFromContext(context)
		if dest == "" {
			return
		}

		ddmm := dayMonthRe.FindAllString(context, 2)
		if len(ddmm) == 0 {
			return
		}
		goDate := normalizeDayMonth(ddmm[0], 0, now)
		if goDate == "" {
			return
		}
		backDate := ""
		if len(ddmm) > 1 {
			backDate = normalizeDayMonth(ddmm[1], 0, now)
		}

		if currency == "" && amount != nil {
			currency = p.defaultCurrency
		}

		link := ""
		if href, exists := s.Parent().Find("a[href]").First().Attr("href"); exists {
			link = resolveHref(base, strings.TrimSpace(href))
		}

		offers = append(offers, models.Offer{
			Name:        "✈️ טיסה ל" + dest,
			Destination: dest,
			Link:        link,
			Amount:      amount,
			Currency:    currency,
			GoDate:      goDate,
			BackDate:    backDate,
		})
	})

	return offers
}

// parseLoosePrice extracts a price from arbitrary text. A numeral next
// to a currency symbol wins over whatever numeral happens to come
// first; dates and other numbers share these text nodes.
func parseLoosePrice(text string) (*float64, string) {
	currency := detectCurrency(text)

	for _, re := range []*regexp.Regexp{symPrefix, symSuffix} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := normalizeNumber(m[1]); ok {
				return &v, currency
			}
		}
	}

	if currency == "" {
		return nil, ""
	}
	amount, _ := parseAmount(text)
	return amount, currency
}

// destinationFromContext splits the surrounding text around its
// numerals and keeps the first letter-bearing piece, capped to a sane
// length.
func destinationFromContext(context string) string {
	for _, part := range splitRe.Split(context, -1) {
		part = strings.Trim(part, " -–|·:,./")
		if part == "" || !letterRe.MatchString(part) {
			continue
		}
		if runes := []rune(part); len(runes) > 64 {
			part = string(runes[:64])
		}
		return part
	}
	return ""
}

// dedupe collapses offers sharing an identity key; the first
// encountered wins, matching document order.
func dedupe(offers []models.Offer) []models.Offer {
	if len(offers) == 0 {
		return offers
	}
	seen := make(map[string]bool, len(offers))
	out := offers[:0]
	for i := range offers {
		key := identity.Key(&offers[i])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, offers[i])
	}
	return out
}
