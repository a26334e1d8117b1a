package parser

import (
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flight-deals-bot/models"

	"github.com/PuerkitoBio/goquery"
)

// brandLayouts parse one half of the combined datetime attribute,
// e.g. "9/2/2025 6:00:00 PM". Day-first is tried before month-first;
// the source flips between locales and a half like "8/29/2025" only
// parses one way.
var brandLayouts = []string{
	"2/1/2006 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
}

var (
	numberRe   = regexp.MustCompile(`([0-9][0-9.,\s\x{00a0}\x{202f}]*)`)
	isoCodeRe  = regexp.MustCompile(`\b([A-Z]{3})\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{2}/\d{2})\b`)
	seatsRe    = regexp.MustCompile(`(\d+)\s*(?:מקום|מקומות|seat)`)
	schemeRe   = regexp.MustCompile(`(?i)^https?://`)
)

// cleanText collapses runs of whitespace (including NBSP) to single spaces
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func attrNonEmpty(s *goquery.Selection, name string) (string, bool) {
	v := cleanText(s.AttrOr(name, ""))
	return v, v != ""
}

// extractOffer converts one offer fragment into a normalized Offer.
// Pure function of the fragment and the base URL; a panic while
// extracting is absorbed and counts as a rejection of that fragment only.
func (p *Parser) extractOffer(s *goquery.Selection, base *url.URL) (offer *models.Offer, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered while extracting fragment: %v\n", r)
			offer, ok = nil, false
		}
	}()

	itemID, _ := attrNonEmpty(s, "ite_item")
	if itemID == "" {
		itemID, _ = attrNonEmpty(s, "data_ga_item_id")
	}
	subItemID, _ := attrNonEmpty(s, "ite_selappitem")

	dest, ok := p.destination(s)
	if !ok {
		return nil, false
	}

	amount, currency := p.price(s)

	goDate, goDepart, goArrive, backDate, backDepart, backArrive := p.dates(s)
	if goDate == "" {
		return nil, false
	}

	origin := cleanText(s.Find(".flight_go .from .text-gray").First().Text())
	provider, _ := attrNonEmpty(s, "data_ga_item_category4")

	seats := extractSeats(cleanText(s.Find(".spcial_message_bottom").Text()))

	link := p.link(s, base, itemID, subItemID)

	return &models.Offer{
		Name:        "✈️ טיסה ל" + dest,
		Destination: dest,
		Origin:      origin,
		Provider:    provider,
		Link:        link,
		Amount:      amount,
		Currency:    currency,
		GoDate:      goDate,
		GoDepart:    goDepart,
		GoArrive:    goArrive,
		BackDate:    backDate,
		BackDepart:  backDepart,
		BackArrive:  backArrive,
		Seats:       seats,
		ItemID:      itemID,
		SubItemID:   subItemID,
	}, true
}

// destination tries the structured attributes first and falls back to
// stripping the "flight to" prefix off the card title.
func (p *Parser) destination(s *goquery.Selection) (string, bool) {
	strategies := []func() (string, bool){
		func() (string, bool) { return attrNonEmpty(s, "con_desc") },
		func() (string, bool) { return attrNonEmpty(s, "data_ga_item_name") },
		func() (string, bool) {
			title := cleanText(s.Find(".show_item_name").First().Text())
			dest := strings.TrimSpace(strings.TrimPrefix(title, "טיסה ל"))
			return dest, dest != ""
		},
	}
	for _, try := range strategies {
		if v, ok := try(); ok {
			return v, true
		}
	}
	return "", false
}

// price prefers the structured numeric and currency attributes, then
// falls back to regex extraction from the rendered price text. A card
// with no recognizable numeral keeps an unknown price and survives.
func (p *Parser) price(s *goquery.Selection) (*float64, string) {
	priceText := cleanText(s.Find(".show_item_total_price").Text())

	var amount *float64
	if attr, ok := attrNonEmpty(s, "data_number_ga_price"); ok {
		if v, err := strconv.ParseFloat(attr, 64); err == nil {
			amount = &v
		}
	}
	if amount == nil {
		amount, _ = parseAmount(priceText)
	}

	currency, _ := attrNonEmpty(s, "data_ga_currency")
	if currency == "" {
		currency = detectCurrency(priceText)
	}
	if currency == "" && amount != nil {
		currency = p.defaultCurrency
	}

	return amount, currency
}

// parseAmount pulls the first numeral out of free text, normalizing
// thousands separators and decimal commas before parsing.
func parseAmount(text string) (*float64, bool) {
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	v, ok := normalizeNumber(m[1])
	if !ok {
		return nil, false
	}
	return &v, true
}

// normalizeNumber turns "1,234", "1 234", "1.234,56" and "300.50" into
// plain floats. When both separators appear, the last one wins as the
// decimal mark; a lone comma followed by exactly three digits is a
// thousands separator.
func normalizeNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.Trim(s, ".,")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// detectCurrency recognizes the shekel symbol and its textual spellings,
// a handful of common symbols, and bare 3-letter ISO codes.
func detectCurrency(text string) string {
	switch {
	case strings.Contains(text, "₪"),
		strings.Contains(text, "ש\"ח"),
		strings.Contains(text, "ש״ח"),
		strings.Contains(text, "שח"):
		return "₪"
	case strings.Contains(text, "$"):
		return "$"
	case strings.Contains(text, "€"):
		return "€"
	case strings.Contains(text, "£"):
		return "£"
	}
	if m := isoCodeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// dates merges the three date/time sources per their precedence: the
// combined datetime attribute wins for date+year, the per-leg clock
// elements win for times, and the summary-line DD/MM tokens fill in
// whatever the structured data does not cover.
func (p *Parser) dates(s *goquery.Selection) (goDate, goDepart, goArrive, backDate, backDepart, backArrive string) {
	brandGo, brandBack := parseBrandRange(s.AttrOr("data_ga_item_brand", ""))

	summary := cleanText(s.Find(".show_item_details").Text())
	ddmm := dayMonthRe.FindAllString(summary, 2)

	now := p.now()

	if !brandGo.IsZero() {
		goDate = brandGo.Format("2006-01-02")
	} else if len(ddmm) > 0 {
		goDate = normalizeDayMonth(ddmm[0], 0, now)
	}

	if !brandBack.IsZero() {
		backDate = brandBack.Format("2006-01-02")
	} else if len(ddmm) > 1 {
		hint := 0
		if !brandGo.IsZero() {
			hint = brandGo.Year()
		}
		backDate = normalizeDayMonth(ddmm[1], hint, now)
	}

	goDepart = cleanText(s.Find(".flight_go .from .flight_hourTime").First().Text())
	goArrive = cleanText(s.Find(".flight_go .to .flight_hourTime").First().Text())
	backDepart = cleanText(s.Find(".flight_back .from .flight_hourTime").First().Text())
	backArrive = cleanText(s.Find(".flight_back .to .flight_hourTime").First().Text())

	if goDepart == "" && !brandGo.IsZero() {
		goDepart = brandGo.Format("15:04")
	}
	if backDepart == "" && !brandBack.IsZero() {
		backDepart = brandBack.Format("15:04")
	}

	return
}

// parseBrandRange parses the combined attribute value, e.g.
// "9/2/2025 6:00:00 PM-8/29/2025 7:30:00 AM". The two halves are sorted
// chronologically; the source emits them in either order.
func parseBrandRange(brand string) (goDT, backDT time.Time) {
	if brand == "" {
		return
	}
	var parsed []time.Time
	for _, part := range strings.Split(brand, "-") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, layout := range brandLayouts {
			if dt, err := time.Parse(layout, part); err == nil {
				parsed = append(parsed, dt)
				break
			}
		}
	}
	if len(parsed) == 0 {
		return
	}
	if len(parsed) > 1 && parsed[1].Before(parsed[0]) {
		parsed[0], parsed[1] = parsed[1], parsed[0]
	}
	goDT = parsed[0]
	if len(parsed) > 1 {
		backDT = parsed[1]
	}
	return
}

// normalizeDayMonth resolves a year-less "DD/MM" token to YYYY-MM-DD.
// With no year hint it assumes the current year and rolls forward one
// year when the resulting date is already in the past.
func normalizeDayMonth(token string, yearHint int, now time.Time) string {
	parts := strings.SplitN(token, "/", 2)
	if len(parts) != 2 {
		return ""
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return ""
	}

	year := yearHint
	if year == 0 {
		year = now.Year()
	}
	dt := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if yearHint == 0 {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if dt.Before(today) {
			dt = time.Date(year+1, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}
	return dt.Format("2006-01-02")
}

// extractSeats reads the leading integer of a "N seats left"-style
// badge. No badge means unknown, which is not the same as zero.
func extractSeats(text string) *int {
	m := seatsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// link resolves the first anchor against the base URL, handling
// protocol-relative and path-relative forms, and synthesizes a stable
// URL from the item identifier when the card carries no anchor.
func (p *Parser) link(s *goquery.Selection, base *url.URL, itemID, subItemID string) string {
	href, exists := s.Find("a[href]").First().Attr("href")
	if exists && strings.TrimSpace(href) != "" {
		return resolveHref(base, strings.TrimSpace(href))
	}
	id := itemID
	if id == "" {
		id = subItemID
	}
	return base.String() + "?item=" + url.QueryEscape(id)
}

func resolveHref(base *url.URL, href string) string {
	if strings.HasPrefix(href, "//") {
		scheme := base.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + ":" + href
	}
	if schemeRe.MatchString(href) {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
