package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"flight-deals-bot/db"
	"flight-deals-bot/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestFormatFlights(t *testing.T) {
	flights := []db.Flight{
		{
			Offer: models.Offer{
				Name:        "✈️ טיסה לאתונה",
				Destination: "אתונה",
				Link:        "https://example.test/deal/1",
				Amount:      floatPtr(299),
				Currency:    "₪",
				GoDate:      "2025-11-20",
				GoDepart:    "06:00",
				BackDate:    "2025-11-23",
				BackDepart:  "19:30",
				Seats:       intPtr(2),
			},
		},
	}

	text := formatFlights(flights)

	for _, want := range []string{
		"1. ✈️ טיסה לאתונה",
		"🛫 20/11 06:00",
		"🛬 23/11 19:30",
		"₪299",
		"נשארו 2 מקומות",
		"https://example.test/deal/1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("formatFlights() missing %q in:\n%s", want, text)
		}
	}
}

func TestFormatFlightsOptionalFieldsOmitted(t *testing.T) {
	flights := []db.Flight{
		{Offer: models.Offer{Destination: "לרנקה", GoDate: "2025-12-01"}},
	}

	text := formatFlights(flights)

	if strings.Contains(text, "💰") {
		t.Errorf("price line present for unknown price:\n%s", text)
	}
	if strings.Contains(text, "נשארו") {
		t.Errorf("seats line present without seat count:\n%s", text)
	}
	// Falls back to flag + destination when the scraped name is empty
	if !strings.Contains(text, "לרנקה") {
		t.Errorf("destination missing:\n%s", text)
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate("2025-11-20"); got != "20/11" {
		t.Errorf("formatDate() = %q, want 20/11", got)
	}
	// Unparseable input passes through untouched
	if got := formatDate("garbage"); got != "garbage" {
		t.Errorf("formatDate(garbage) = %q", got)
	}
}

func TestFlagFor(t *testing.T) {
	if got := flagFor("אתונה"); got != "🇬🇷" {
		t.Errorf("flagFor(אתונה) = %q", got)
	}
	if got := flagFor("עיר לא מוכרת"); got != "✈️" {
		t.Errorf("flagFor(unknown) = %q, want plane fallback", got)
	}
}

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("hello", 100)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Errorf("splitMessage() = %v", parts)
	}
}

func TestToggleDestination(t *testing.T) {
	tests := []struct {
		name    string
		current string
		dest    string
		want    string
	}{
		{"select first from all", "*", "אתונה", "אתונה"},
		{"add second", "אתונה", "לרנקה", "אתונה|לרנקה"},
		{"remove one of two", "אתונה|לרנקה", "אתונה", "לרנקה"},
		{"remove last falls back to all", "אתונה", "אתונה", "*"},
		{"reset to all", "אתונה|לרנקה", "*", "*"},
		{"empty stored value acts like all", "", "בודפשט", "בודפשט"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toggleDestination(tt.current, tt.dest); got != tt.want {
				t.Errorf("toggleDestination(%q, %q) = %q, want %q", tt.current, tt.dest, got, tt.want)
			}
		})
	}
}

func TestToggleDestinationRoundTripsWithPrefs(t *testing.T) {
	// The toggled value must parse back through the prefs split rules
	prefs := &db.UserPrefs{Destinations: toggleDestination("*", "אתונה")}
	sel := prefs.SelectedDestinations()
	if len(sel) != 1 || sel[0] != "אתונה" {
		t.Errorf("SelectedDestinations() = %v", sel)
	}

	prefs.Destinations = toggleDestination(prefs.Destinations, "אתונה")
	if prefs.SelectedDestinations() != nil {
		t.Errorf("expected all-destinations after removing last selection")
	}
}

func TestOfferKeyboard(t *testing.T) {
	flights := []db.Flight{
		{Key: "aaaaaaaaaaaaaaaa"},
		{Key: "bbbbbbbbbbbbbbbb"},
		{Key: "cccccccccccccccc"},
		{Key: "dddddddddddddddd"},
	}

	kb := offerKeyboard(flights, "save", "💾 שמור")

	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2 (three buttons per row)", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 3 || len(kb.InlineKeyboard[1]) != 1 {
		t.Errorf("row sizes = %d,%d", len(kb.InlineKeyboard[0]), len(kb.InlineKeyboard[1]))
	}

	first := kb.InlineKeyboard[0][0]
	if *first.CallbackData != "save:aaaaaaaaaaaaaaaa" {
		t.Errorf("callback data = %q", *first.CallbackData)
	}
	if first.Text != "💾 שמור 1" {
		t.Errorf("button text = %q", first.Text)
	}

	// Telegram rejects callback data over 64 bytes
	last := kb.InlineKeyboard[1][0]
	if len(*last.CallbackData) > 64 {
		t.Errorf("callback data too long: %d bytes", len(*last.CallbackData))
	}
	if *last.CallbackData != "save:dddddddddddddddd" {
		t.Errorf("last callback data = %q", *last.CallbackData)
	}
}

func TestSplitMessageOnLineBoundaries(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("x", 90)
	}
	text := strings.Join(lines, "\n")

	parts := splitMessage(text, 1000)
	if len(parts) < 2 {
		t.Fatalf("long text was not split: %d parts", len(parts))
	}
	for i, part := range parts {
		if len(part) > 1000 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(part))
		}
	}
	joined := strings.Join(parts, "")
	if strings.ReplaceAll(joined, "\n", "") != strings.ReplaceAll(text, "\n", "") {
		t.Errorf("split lost content")
	}
}

func TestSplitMessageKeepsRunesWhole(t *testing.T) {
	// One unbreakable line of two-byte Hebrew runes, forced through the
	// hard-split path with a limit that lands mid-rune
	line := strings.Repeat("א", 200)

	parts := splitMessage(line, 101)
	if len(parts) < 2 {
		t.Fatalf("long line was not split: %d parts", len(parts))
	}
	for i, part := range parts {
		if !utf8.ValidString(part) {
			t.Errorf("part %d contains a broken rune: %q", i, part)
		}
	}
	joined := strings.ReplaceAll(strings.Join(parts, ""), "\n", "")
	if joined != line {
		t.Errorf("split lost content: got %d bytes, want %d", len(joined), len(line))
	}
}
