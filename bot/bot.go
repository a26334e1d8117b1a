// Package bot serves stored flight deals over a Telegram menu.
package bot

import (
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"flight-deals-bot/config"
	"flight-deals-bot/db"
	"flight-deals-bot/filter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramMessageLimit is the hard cap Telegram places on message text
const telegramMessageLimit = 4096

// destinationFlags maps known destination names to a flag emoji for the
// menu. Unknown destinations fall back to a plane.
var destinationFlags = map[string]string{
	"אתונה":    "🇬🇷",
	"סלוניקי":  "🇬🇷",
	"כרתים":    "🇬🇷",
	"רודוס":    "🇬🇷",
	"לרנקה":    "🇨🇾",
	"פאפוס":    "🇨🇾",
	"בודפשט":   "🇭🇺",
	"פראג":     "🇨🇿",
	"וינה":     "🇦🇹",
	"רומא":     "🇮🇹",
	"מילאנו":   "🇮🇹",
	"ברלין":    "🇩🇪",
	"מינכן":    "🇩🇪",
	"פריז":     "🇫🇷",
	"לונדון":   "🇬🇧",
	"ברצלונה":  "🇪🇸",
	"מדריד":    "🇪🇸",
	"ליסבון":   "🇵🇹",
	"אמסטרדם":  "🇳🇱",
	"בוקרשט":   "🇷🇴",
	"סופיה":    "🇧🇬",
	"ורנה":     "🇧🇬",
	"טביליסי":  "🇬🇪",
	"בטומי":    "🇬🇪",
	"באקו":     "🇦🇿",
	"איסטנבול": "🇹🇷",
	"דובאי":    "🇦🇪",
}

func flagFor(dest string) string {
	if flag, ok := destinationFlags[dest]; ok {
		return flag
	}
	return "✈️"
}

// Bot is the Telegram front-end over the flights store
type Bot struct {
	api     *tgbotapi.BotAPI
	db      *db.DB
	cfg     *config.Config
	allowed map[int64]bool
}

// NewBot creates a new Bot instance
func NewBot(token string, cfg *config.Config, database *db.DB) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	allowed := make(map[int64]bool, len(cfg.Telegram.AllowedUsers))
	for _, id := range cfg.Telegram.AllowedUsers {
		allowed[id] = true
	}

	return &Bot{
		api:     api,
		db:      database,
		cfg:     cfg,
		allowed: allowed,
	}, nil
}

// isAllowed reports whether a user may use the bot. An empty allow-list
// means the bot is open.
func (b *Bot) isAllowed(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	return b.allowed[userID]
}

// NotifyAdmin sends a one-off message to the configured admin
func (b *Bot) NotifyAdmin(text string) {
	if b.cfg.Telegram.AdminID == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(b.cfg.Telegram.AdminID, text)); err != nil {
		log.Printf("Warning: Failed to notify admin: %v\n", err)
	}
}

// Run blocks on the Telegram update loop
func (b *Bot) Run() {
	log.Printf("Authorized on account %s\n", b.api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.Offset = -1 // skip updates accumulated while offline

	updates := b.api.GetUpdatesChan(updateConfig)

	for update := range updates {
		if update.CallbackQuery != nil {
			userID := update.CallbackQuery.From.ID
			if !b.isAllowed(userID) {
				log.Printf("Unauthorized user attempted to use callback: %d\n", userID)
				b.api.Send(tgbotapi.NewCallback(update.CallbackQuery.ID, "Sorry, you are not authorized."))
				continue
			}
			if update.CallbackQuery.Message != nil {
				b.handleCallback(update.CallbackQuery)
			}
			continue
		}

		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}

		userID := update.Message.From.ID
		if !b.isAllowed(userID) {
			log.Printf("Unauthorized user attempted to use bot: %d\n", userID)
			b.api.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Sorry, you are not authorized to use this bot."))
			continue
		}

		b.handleCommand(update.Message)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		if _, err := b.db.GetUserPrefs(userID); err != nil {
			log.Printf("Warning: Failed to initialize prefs for user %d: %v\n", userID, err)
		}
		b.sendMenu(chatID, 0)
	case "help":
		helpText := "Commands:\n" +
			"/start - Show the destinations menu\n" +
			"/summary - Current deals per destination\n" +
			"/saved - Your saved deals\n" +
			"/prices - Set your price range\n" +
			"/help - Show this help"
		b.api.Send(tgbotapi.NewMessage(chatID, helpText))
	case "summary":
		b.sendSummary(chatID, 0)
	case "saved":
		b.sendSaved(chatID, userID)
	case "prices":
		b.sendPriceMenu(chatID, userID)
	default:
		b.api.Send(tgbotapi.NewMessage(chatID, "Unknown command. Use /help for available commands."))
	}
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	b.api.Send(tgbotapi.NewCallback(callback.ID, ""))

	switch {
	case data == "refresh":
		b.sendMenu(chatID, messageID)
	case data == "sum":
		b.sendSummary(chatID, messageID)
	case data == "all":
		b.sendOffers(chatID, userID, "")
	case data == "saved":
		b.sendSaved(chatID, userID)
	case data == "prefs":
		b.sendDestinationPrefs(chatID, userID, messageID)
	case strings.HasPrefix(data, "dest:"):
		b.sendOffers(chatID, userID, strings.TrimPrefix(data, "dest:"))
	case strings.HasPrefix(data, "save:"):
		b.saveFlight(chatID, userID, strings.TrimPrefix(data, "save:"))
	case strings.HasPrefix(data, "unsave:"):
		b.unsaveFlight(chatID, userID, strings.TrimPrefix(data, "unsave:"))
	case strings.HasPrefix(data, "tog:"):
		b.toggleDestinationPref(chatID, userID, messageID, strings.TrimPrefix(data, "tog:"))
	case strings.HasPrefix(data, "minp:"):
		b.setPriceBound(chatID, userID, strings.TrimPrefix(data, "minp:"), true)
	case strings.HasPrefix(data, "maxp:"):
		b.setPriceBound(chatID, userID, strings.TrimPrefix(data, "maxp:"), false)
	}
}

// sendMenu renders the destinations keyboard, two buttons per row, with
// an all-destinations button and a refresh/summary row at the bottom.
// A non-zero messageID edits in place instead of sending a new message.
func (b *Bot) sendMenu(chatID int64, messageID int) {
	dests, err := b.db.DistinctDestinations()
	if err != nil {
		log.Printf("Error loading destinations: %v\n", err)
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading destinations: %v", err)))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, dest := range dests {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %s", flagFor(dest), dest), "dest:"+dest))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("כל היעדים 🌍", "all"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🎯 היעדים שלי", "prefs"),
		tgbotapi.NewInlineKeyboardButtonData("💾 שמורים", "saved"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 רענון", "refresh"),
		tgbotapi.NewInlineKeyboardButtonData("📊 סיכום", "sum"),
	))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)

	text := "✈️ דילים לטיסות\n\nבחרו יעד:"
	if len(dests) == 0 {
		text = "✈️ דילים לטיסות\n\nאין עדיין דילים. נסו לרענן בעוד כמה דקות."
	}
	if latest, err := b.db.LatestSeen(); err == nil && !latest.IsZero() {
		text += fmt.Sprintf("\n\nעודכן: %s", latest.Format("02/01 15:04"))
	}

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ReplyMarkup = &keyboard
		b.api.Send(edit)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.api.Send(msg)
}

// sendSummary shows current offer counts per destination, busiest first
func (b *Bot) sendSummary(chatID int64, messageID int) {
	counts, err := b.db.DestinationCounts()
	if err != nil {
		log.Printf("Error loading summary: %v\n", err)
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading summary: %v", err)))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 דילים כרגע לפי יעד:\n\n")
	if len(counts) == 0 {
		sb.WriteString("אין דילים כרגע.")
	}
	for _, c := range counts {
		sb.WriteString(fmt.Sprintf("%s %s: %d\n", flagFor(c.Destination), c.Destination, c.Count))
	}

	if messageID != 0 {
		b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, sb.String()))
		return
	}
	b.api.Send(tgbotapi.NewMessage(chatID, sb.String()))
}

// sendOffers lists the current offers for one destination, or for all
// destinations when dest is empty, filtered by the user's preferences.
func (b *Bot) sendOffers(chatID, userID int64, dest string) {
	var flights []db.Flight
	var err error
	if dest == "" {
		flights, err = b.db.ListCurrent()
	} else {
		flights, err = b.db.ListCurrentByDestination(dest)
	}
	if err != nil {
		log.Printf("Error loading offers: %v\n", err)
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading offers: %v", err)))
		return
	}

	prefs, err := b.db.GetUserPrefs(userID)
	if err == nil {
		flights = filter.NewFilter(prefs).Apply(flights)
	} else {
		log.Printf("Warning: Failed to load prefs for user %d: %v\n", userID, err)
	}

	if len(flights) == 0 {
		where := dest
		if where == "" {
			where = "היעדים שבחרתם"
		}
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("אין כרגע דילים ל%s 😕", where)))
		return
	}

	text := formatFlights(flights)
	parts := splitMessage(text, telegramMessageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if i == len(parts)-1 {
			msg.ReplyMarkup = offerKeyboard(flights, "save", "💾 שמור")
		}
		b.api.Send(msg)
	}
}

// sendSaved lists the user's bookmarked deals with unsave buttons
func (b *Bot) sendSaved(chatID, userID int64) {
	flights, err := b.db.ListSaved(userID)
	if err != nil {
		log.Printf("Error loading saved flights: %v\n", err)
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading saved deals: %v", err)))
		return
	}

	if len(flights) == 0 {
		b.api.Send(tgbotapi.NewMessage(chatID, "אין לכם דילים שמורים. לחצו 💾 ליד דיל כדי לשמור אותו."))
		return
	}

	text := "💾 הדילים השמורים שלכם:\n\n" + formatFlights(flights)
	parts := splitMessage(text, telegramMessageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if i == len(parts)-1 {
			msg.ReplyMarkup = offerKeyboard(flights, "unsave", "🗑 הסר")
		}
		b.api.Send(msg)
	}
}

// saveFlight bookmarks a deal by its identity key. The key is looked up
// first: a deal can vanish between the listing and the button press.
func (b *Bot) saveFlight(chatID, userID int64, key string) {
	flight, err := b.db.FindByKey(key)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error saving deal: %v", err)))
		return
	}
	if flight == nil {
		b.api.Send(tgbotapi.NewMessage(chatID, "הדיל הזה כבר לא קיים 😕"))
		return
	}

	if err := b.db.SaveFlight(userID, key); err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error saving deal: %v", err)))
		return
	}
	dest := flight.Offer.Destination
	b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("💾 נשמר: %s %s %s",
		flagFor(dest), dest, formatDate(flight.Offer.GoDate))))
}

func (b *Bot) unsaveFlight(chatID, userID int64, key string) {
	if err := b.db.UnsaveFlight(userID, key); err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error removing deal: %v", err)))
		return
	}
	b.sendSaved(chatID, userID)
}

// sendDestinationPrefs renders the destination-selection keyboard.
// Selected destinations carry a check mark; toggling re-renders in place.
func (b *Bot) sendDestinationPrefs(chatID, userID int64, messageID int) {
	dests, err := b.db.DistinctDestinations()
	if err != nil {
		log.Printf("Error loading destinations: %v\n", err)
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading destinations: %v", err)))
		return
	}
	prefs, err := b.db.GetUserPrefs(userID)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading preferences: %v", err)))
		return
	}

	selected := make(map[string]bool)
	for _, d := range prefs.SelectedDestinations() {
		selected[d] = true
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, dest := range dests {
		label := fmt.Sprintf("%s %s", flagFor(dest), dest)
		if selected[dest] {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "tog:"+dest))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("כל היעדים 🌍", "tog:*"),
		tgbotapi.NewInlineKeyboardButtonData("🔙 חזרה", "refresh"),
	))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)

	text := "🎯 בחרו יעדים למעקב:\n\nכרגע: כל היעדים"
	if len(selected) > 0 {
		text = fmt.Sprintf("🎯 בחרו יעדים למעקב:\n\nכרגע: %s",
			strings.Join(prefs.SelectedDestinations(), ", "))
	}

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ReplyMarkup = &keyboard
		b.api.Send(edit)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.api.Send(msg)
}

func (b *Bot) toggleDestinationPref(chatID, userID int64, messageID int, dest string) {
	prefs, err := b.db.GetUserPrefs(userID)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading preferences: %v", err)))
		return
	}

	if err := b.db.UpdateUserDestinations(userID, toggleDestination(prefs.Destinations, dest)); err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error updating preferences: %v", err)))
		return
	}
	b.sendDestinationPrefs(chatID, userID, messageID)
}

// toggleDestination flips one destination in a stored selection.
// "*" resets to all; emptying the selection also falls back to "*".
func toggleDestination(current, dest string) string {
	if dest == "*" {
		return "*"
	}

	var selected []string
	if current != "" && current != "*" {
		for _, d := range strings.Split(current, "|") {
			if d = strings.TrimSpace(d); d != "" {
				selected = append(selected, d)
			}
		}
	}

	out := selected[:0]
	found := false
	for _, d := range selected {
		if d == dest {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		out = append(out, dest)
	}

	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, "|")
}

// offerKeyboard builds one numbered button per listed offer, rows of
// three, carrying the flight key in the callback data.
func offerKeyboard(flights []db.Flight, action, label string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, f := range flights {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %d", label, i+1), action+":"+f.Key))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// sendPriceMenu lets the user pick a max price from round values
func (b *Bot) sendPriceMenu(chatID, userID int64) {
	prefs, err := b.db.GetUserPrefs(userID)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading preferences: %v", err)))
		return
	}

	text := fmt.Sprintf("💰 טווח מחירים\n\nנוכחי: %.0f - %.0f\n\nבחרו מחיר מקסימלי:",
		prefs.MinPrice, prefs.MaxPrice)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("300", "maxp:300"),
			tgbotapi.NewInlineKeyboardButtonData("500", "maxp:500"),
			tgbotapi.NewInlineKeyboardButtonData("800", "maxp:800"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1200", "maxp:1200"),
			tgbotapi.NewInlineKeyboardButtonData("2000", "maxp:2000"),
			tgbotapi.NewInlineKeyboardButtonData("ללא הגבלה", "maxp:0"),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.api.Send(msg)
}

func (b *Bot) setPriceBound(chatID, userID int64, valueStr string, isMin bool) {
	var value float64
	if _, err := fmt.Sscanf(valueStr, "%f", &value); err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Invalid value: %s", valueStr)))
		return
	}

	prefs, err := b.db.GetUserPrefs(userID)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error loading preferences: %v", err)))
		return
	}

	minPrice, maxPrice := prefs.MinPrice, prefs.MaxPrice
	if isMin {
		minPrice = value
	} else {
		maxPrice = value
		if maxPrice == 0 {
			maxPrice = 1000000 // "no limit"
		}
	}

	if err := b.db.UpdateUserPriceRange(userID, minPrice, maxPrice); err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Error updating preferences: %v", err)))
		return
	}
	b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ טווח מחירים עודכן: %.0f - %.0f", minPrice, maxPrice)))
}

// formatFlights renders offers for a Telegram message
func formatFlights(flights []db.Flight) string {
	var sb strings.Builder

	for i, f := range flights {
		o := f.Offer
		name := o.Name
		if name == "" {
			name = fmt.Sprintf("%s %s", flagFor(o.Destination), o.Destination)
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))

		sb.WriteString(fmt.Sprintf("   🛫 %s", formatDate(o.GoDate)))
		if o.GoDepart != "" {
			sb.WriteString(" " + o.GoDepart)
		}
		if o.BackDate != "" {
			sb.WriteString(fmt.Sprintf("  🛬 %s", formatDate(o.BackDate)))
			if o.BackDepart != "" {
				sb.WriteString(" " + o.BackDepart)
			}
		}
		sb.WriteString("\n")

		if o.Amount != nil {
			currency := o.Currency
			if currency == "" {
				currency = "₪"
			}
			sb.WriteString(fmt.Sprintf("   💰 %s%.0f\n", currency, *o.Amount))
		}
		if o.Seats != nil {
			sb.WriteString(fmt.Sprintf("   🔥 נשארו %d מקומות\n", *o.Seats))
		}
		if o.Link != "" {
			sb.WriteString(fmt.Sprintf("   🔗 %s\n", o.Link))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatDate turns a stored YYYY-MM-DD date into DD/MM for display
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01")
}

// splitMessage splits a message into chunks on line boundaries so each
// fits under Telegram's length limit.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			for len(line) > maxLen {
				// back up to a rune boundary so a multi-byte character
				// is never cut in half
				cut := maxLen
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				if cut == 0 {
					cut = maxLen
				}
				parts = append(parts, line[:cut])
				line = line[cut:]
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
