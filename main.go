package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"flight-deals-bot/bot"
	"flight-deals-bot/config"
	"flight-deals-bot/db"
	"flight-deals-bot/fetcher"
	"flight-deals-bot/monitor"
	"flight-deals-bot/parser"
	"flight-deals-bot/reconcile"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single monitoring cycle and exit")
	flag.Parse()

	cfg := loadConfig(*configPath)

	// Initialize database
	database, err := db.NewDB()
	if err != nil {
		log.Fatalf("Error: Failed to initialize database: %v\n", err)
	}
	defer database.Close()
	log.Println("Database initialized successfully")

	f, cleanup, err := newFetcher(cfg)
	if err != nil {
		log.Fatalf("Error: Failed to initialize fetcher: %v\n", err)
	}
	defer cleanup()

	p := parser.NewParser(cfg.Currency.Default, cfg.Source.LooseParse)
	r := reconcile.NewReconciler(reconcile.NewDBStore(database))
	mon := monitor.NewMonitor(cfg, f, p, r)

	if *once {
		if err := mon.RunCycle(context.Background()); err != nil {
			log.Fatalf("Cycle failed: %v\n", err)
		}
		return
	}

	runTelegramBot(cfg, database, mon)
}

// newFetcher picks the fetch strategy: plain HTTP by default, a headless
// browser when the deployment needs JS rendering.
func newFetcher(cfg *config.Config) (fetcher.Fetcher, func(), error) {
	if cfg.Source.UseBrowser {
		rf, err := fetcher.NewRodFetcher(cfg.FetchTimeout())
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := rf.Close(); err != nil {
				log.Printf("Warning: Failed to close browser: %v\n", err)
			}
		}
		return rf, cleanup, nil
	}
	return fetcher.NewCollyFetcher(cfg.Source.UserAgent, cfg.FetchTimeout()), func() {}, nil
}

// runTelegramBot starts the monitor loop and blocks on the bot
func runTelegramBot(cfg *config.Config, database *db.DB, mon *monitor.Monitor) {
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatalf("Error: BOT_TOKEN environment variable is not set")
	}

	tgBot, err := bot.NewBot(botToken, cfg, database)
	if err != nil {
		log.Fatalf("Error: Failed to initialize bot: %v\n", err)
	}

	tgBot.NotifyAdmin(fmt.Sprintf("🚀 Service started, watching %s", cfg.Source.URL))

	mon.Start()
	log.Println("Monitor started")
	defer mon.Stop()

	tgBot.Run()
}

// loadConfig loads configuration from file or falls back to defaults.
// Defaults alone are not enough to run: source.url has no default.
func loadConfig(configPath string) *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Error: Failed to load config file %s: %v\n", configPath, err)
	}
	return cfg
}
