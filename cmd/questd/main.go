package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lawnchairsociety/questkeeper/internal/character"
	"github.com/lawnchairsociety/questkeeper/internal/config"
	"github.com/lawnchairsociety/questkeeper/internal/events"
	"github.com/lawnchairsociety/questkeeper/internal/feed"
	"github.com/lawnchairsociety/questkeeper/internal/gametime"
	"github.com/lawnchairsociety/questkeeper/internal/logger"
	"github.com/lawnchairsociety/questkeeper/internal/quest"
	"github.com/lawnchairsociety/questkeeper/internal/store"
)

// session is everything that is saved under one slot.
type session struct {
	slot    string
	hero    *character.Character
	manager *quest.Manager
}

func (s *session) characterKey() string {
	return s.slot + ":character"
}

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "data/questd.yaml", "Path to engine config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	envFile := flag.String("env", ".env", "Path to .env file with QK_* overrides")
	questsPath := flag.String("quests", "", "Quest YAML file or directory (overrides config)")
	slot := flag.String("slot", "", "Save slot to load and save (overrides config)")
	name := flag.String("name", "Adventurer", "Character name for a new save slot")
	class := flag.String("class", "warrior", "Character class for a new save slot")
	flag.Parse()

	// Environment first, so QK_LOG_* reach the logger.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	logger.Info("Starting questkeeper")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load engine config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Warning("Ignoring environment overrides", "error", err)
	}
	if *questsPath != "" {
		cfg.Quests.Path = *questsPath
	}
	if *slot != "" {
		cfg.Quests.SaveSlot = *slot
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	catalog, err := loadCatalog(cfg.Quests.Path)
	if err != nil {
		log.Fatalf("Failed to load quests: %v", err)
	}
	logger.Info("Quests loaded", "path", cfg.Quests.Path, "count", catalog.Count())

	st, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	logger.Info("Store opened", "driver", cfg.Store.Driver, "compress", cfg.Store.Compress)

	bus := events.NewBus()
	hero := character.New(*name, *class)
	hero.Subscribe(bus)

	manager := quest.NewManager(catalog, quest.Options{
		MaxActive: cfg.Quests.MaxActive,
		Player:    hero,
		Publisher: bus,
	})
	hero.BindManager(manager)
	bus.SubscribeAll(func(e events.Event) error {
		logger.Debug("Quest event", "event", e.Name, "quest", e.QuestID)
		return nil
	})

	sess := &session{slot: cfg.Quests.SaveSlot, hero: hero, manager: manager}
	if err := sess.load(st); err != nil {
		log.Fatalf("Failed to load save slot %s: %v", sess.slot, err)
	}

	shutdown := make(chan struct{})
	var wg sync.WaitGroup

	var hub *feed.Hub
	var httpServer *http.Server
	if cfg.Feed.Enabled {
		hub = feed.NewHub(cfg.Feed, &feed.Engine{Manager: manager, Levels: hero})
		bus.SubscribeAll(hub.Publish)
		logFeedPolicy(cfg.Feed)

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		httpServer = &http.Server{Addr: cfg.Feed.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("Feed listening", "address", cfg.Feed.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Feed server error: %v", err)
			}
		}()
	}

	saver := store.NewSaver(st, cfg.Autosave.QueueSize, cfg.Autosave.WriteTimeout())
	if interval := cfg.Autosave.Interval(); interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.autosave(saver, interval, shutdown)
		}()
	} else {
		logger.Info("Auto-save disabled")
	}

	if hour := gametime.HourDuration(cfg.Rollover.RealMinutesPerGameDay); hour > 0 {
		rollover := gametime.NewRollover(gametime.NewGameClock(), manager, cfg.Rollover.WeeklyEveryDays)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRollover(rollover, hour, shutdown)
		}()
	} else {
		logger.Info("Quest rollover disabled")
	}

	logger.Info("questkeeper running", "slot", sess.slot, "character", hero.Name(), "level", hero.Level())
	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	close(shutdown)
	wg.Wait()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		hub.Close()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warning("Feed shutdown incomplete", "error", err)
		}
		cancel()
	}

	if err := saver.Close(); err != nil {
		logger.Warning("Pending autosave failed", "error", err)
	}
	manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sess.save(ctx, st); err != nil {
		logger.Error("Final save failed", "slot", sess.slot, "error", err)
	} else {
		logger.Info("Session saved", "slot", sess.slot)
	}
	logger.Info("questkeeper stopped")
}

// loadCatalog loads a quest file or every quest file in a directory.
func loadCatalog(path string) (*quest.Catalog, error) {
	catalog := quest.NewCatalog()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		err = catalog.LoadFromDirectory(path)
	} else {
		err = catalog.LoadFromYAML(path)
	}
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func logFeedPolicy(cfg config.FeedConfig) {
	if len(cfg.AllowedOrigins) == 0 {
		logger.Info("Feed CORS policy", "mode", "same-origin")
	} else if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		logger.Warning("Feed CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("Feed CORS policy", "allowed_origins", cfg.AllowedOrigins)
	}
}

// load restores the character and quest state, then evaluates availability.
func (s *session) load(st store.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	foundHero, err := s.hero.Load(ctx, st, s.characterKey())
	if err != nil {
		return err
	}
	foundQuests, err := s.manager.Load(ctx, st, s.slot)
	if err != nil {
		return err
	}
	if !foundQuests {
		s.manager.Refresh()
	}
	logger.Info("Save slot loaded", "slot", s.slot, "character_found", foundHero, "quests_found", foundQuests,
		"active", s.manager.ActiveCount())
	return nil
}

// save writes the session synchronously.
func (s *session) save(ctx context.Context, st store.Store) error {
	return errors.Join(
		s.hero.Save(ctx, st, s.characterKey()),
		s.manager.Save(ctx, st, s.slot),
	)
}

// submit hands the session to the saver without waiting for the write.
func (s *session) submit(saver *store.Saver) error {
	questData, err := quest.MarshalState(s.manager.Snapshot())
	if err != nil {
		return err
	}
	heroData, err := json.Marshal(s.hero.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode character: %w", err)
	}
	return errors.Join(
		saver.Submit(s.slot, questData),
		saver.Submit(s.characterKey(), heroData),
	)
}

func (s *session) autosave(saver *store.Saver, interval time.Duration, shutdown <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Auto-save enabled", "interval", interval)

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			if err := s.submit(saver); err != nil {
				logger.Error("Auto-save failed", "slot", s.slot, "error", err)
				continue
			}
			logger.Debug("Auto-save queued", "slot", s.slot, "written", saver.Written())
		}
	}
}

func runRollover(r *gametime.Rollover, hour time.Duration, shutdown <-chan struct{}) {
	ticker := time.NewTicker(hour)
	defer ticker.Stop()

	logger.Info("Quest rollover enabled", "game_hour", hour)

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}
