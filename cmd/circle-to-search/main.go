package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nkasozi/circle-to-search-pc/clipboard"
	"github.com/nkasozi/circle-to-search-pc/config"
	"github.com/nkasozi/circle-to-search-pc/cursor"
	"github.com/nkasozi/circle-to-search-pc/hosting"
	"github.com/nkasozi/circle-to-search-pc/hotkey"
	"github.com/nkasozi/circle-to-search-pc/logutil"
	"github.com/nkasozi/circle-to-search-pc/ocr"
	"github.com/nkasozi/circle-to-search-pc/presenter"
	"github.com/nkasozi/circle-to-search-pc/screenshot"
	"github.com/nkasozi/circle-to-search-pc/search"
	"github.com/nkasozi/circle-to-search-pc/settings"
	"github.com/nkasozi/circle-to-search-pc/tray"
	"github.com/nkasozi/circle-to-search-pc/workflow"
)

func main() {
	noTray := flag.Bool("notray", false, "Run without the system tray icon")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logutil.Setup(cfg.EnableFileLogging)
	enableDPIAwareness()

	settingsPath := cfg.SettingsPath
	if settingsPath == "" {
		settingsPath, err = settings.DefaultPath()
		if err != nil {
			log.Fatalf("Failed to resolve settings path: %v", err)
		}
	}
	store, err := settings.Open(settingsPath)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	prefs := store.Current()

	if err := clipboard.Init(); err != nil {
		log.Fatalf("Failed to initialize clipboard: %v", err)
	}

	if cfg.ImgbbAPIKey == "" {
		log.Printf("No imgbb API key found (checked %s and IMGBB_API_KEY); image search will fail at upload", cfg.ImgbbAPIKeyPath)
	} else {
		log.Printf("Using imgbb API key %s", logutil.RedactKey(cfg.ImgbbAPIKey))
	}

	searcher, err := search.NewProvider(func() string {
		return store.Current().ImageSearchURLTemplate
	}, nil)
	if err != nil {
		log.Fatalf("Invalid search URL template: %v", err)
	}

	orch := workflow.New(workflow.Deps{
		Capturer: screenshot.New(),
		Ocr:      ocr.NewEngine(cfg.OCRLanguages),
		Host:     hosting.New(cfg.ImgbbAPIKey),
		Search:   searcher,
	})

	pres := presenter.New(orch, cursor.New(), &clipboard.Sink{})
	orch.AddListener(pres.OnTransition)
	orch.AddListener(func(s workflow.Snapshot) {
		if s.State == workflow.Idle {
			tray.UpdateTooltip(idleTooltip(prefs.CaptureHotkey))
		} else {
			tray.UpdateTooltip("Circle to Search - working...")
		}
	})

	if err := hotkey.Listen(prefs.CaptureHotkey, hotkey.Callbacks{
		OnTrigger: pres.TriggerExtract,
		OnCancel:  orch.Cancel,
	}); err != nil {
		log.Fatalf("Failed to register hotkey %q: %v", prefs.CaptureHotkey, err)
	}

	log.Printf("Circle to Search initialized")
	log.Printf("Hotkey: %s", prefs.CaptureHotkey)
	log.Printf("Theme: %s", prefs.ThemeMode)
	log.Printf("Settings: %s", store.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exitRequested := make(chan struct{}, 1)
	if !*noTray {
		go tray.Run(tray.Config{
			Title:     "Circle to Search",
			Tooltip:   idleTooltip(prefs.CaptureHotkey),
			OnExtract: pres.TriggerExtract,
			OnSearch:  pres.TriggerSearch,
			OnQuit: func() {
				log.Printf("Exit requested from tray icon")
				exitRequested <- struct{}{}
			},
		})
		defer tray.Quit()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutting down due to signal...")
		case <-exitRequested:
			log.Printf("Shutting down due to tray exit...")
		}
		cancel()
	}()

	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Workflow stopped: %v", err)
	}
}

func idleTooltip(combo string) string {
	return fmt.Sprintf("Circle to Search - Press %s to capture", combo)
}
