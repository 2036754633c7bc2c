package tray

import (
	"log"

	"github.com/getlantern/systray"
)

// Config wires tray menu clicks to the workflow. All callbacks run on the
// systray goroutine and should only post commands.
type Config struct {
	Title     string
	Tooltip   string
	OnExtract func() // "Extract Text" menu item
	OnSearch  func() // "Search Image" menu item
	OnQuit    func()
}

var tooltipCh = make(chan string, 4)

// Run starts the tray icon and blocks until Quit. Call from a dedicated
// goroutine; the main loop owns the workflow.
func Run(cfg Config) {
	systray.Run(func() { onReady(cfg) }, func() {
		if cfg.OnQuit != nil {
			cfg.OnQuit()
		}
	})
}

// Quit tears the tray down and unblocks Run.
func Quit() { systray.Quit() }

// UpdateTooltip reflects orchestrator state ("idle" vs "processing") in the
// tray hover text.
func UpdateTooltip(text string) {
	select {
	case tooltipCh <- text:
	default:
	}
}

func onReady(cfg Config) {
	systray.SetIcon(iconBytes())
	systray.SetTitle(cfg.Title)
	systray.SetTooltip(cfg.Tooltip)

	mExtract := systray.AddMenuItem("Extract Text", "Capture a screen region and extract its text")
	mSearch := systray.AddMenuItem("Search Image", "Capture a screen region and reverse image search it")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-mExtract.ClickedCh:
				log.Printf("Tray: extract text clicked")
				if cfg.OnExtract != nil {
					cfg.OnExtract()
				}
			case <-mSearch.ClickedCh:
				log.Printf("Tray: search image clicked")
				if cfg.OnSearch != nil {
					cfg.OnSearch()
				}
			case tt := <-tooltipCh:
				systray.SetTooltip(tt)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}
