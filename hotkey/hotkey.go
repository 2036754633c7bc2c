package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Callbacks receive trigger and cancel events from the OS keyboard hook.
// Both run on the hook goroutine; they should only post into a channel.
type Callbacks struct {
	OnTrigger func()
	OnCancel  func()
}

// Listen registers a global hotkey combo (e.g. "Alt+Shift+S") plus Escape
// as the cancel key, and starts the OS hook on its own goroutine. Delivery
// is at-least-once; duplicate triggers while a session is active are handled
// downstream by the orchestrator.
func Listen(combo string, callbacks Callbacks) error {
	states, err := comboStates(combo)
	if err != nil {
		return err
	}
	log.Printf("Hotkey: listening for %s", combo)

	go run(combo, states, callbacks)
	return nil
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

func comboStates(combo string) ([]*keyState, error) {
	var states []*keyState
	for _, name := range parseCombo(combo) {
		rawcodes, ok := rawcodesFor(name)
		if !ok {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", name, combo)
		}
		states = append(states, &keyState{name: name, rawcodes: rawcodes})
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("empty hotkey combination %q", combo)
	}
	return states, nil
}

func run(combo string, states []*keyState, callbacks Callbacks) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Hotkey: PANIC in hook goroutine: %v", r)
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		log.Printf("Hotkey: failed to start keyboard hook")
		return
	}

	escCodes, _ := rawcodesFor("escape")
	var mu sync.Mutex

	for ev := range evChan {
		if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
			continue
		}

		if ev.Kind == gohook.KeyDown && matches(escCodes, ev.Rawcode) {
			if callbacks.OnCancel != nil {
				callbacks.OnCancel()
			}
			continue
		}

		mu.Lock()
		for _, s := range states {
			if matches(s.rawcodes, ev.Rawcode) {
				s.pressed = ev.Kind == gohook.KeyDown
			}
		}

		if ev.Kind == gohook.KeyDown && allPressed(states) {
			log.Printf("Hotkey: %s detected", combo)
			for _, s := range states {
				s.pressed = false
			}
			mu.Unlock()
			if callbacks.OnTrigger != nil {
				callbacks.OnTrigger()
			}
			continue
		}
		mu.Unlock()
	}
	log.Printf("Hotkey: event channel closed")
}

func matches(rawcodes []uint16, code uint16) bool {
	for _, rc := range rawcodes {
		if rc == code {
			return true
		}
	}
	return false
}

func allPressed(states []*keyState) bool {
	for _, s := range states {
		if !s.pressed {
			return false
		}
	}
	return true
}

// parseCombo splits "Ctrl+Alt+q" into normalized key names.
func parseCombo(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// rawcodeTable maps key names to Windows virtual key codes; modifiers carry
// both left and right variants.
var rawcodeTable = map[string][]uint16{
	"ctrl":  {162, 163},
	"alt":   {164, 165},
	"shift": {160, 161},
	"cmd":   {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

func rawcodesFor(name string) ([]uint16, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if codes, ok := rawcodeTable[name]; ok {
		return codes, true
	}
	// Letters a-z: VK 0x41-0x5A
	if len(name) == 1 && name[0] >= 'a' && name[0] <= 'z' {
		return []uint16{uint16(name[0] - 'a' + 65)}, true
	}
	// Digits 0-9: VK 0x30-0x39
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return []uint16{uint16(name[0] - '0' + 48)}, true
	}
	// Function keys F1-F24: VK 112-135
	if strings.HasPrefix(name, "f") && len(name) > 1 {
		n := 0
		for _, r := range name[1:] {
			if r < '0' || r > '9' {
				return nil, false
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}, true
		}
	}
	return nil, false
}
