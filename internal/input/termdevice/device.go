// Package termdevice reads the keyboard through a terminal screen.
//
// Terminals deliver key presses (and auto-repeat) but never key releases, so a
// key counts as held for a short window after its most recent press event.
package termdevice

import (
	"context"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/remcokranenburg/tunneltanktournament/internal/input"
)

// DefaultHold outlasts the usual keyboard auto-repeat delay.
const DefaultHold = 150 * time.Millisecond

type Device struct {
	screen tcell.Screen
	hold   time.Duration
	now    func() time.Time

	mu        sync.Mutex
	lastPress map[input.Key]time.Time

	closeOnce sync.Once
}

// New wraps an initialised screen. The device owns the screen from here on
// and finalises it on Close.
func New(screen tcell.Screen, hold time.Duration) *Device {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Device{
		screen:    screen,
		hold:      hold,
		now:       time.Now,
		lastPress: make(map[input.Key]time.Time),
	}
}

// Open creates and initialises the terminal screen.
func Open(hold time.Duration) (*Device, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(screen, hold), nil
}

// Run pumps screen events until ctx is cancelled or the screen is closed.
func (d *Device) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		d.Close()
	}()
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			return
		}
		d.handle(ev)
	}
}

func (d *Device) Close() {
	d.closeOnce.Do(d.screen.Fini)
}

func (d *Device) Pressed(k input.Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.lastPress[k]
	if !ok {
		return false
	}
	return d.now().Sub(at) < d.hold
}

func (d *Device) handle(ev tcell.Event) {
	keyEv, ok := ev.(*tcell.EventKey)
	if !ok {
		return
	}
	k := translate(keyEv)
	if k == input.KeyUnknown {
		return
	}
	d.mu.Lock()
	d.lastPress[k] = d.now()
	d.mu.Unlock()
}

func translate(ev *tcell.EventKey) input.Key {
	switch ev.Key() {
	case tcell.KeyUp:
		return input.KeyUp
	case tcell.KeyDown:
		return input.KeyDown
	case tcell.KeyLeft:
		return input.KeyLeft
	case tcell.KeyRight:
		return input.KeyRight
	case tcell.KeyEnter:
		return input.KeyEnter
	case tcell.KeyCtrlQ:
		return input.KeyCtrlQ
	case tcell.KeyRune:
		switch unicode.ToLower(ev.Rune()) {
		case 'w':
			return input.KeyW
		case 'a':
			return input.KeyA
		case 's':
			return input.KeyS
		case 'd':
			return input.KeyD
		case ' ':
			return input.KeySpace
		}
	}
	return input.KeyUnknown
}

var _ input.Device = (*Device)(nil)
