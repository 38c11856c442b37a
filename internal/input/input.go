// Package input turns raw control-device state into the per-tick bitmask the
// rollback session exchanges between peers.
package input

// Frame is one player's input for one simulation tick.
type Frame uint8

const (
	Up Frame = 1 << iota
	Down
	Left
	Right
	Fire

	// Mask covers every bit a valid frame may carry.
	Mask = Up | Down | Left | Right | Fire
)

// Has reports whether every bit of flag is set.
func (f Frame) Has(flag Frame) bool {
	return f&flag == flag
}

// Firing reports whether the fire button is held.
func (f Frame) Firing() bool {
	return f&Fire != 0
}

// Key identifies a physical key regardless of the device backend.
type Key int

const (
	KeyUnknown Key = iota
	KeyW
	KeyA
	KeyS
	KeyD
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyCtrlQ
)

// Device reports which keys are currently held.
type Device interface {
	Pressed(Key) bool
}

// KeyMap binds each input flag to the keys that trigger it.
type KeyMap struct {
	Up    []Key
	Down  []Key
	Left  []Key
	Right []Key
	Fire  []Key
}

var (
	slotZero = KeyMap{
		Up:    []Key{KeyW},
		Down:  []Key{KeyS},
		Left:  []Key{KeyA},
		Right: []Key{KeyD},
		Fire:  []Key{KeySpace},
	}
	slotOne = KeyMap{
		Up:    []Key{KeyUp},
		Down:  []Key{KeyDown},
		Left:  []Key{KeyLeft},
		Right: []Key{KeyRight},
		Fire:  []Key{KeyEnter},
	}
)

// KeyMapForSlot returns the key set used by a local player slot when two
// players share one keyboard. Slots beyond the second get an empty map.
func KeyMapForSlot(slot int) KeyMap {
	switch slot {
	case 0:
		return slotZero
	case 1:
		return slotOne
	default:
		return KeyMap{}
	}
}

// NetworkKeyMap accepts both key sets, for the single local player of a
// networked match.
func NetworkKeyMap() KeyMap {
	return KeyMap{
		Up:    append(append([]Key(nil), slotZero.Up...), slotOne.Up...),
		Down:  append(append([]Key(nil), slotZero.Down...), slotOne.Down...),
		Left:  append(append([]Key(nil), slotZero.Left...), slotOne.Left...),
		Right: append(append([]Key(nil), slotZero.Right...), slotOne.Right...),
		Fire:  append(append([]Key(nil), slotZero.Fire...), slotOne.Fire...),
	}
}

// Encode samples dev through km. A nil device or no held key yields zero.
func Encode(dev Device, km KeyMap) Frame {
	if dev == nil {
		return 0
	}
	var f Frame
	if anyPressed(dev, km.Up) {
		f |= Up
	}
	if anyPressed(dev, km.Down) {
		f |= Down
	}
	if anyPressed(dev, km.Left) {
		f |= Left
	}
	if anyPressed(dev, km.Right) {
		f |= Right
	}
	if anyPressed(dev, km.Fire) {
		f |= Fire
	}
	return f
}

// QuitRequested reports the unsynchronised close shortcut. It never enters a
// Frame.
func QuitRequested(dev Device) bool {
	return dev != nil && dev.Pressed(KeyCtrlQ)
}

func anyPressed(dev Device, keys []Key) bool {
	for _, k := range keys {
		if dev.Pressed(k) {
			return true
		}
	}
	return false
}

// Set is a Device backed by an explicit set of held keys.
type Set map[Key]bool

func (s Set) Pressed(k Key) bool { return s[k] }

// Keys builds a Set holding keys.
func Keys(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}
