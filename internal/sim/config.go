package sim

// Config holds the gameplay constants of a match. Every peer must run with an
// identical Config or their worlds diverge.
type Config struct {
	Width       int
	Height      int
	TickRate    int
	NumPlayers  int
	MoveSpeed   float32
	BulletSpeed float32

	PlayerRadius float32
	BulletRadius float32
	// ErodeRadius is the half width of the square a tank digs each tick.
	// Zero takes the default; a negative value digs a single tile.
	ErodeRadius  int

	// SpawnMargin keeps spawn points away from the playfield edges and from
	// the neighbouring player's spawn band. Zero takes the default; a
	// negative value disables the margin.
	SpawnMargin float32
}

// DefaultConfig returns the standard two-player arena.
func DefaultConfig() Config {
	return Config{
		Width:        1000,
		Height:       500,
		TickRate:     60,
		NumPlayers:   2,
		MoveSpeed:    7,
		BulletSpeed:  30,
		PlayerRadius: 2.5,
		BulletRadius: 0.5,
		ErodeRadius:  2,
		SpawnMargin:  20,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.NumPlayers <= 0 {
		c.NumPlayers = def.NumPlayers
	}
	if c.MoveSpeed <= 0 {
		c.MoveSpeed = def.MoveSpeed
	}
	if c.BulletSpeed <= 0 {
		c.BulletSpeed = def.BulletSpeed
	}
	if c.PlayerRadius <= 0 {
		c.PlayerRadius = def.PlayerRadius
	}
	if c.BulletRadius <= 0 {
		c.BulletRadius = def.BulletRadius
	}
	switch {
	case c.ErodeRadius == 0:
		c.ErodeRadius = def.ErodeRadius
	case c.ErodeRadius < 0:
		c.ErodeRadius = 0
	}
	switch {
	case c.SpawnMargin == 0:
		c.SpawnMargin = def.SpawnMargin
	case c.SpawnMargin < 0:
		c.SpawnMargin = 0
	}
	return c
}

// Limit is the largest absolute coordinate a player may occupy on each axis.
func (c Config) Limit() Vec2 {
	return Vec2{
		X: float32(c.Width)/2 - 0.5,
		Y: float32(c.Height)/2 - 0.5,
	}
}

// MoveStep is the distance a player covers in one tick.
func (c Config) MoveStep() float32 {
	return c.MoveSpeed / float32(c.TickRate)
}

// BulletStep is the distance a bullet covers in one tick.
func (c Config) BulletStep() float32 {
	return c.BulletSpeed / float32(c.TickRate)
}
