package sim

import (
	"math"

	"github.com/remcokranenburg/tunneltanktournament/internal/input"
)

// Vec2 is a float32 vector. Products are wrapped in explicit float32
// conversions so the compiler never fuses them into FMA instructions, which
// would make results differ across architectures.
type Vec2 struct {
	X float32
	Y float32
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: float32(v.X * s), Y: float32(v.Y * s)}
}

// LengthSquared returns x*x + y*y with each product rounded to float32.
func (v Vec2) LengthSquared() float32 {
	return float32(v.X*v.X) + float32(v.Y*v.Y)
}

// Length is correctly rounded: sqrt is exact in IEEE 754 and a float64 square
// root of a float32 value rounds back to the float32 result.
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// NormalizeOrZero returns the unit vector along v, or the zero vector when v
// has no length.
func (v Vec2) NormalizeOrZero() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec2) float32 {
	return a.Sub(b).Length()
}

// Direction converts the directional bits of an input frame into a
// normalized movement vector. Opposing keys cancel out.
func Direction(frame input.Frame) Vec2 {
	var dir Vec2
	if frame.Has(input.Up) {
		dir.Y += 1
	}
	if frame.Has(input.Down) {
		dir.Y -= 1
	}
	if frame.Has(input.Left) {
		dir.X -= 1
	}
	if frame.Has(input.Right) {
		dir.X += 1
	}
	return dir.NormalizeOrZero()
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
