package physics

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// BodyID identifies a collider or tracked entity.
type BodyID uint64

// NameID derives the BodyID of an engine-side name.
func NameID(name string) BodyID { return BodyID(xxhash.Sum64String(name)) }

type Vec3 struct{ X, Y, Z float32 }

var Zero = Vec3{}

func V3(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float32) Vec3    { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float32      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) IsZero() bool            { return v.X == 0 && v.Y == 0 && v.Z == 0 }
func (v Vec3) Distance(o Vec3) float32 { return v.Sub(o).Length() }

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// NormalizeOrZero returns the unit vector in v's direction, or the zero
// vector when v has zero or non-finite length.
func (v Vec3) NormalizeOrZero() Vec3 {
	l := float64(v.Length())
	if l == 0 || math.IsInf(l, 0) || math.IsNaN(l) {
		return Zero
	}
	inv := float32(1 / l)
	return v.Scale(inv)
}

// Array returns the components as [x, y, z].
func (v Vec3) Array() [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

func Vec3From(a [3]float32) Vec3 { return Vec3{a[0], a[1], a[2]} }

type Quat struct{ X, Y, Z, W float32 }

var Identity = Quat{W: 1}

func QuatFrom(a [4]float32) Quat { return Quat{a[0], a[1], a[2], a[3]} }

// Pose is a world-space transform.
type Pose struct {
	Position    Vec3
	Orientation Quat
}

func PoseAt(p Vec3) Pose { return Pose{Position: p, Orientation: Identity} }
