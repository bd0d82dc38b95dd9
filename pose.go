package goupf

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

const (
	// StateDim is the size of the filter state: x, y, z, yaw, pitch, roll.
	StateDim = 6
	// angularStart is the index of the first Euler angle in a state vector.
	angularStart = 3
	twoPi        = 2 * math.Pi
	gimbalTol    = 1e-9
)

// Pose is a rigid body pose: a position and ZYZ Euler angles.
// The rotation is R = Rz(Yaw)·Ry(Pitch)·Rz(Roll).
type Pose struct {
	Position         r3.Vector
	Yaw, Pitch, Roll float64
}

// PoseFromState builds a Pose from a state vector (x, y, z, yaw, pitch, roll).
func PoseFromState(x []float64) Pose {
	return Pose{
		Position: r3.Vector{X: x[0], Y: x[1], Z: x[2]},
		Yaw:      x[3],
		Pitch:    x[4],
		Roll:     x[5],
	}
}

// State returns the pose as a state vector.
func (p Pose) State() []float64 {
	return []float64{p.Position.X, p.Position.Y, p.Position.Z, p.Yaw, p.Pitch, p.Roll}
}

// Transform returns the homogeneous transform from the object frame to the reference frame.
func (p Pose) Transform() Homogeneous {
	sf, cf := math.Sincos(p.Yaw)
	st, ct := math.Sincos(p.Pitch)
	sp, cp := math.Sincos(p.Roll)
	return Homogeneous{
		cf*ct*cp - sf*sp, -cf*ct*sp - sf*cp, cf * st, p.Position.X,
		sf*ct*cp + cf*sp, -sf*ct*sp + cf*cp, sf * st, p.Position.Y,
		-st * cp, st * sp, ct, p.Position.Z,
		0, 0, 0, 1,
	}
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{pos=(%.6f, %.6f, %.6f) ypr=(%.6f, %.6f, %.6f)}",
		p.Position.X, p.Position.Y, p.Position.Z, p.Yaw, p.Pitch, p.Roll)
}

// Homogeneous is a 4x4 rigid transform stored row-major.
type Homogeneous [16]float64

// FromState returns the homogeneous transform of a state vector.
func FromState(x []float64) Homogeneous {
	return PoseFromState(x).Transform()
}

// HomogeneousIdentity returns the identity transform.
func HomogeneousIdentity() Homogeneous {
	return Homogeneous{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// At returns the element at row r and column c.
func (h Homogeneous) At(r, c int) float64 {
	return h[4*r+c]
}

// Translation returns the translation part of the transform.
func (h Homogeneous) Translation() r3.Vector {
	return r3.Vector{X: h[3], Y: h[7], Z: h[11]}
}

// Apply transforms the point p.
func (h Homogeneous) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: h[0]*p.X + h[1]*p.Y + h[2]*p.Z + h[3],
		Y: h[4]*p.X + h[5]*p.Y + h[6]*p.Z + h[7],
		Z: h[8]*p.X + h[9]*p.Y + h[10]*p.Z + h[11],
	}
}

// Compose returns h·o, i.e. o applied first.
func (h Homogeneous) Compose(o Homogeneous) Homogeneous {
	var out Homogeneous
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += h[4*r+k] * o[4*k+c]
			}
			out[4*r+c] = sum
		}
	}
	return out
}

// Inverse returns the inverse rigid transform, assuming h is a valid rigid transform.
func (h Homogeneous) Inverse() Homogeneous {
	var out Homogeneous
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[4*r+c] = h[4*c+r]
		}
	}
	t := h.Translation()
	for r := 0; r < 3; r++ {
		out[4*r+3] = -(out[4*r]*t.X + out[4*r+1]*t.Y + out[4*r+2]*t.Z)
	}
	out[15] = 1
	return out
}

// Decompose returns the pose of the transform. Pitch is in [0, π], yaw and roll in [0, 2π).
// When pitch is 0 or π the rotation is carried entirely by yaw and roll is 0.
func (h Homogeneous) Decompose() Pose {
	p := Pose{Position: h.Translation()}
	sinPitch := math.Hypot(h.At(0, 2), h.At(1, 2))
	p.Pitch = math.Atan2(sinPitch, h.At(2, 2))
	switch {
	case sinPitch > gimbalTol:
		p.Yaw = math.Atan2(h.At(1, 2), h.At(0, 2))
		p.Roll = math.Atan2(h.At(2, 1), -h.At(2, 0))
	case h.At(2, 2) > 0:
		p.Pitch = 0
		p.Yaw = math.Atan2(h.At(1, 0), h.At(0, 0))
	default:
		p.Pitch = math.Pi
		p.Yaw = math.Atan2(-h.At(0, 1), -h.At(0, 0))
	}
	p.Yaw = WrapAngle(p.Yaw)
	p.Roll = WrapAngle(p.Roll)
	return p
}

// IsValid returns whether the rotation part is orthonormal with a unit determinant
// and the last row is (0, 0, 0, 1), within tol.
func (h Homogeneous) IsValid(tol float64) bool {
	if math.Abs(h[12]) > tol || math.Abs(h[13]) > tol || math.Abs(h[14]) > tol || math.Abs(h[15]-1) > tol {
		return false
	}
	rot := mat.NewDense(3, 3, []float64{h[0], h[1], h[2], h[4], h[5], h[6], h[8], h[9], h[10]})
	if math.Abs(mat.Det(rot)-1) > tol {
		return false
	}
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	return mat.EqualApprox(&rrt, Identity(3), tol)
}

// RotationAngle returns the geodesic angle between the rotations of h and o.
func (h Homogeneous) RotationAngle(o Homogeneous) float64 {
	var trace float64
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			trace += h[4*k+i] * o[4*k+i]
		}
	}
	return math.Acos(math.Max(-1, math.Min(1, (trace-1)/2)))
}

// WrapAngle maps an angle to [0, 2π).
func WrapAngle(a float64) float64 {
	w := math.Mod(a, twoPi)
	if w < 0 {
		w += twoPi
	}
	if w >= twoPi {
		w = 0
	}
	return w
}

// SignedAngle maps an angle to (-π, π].
func SignedAngle(a float64) float64 {
	w := WrapAngle(a)
	if w > math.Pi {
		w -= twoPi
	}
	return w
}

// wrapState maps the angular components of a state vector to [0, 2π).
func wrapState(x []float64) {
	for i := angularStart; i < StateDim; i++ {
		x[i] = WrapAngle(x[i])
	}
}

// stateDiff stores a-b in dst, taking the shortest signed difference for angles.
func stateDiff(dst, a, b []float64) {
	for i := 0; i < StateDim; i++ {
		if i < angularStart {
			dst[i] = a[i] - b[i]
		} else {
			dst[i] = SignedAngle(a[i] - b[i])
		}
	}
}

// wrapAngularBlock reduces the angular variances of a state covariance modulo 2π. The row and
// column of a reduced variance are scaled by the square root of the reduction ratio, a congruence
// which keeps the matrix positive semi-definite and the correlations unchanged. Variances below 2π
// are left untouched. The covariance of a wrapped angle is itself only approximated by this reduction.
func wrapAngularBlock(m *mat.SymDense) {
	n := m.SymmetricDim()
	for i := angularStart; i < StateDim; i++ {
		v := m.At(i, i)
		if v < twoPi {
			continue
		}
		r := math.Mod(v, twoPi)
		if r == 0 {
			// An exact multiple would collapse the variance.
			continue
		}
		s := math.Sqrt(r / v)
		for j := 0; j < n; j++ {
			if j != i {
				m.SetSym(i, j, s*m.At(i, j))
			}
		}
		m.SetSym(i, i, r)
	}
}
