package quaternion

import "math"

// GoldenAngle is 2π/φ² (mod 2π), the rotation whose orbit on the circle is
// uniformly distributed.
const GoldenAngle = 2.3999632297286533

// Phasor is a phase angle in [0, 2π).
type Phasor struct {
	Theta float64
}

// NewPhasor normalizes theta into [0, 2π).
func NewPhasor(theta float64) Phasor {
	return Phasor{Theta: wrapTwoPi(theta)}
}

func wrapTwoPi(theta float64) float64 {
	t := math.Mod(theta, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	return t
}

// wrapPi wraps a signed difference into [−π, π].
func wrapPi(d float64) float64 {
	d = math.Mod(d+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi
}

// PhasorFromIndex places the i-th phasor in a golden-angle sequence starting at
// base: (base + i*GoldenAngle) mod 2π.
func PhasorFromIndex(i int, base float64) Phasor {
	return NewPhasor(base + float64(i)*GoldenAngle)
}

// Interference is cos(a.Theta − b.Theta), in [−1, +1].
func (p Phasor) Interference(o Phasor) float64 {
	return math.Cos(p.Theta - o.Theta)
}

// SlerpPhasor interpolates along the shorter arc on the circle, wrapping
// the signed difference into [−π, π] before blending.
func SlerpPhasor(a, b Phasor, t float64) Phasor {
	diff := wrapPi(b.Theta - a.Theta)
	return NewPhasor(a.Theta + t*diff)
}

// WrapToPi exposes the [−π, π] wrap used throughout interference and
// coupling computations.
func WrapToPi(d float64) float64 {
	return wrapPi(d)
}

// CircularMean returns the circular mean phase (atan2 of summed sines over
// summed cosines) of a slice of angles. Returns 0 for an empty slice.
func CircularMean(thetas []float64) float64 {
	if len(thetas) == 0 {
		return 0
	}
	var sinSum, cosSum float64
	for _, t := range thetas {
		sinSum += math.Sin(t)
		cosSum += math.Cos(t)
	}
	return math.Atan2(sinSum, cosSum)
}
