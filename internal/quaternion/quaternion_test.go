package quaternion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomUnit(r *rand.Rand) Quaternion {
	return RandomUniformFrom(r)
}

func TestNewNormalizes(t *testing.T) {
	q := New(2, 0, 0, 0)
	assert.InDelta(t, 1.0, q.norm(), EPSILON)
	assert.InDelta(t, 1.0, q.W, EPSILON)
}

func TestNewDegenerateYieldsIdentity(t *testing.T) {
	q := New(0, 0, 0, 0)
	assert.Equal(t, Identity, q)
}

func TestSlerpIdentityAtEndpoints(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		q := randomUnit(r)
		for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
			got := Slerp(q, q, tt)
			assert.InDelta(t, 0.0, q.AngularDistance(got), 1e-9)
		}
	}
}

func TestSlerpEndpoints(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		a := randomUnit(r)
		b := randomUnit(r)
		require.InDelta(t, 0.0, a.AngularDistance(Slerp(a, b, 0)), 1e-9)
		require.InDelta(t, 0.0, b.AngularDistance(Slerp(a, b, 1)), 1e-9)
	}
}

func TestHamiltonProductAssociativeAndIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		a, b, c := randomUnit(r), randomUnit(r), randomUnit(r)
		left := a.Mul(b).Mul(c)
		right := a.Mul(b.Mul(c))
		assert.InDelta(t, left.W, right.W, 1e-9)
		assert.InDelta(t, left.X, right.X, 1e-9)
		assert.InDelta(t, left.Y, right.Y, 1e-9)
		assert.InDelta(t, left.Z, right.Z, 1e-9)

		assert.InDelta(t, a.W, a.Mul(Identity).W, 1e-9)
		assert.InDelta(t, a.W, Identity.Mul(a).W, 1e-9)
	}
}

func TestRandomNearStaysWithinRadius(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	seed := randomUnit(r)
	radius := 0.8
	for i := 0; i < 200; i++ {
		p := RandomNear(seed, radius, r)
		d := seed.AngularDistance(p)
		assert.LessOrEqual(t, d, radius+1e-2)
	}
}

func TestGoldenAngleSeparation(t *testing.T) {
	phasors := make([]Phasor, 10)
	for i := range phasors {
		phasors[i] = PhasorFromIndex(i, 0)
	}
	for i := 0; i < len(phasors); i++ {
		for j := i + 1; j < len(phasors); j++ {
			diff := math.Abs(WrapToPi(phasors[i].Theta - phasors[j].Theta))
			assert.GreaterOrEqual(t, diff, 0.25)
		}
	}
}

func TestAngularDistanceAntipodal(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	q := randomUnit(r)
	assert.InDelta(t, 0.0, q.AngularDistance(q.Neg()), 1e-9)
}

func TestPhasorInterferenceRange(t *testing.T) {
	a := NewPhasor(0.3)
	b := NewPhasor(4.9)
	v := a.Interference(b)
	assert.GreaterOrEqual(t, v, -1.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestCircularMean(t *testing.T) {
	mean := CircularMean([]float64{0, 0, 0})
	assert.InDelta(t, 0.0, mean, 1e-9)

	mean2 := CircularMean(nil)
	assert.Equal(t, 0.0, mean2)
}

func TestFromArrayRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	q := randomUnit(r)
	arr := q.ToArray()
	q2 := FromArray(arr)
	assert.InDelta(t, 0.0, q.AngularDistance(q2), 1e-10)
}
