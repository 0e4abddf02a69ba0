package tracks

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// State vector layout: [px py pz vx vy vz ax ay az].
const (
	stateDim = 9
	obsDim   = 3
)

// Predictor is the alpha-beta-gamma prediction model. It caches the
// constant-acceleration transition A(dt) and rebuilds it only when dt
// changes. A Predictor is not safe for concurrent use; the manager runs it
// from the frame pass only.
type Predictor struct {
	alpha, beta, gamma float64
	gammaEnabled       bool

	dt    time.Duration
	haveA bool
	a     *mat.Dense // stateDim x stateDim
	b     *mat.Dense // stateDim x obsDim

	x  *mat.VecDense
	ax *mat.VecDense
	u  *mat.VecDense
	bu *mat.VecDense
}

// NewPredictor returns a model with the given smoothing gains. Gamma only
// contributes when gammaEnabled is set.
func NewPredictor(alpha, beta, gamma float64, gammaEnabled bool) *Predictor {
	return &Predictor{
		alpha:        alpha,
		beta:         beta,
		gamma:        gamma,
		gammaEnabled: gammaEnabled,
		a:            mat.NewDense(stateDim, stateDim, nil),
		b:            mat.NewDense(stateDim, obsDim, nil),
		x:            mat.NewVecDense(stateDim, nil),
		ax:           mat.NewVecDense(stateDim, nil),
		u:            mat.NewVecDense(obsDim, nil),
		bu:           mat.NewVecDense(stateDim, nil),
	}
}

// SetDt prepares A(dt) for the frame. The operator is rebuilt only if it was
// never built or dt differs from the previous frame.
func (p *Predictor) SetDt(dt time.Duration) {
	if p.haveA && dt == p.dt {
		return
	}
	p.dt = dt
	p.haveA = true

	t := dt.Seconds()
	half := t * t / 2
	p.a.Zero()
	for i := 0; i < stateDim; i++ {
		p.a.Set(i, i, 1)
	}
	for axis := 0; axis < obsDim; axis++ {
		pos, vel, acc := axis, axis+3, axis+6
		p.a.Set(pos, vel, t)
		p.a.Set(pos, acc, half)
		p.a.Set(vel, acc, t)
	}
}

// Dt returns the elapsed time A is currently built for.
func (p *Predictor) Dt() time.Duration { return p.dt }

// Transition exposes A(dt) read-only for diagnostics and tests.
func (p *Predictor) Transition() mat.Matrix { return p.a }

// Gains returns b0, b1, b2 for a track whose previous update was age ago.
// With age == 0 the rate and acceleration terms are zero for the frame.
func (p *Predictor) Gains(age time.Duration) (b0, b1, b2 float64) {
	b0 = p.alpha
	s := age.Seconds()
	if s <= 0 {
		return b0, 0, 0
	}
	b1 = p.beta / s
	if p.gammaEnabled {
		b2 = p.gamma / (2 * s * s)
	}
	return b0, b1, b2
}

// Coast advances trk by A(dt) with no observation.
func (p *Predictor) Coast(trk *Track) {
	p.load(trk)
	p.ax.MulVec(p.a, p.x)
	p.store(trk, p.ax)
}

// Correct advances trk by A(dt) and applies the innovation between observed
// and the predicted position, weighted by the gains for age. It returns the
// innovation vector.
func (p *Predictor) Correct(trk *Track, observed r3.Vector, age time.Duration) r3.Vector {
	p.load(trk)
	p.ax.MulVec(p.a, p.x)

	innov := r3.Vector{
		X: observed.X - p.ax.AtVec(0),
		Y: observed.Y - p.ax.AtVec(1),
		Z: observed.Z - p.ax.AtVec(2),
	}
	p.u.SetVec(0, innov.X)
	p.u.SetVec(1, innov.Y)
	p.u.SetVec(2, innov.Z)

	b0, b1, b2 := p.Gains(age)
	p.b.Zero()
	for axis := 0; axis < obsDim; axis++ {
		p.b.Set(axis, axis, b0)
		p.b.Set(axis+3, axis, b1)
		p.b.Set(axis+6, axis, b2)
	}
	p.bu.MulVec(p.b, p.u)
	p.ax.AddVec(p.ax, p.bu)
	p.store(trk, p.ax)
	return innov
}

func (p *Predictor) load(trk *Track) {
	p.x.SetVec(0, trk.Position.X)
	p.x.SetVec(1, trk.Position.Y)
	p.x.SetVec(2, trk.Position.Z)
	p.x.SetVec(3, trk.Velocity.X)
	p.x.SetVec(4, trk.Velocity.Y)
	p.x.SetVec(5, trk.Velocity.Z)
	p.x.SetVec(6, trk.Acceleration.X)
	p.x.SetVec(7, trk.Acceleration.Y)
	p.x.SetVec(8, trk.Acceleration.Z)
}

func (p *Predictor) store(trk *Track, v *mat.VecDense) {
	trk.Position = r3.Vector{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
	trk.Velocity = r3.Vector{X: v.AtVec(3), Y: v.AtVec(4), Z: v.AtVec(5)}
	trk.Acceleration = r3.Vector{X: v.AtVec(6), Y: v.AtVec(7), Z: v.AtVec(8)}
}

// coastPosition is the constant-acceleration position of trk after dt,
// without touching trk. Correlators use it for gating.
func coastPosition(trk *Track, dt time.Duration) r3.Vector {
	t := dt.Seconds()
	return trk.Position.
		Add(trk.Velocity.Mul(t)).
		Add(trk.Acceleration.Mul(t * t / 2))
}
