package integrators

import (
	"math"

	"github.com/avele/reactode/internal/odesys"
)

// Rosenbrock23 is a linearly implicit 2(3) pair after Shampine &
// Reichelt. It factors I - h*d*J once per step, which makes it the stiff
// default for kinetics systems whose joint Jacobian is cheap and exact.
type Rosenbrock23 struct{}

func NewRosenbrock23() *Rosenbrock23 { return &Rosenbrock23{} }

func (r *Rosenbrock23) Name() string  { return "rosenbrock23" }
func (r *Rosenbrock23) ErrOrder() int { return 2 }

var (
	rosD   = 1.0 / (2.0 + math.Sqrt2)
	rosE32 = 6.0 + math.Sqrt2
)

// rosTau scales the forward difference estimating df/dt.
const rosTau = 1e-7

func (r *Rosenbrock23) Step(sys *odesys.System, t float64, y []float64, h float64) ([]float64, []float64, int, error) {
	n := sys.N
	f0 := sys.Derivative(t, y)
	jac := sys.Jacobian(t, y)

	// T = h*d*df/dt, with the time derivative taken by forward difference.
	// Rate laws may reference t directly, so the non-autonomous term of the
	// ode23s formulas cannot be dropped.
	tau := rosTau * h
	ftau := sys.Derivative(t+tau, y)
	bigT := make([]float64, n)
	hd := h * rosD
	for i := range bigT {
		bigT[i] = hd * (ftau[i] - f0[i]) / tau
	}

	// W = I - h*d*J, assembled row-major from the column-major Jacobian.
	w := make([]float64, n*n)
	for c := 0; c < n; c++ {
		for rr := 0; rr < n; rr++ {
			w[rr*n+c] = -hd * jac[rr+c*n]
		}
	}
	for i := 0; i < n; i++ {
		w[i*n+i] += 1
	}
	lu, err := luDecompose(w, n)
	if err != nil {
		return nil, nil, 3, err
	}

	rhs0 := make([]float64, n)
	for i := range rhs0 {
		rhs0[i] = f0[i] + bigT[i]
	}
	k1 := lu.solve(rhs0)

	ymid := make([]float64, n)
	for i := range ymid {
		ymid[i] = y[i] + 0.5*h*k1[i]
	}
	f1 := sys.Derivative(t+0.5*h, ymid)

	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = f1[i] - k1[i]
	}
	k2 := lu.solve(rhs)
	for i := range k2 {
		k2[i] += k1[i]
	}

	yNew := make([]float64, n)
	for i := range yNew {
		yNew[i] = y[i] + h*k2[i]
	}
	f2 := sys.Derivative(t+h, yNew)

	for i := range rhs {
		rhs[i] = f2[i] - rosE32*(k2[i]-f1[i]) - 2*(k1[i]-f0[i]) + bigT[i]
	}
	k3 := lu.solve(rhs)

	errEst := make([]float64, n)
	for i := range errEst {
		errEst[i] = (h / 6) * (k1[i] - 2*k2[i] + k3[i])
	}
	return yNew, errEst, 5, nil
}
