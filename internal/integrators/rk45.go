package integrators

import (
	"github.com/avele/reactode/internal/odesys"
)

// Dormand-Prince coefficients (RK45).
var (
	dpA2 = 1.0 / 5.0
	dpA3 = 3.0 / 10.0
	dpA4 = 4.0 / 5.0
	dpA5 = 8.0 / 9.0

	dpB21 = 1.0 / 5.0
	dpB31 = 3.0 / 40.0
	dpB32 = 9.0 / 40.0
	dpB41 = 44.0 / 45.0
	dpB42 = -56.0 / 15.0
	dpB43 = 32.0 / 9.0
	dpB51 = 19372.0 / 6561.0
	dpB52 = -25360.0 / 2187.0
	dpB53 = 64448.0 / 6561.0
	dpB54 = -212.0 / 729.0
	dpB61 = 9017.0 / 3168.0
	dpB62 = -355.0 / 33.0
	dpB63 = 46732.0 / 5247.0
	dpB64 = 49.0 / 176.0
	dpB65 = -5103.0 / 18656.0

	dpC1 = 35.0 / 384.0
	dpC3 = 500.0 / 1113.0
	dpC4 = 125.0 / 192.0
	dpC5 = -2187.0 / 6784.0
	dpC6 = 11.0 / 84.0

	dpD1 = dpC1 - 5179.0/57600.0
	dpD3 = dpC3 - 7571.0/16695.0
	dpD4 = dpC4 - 393.0/640.0
	dpD5 = dpC5 - -92097.0/339200.0
	dpD6 = dpC6 - 187.0/2100.0
	dpD7 = -1.0 / 40.0
)

// RK45 is the explicit Dormand-Prince pair; the non-stiff alternative to
// Rosenbrock23. It never touches the Jacobian.
type RK45 struct{}

func NewRK45() *RK45 { return &RK45{} }

func (r *RK45) Name() string  { return "rk45" }
func (r *RK45) ErrOrder() int { return 4 }

func (r *RK45) Step(sys *odesys.System, t float64, y []float64, h float64) ([]float64, []float64, int, error) {
	n := sys.N
	stage := func(frac float64, coeffs []float64, ks ...[]float64) []float64 {
		yt := make([]float64, n)
		for i := 0; i < n; i++ {
			v := y[i]
			for s, c := range coeffs {
				v += h * c * ks[s][i]
			}
			yt[i] = v
		}
		return sys.Derivative(t+frac*h, yt)
	}

	k1 := sys.Derivative(t, y)
	k2 := stage(dpA2, []float64{dpB21}, k1)
	k3 := stage(dpA3, []float64{dpB31, dpB32}, k1, k2)
	k4 := stage(dpA4, []float64{dpB41, dpB42, dpB43}, k1, k2, k3)
	k5 := stage(dpA5, []float64{dpB51, dpB52, dpB53, dpB54}, k1, k2, k3, k4)
	k6 := stage(1, []float64{dpB61, dpB62, dpB63, dpB64, dpB65}, k1, k2, k3, k4, k5)

	yNew := make([]float64, n)
	for i := 0; i < n; i++ {
		yNew[i] = y[i] + h*(dpC1*k1[i]+dpC3*k3[i]+dpC4*k4[i]+dpC5*k5[i]+dpC6*k6[i])
	}
	k7 := sys.Derivative(t+h, yNew)

	errEst := make([]float64, n)
	for i := 0; i < n; i++ {
		errEst[i] = h * (dpD1*k1[i] + dpD3*k3[i] + dpD4*k4[i] + dpD5*k5[i] + dpD6*k6[i] + dpD7*k7[i])
	}
	return yNew, errEst, 7, nil
}
