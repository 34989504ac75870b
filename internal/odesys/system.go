// Package odesys composes compiled derivative stacks into joint
// derivative/Jacobian pairs for the plain state system and its objective,
// sensitivity and curvature augmentations.
//
// Joint vector layout (leading index fastest, matching package deriv):
//
//	[ x (nx) | dx/dT (nx*nT, z[l + j*nx]) | d2x/dT2 (nx*nT*nT, w[l + j1*nx + j2*nx*nT]) ]
//
// The Jacobian is returned flattened column-major: J[r + c*N] = dF_r/dy_c.
// The result extractor slices solutions with the same layout; the three
// must never disagree.
package odesys

import (
	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/deriv"
	"github.com/avele/reactode/internal/kinerr"
)

// Input supplies the time-varying input vector u(t), length nu.
type Input func(t float64) []float64

// System is one joint ODE: Y' = Derivative(t, Y).
type System struct {
	N          int
	Derivative func(t float64, y []float64) []float64
	Jacobian   func(t float64, y []float64) []float64
}

func inputOrEmpty(u Input, nu int) Input {
	if u != nil {
		return u
	}
	empty := make([]float64, nu)
	return func(float64) []float64 { return empty }
}

// State builds the unaugmented system. Requires order >= 1 for the
// Jacobian.
func State(d *deriv.Derivs, k []float64, u Input) (*System, error) {
	if d.Order < 1 {
		return nil, kinerr.Unsupportedf("state system Jacobian needs derivative order >= 1, have %d", d.Order)
	}
	uf := inputOrEmpty(u, d.NU)
	nx := d.NX
	return &System{
		N: nx,
		Derivative: func(t float64, y []float64) []float64 {
			return d.F(t, y, uf(t), k)
		},
		Jacobian: func(t float64, y []float64) []float64 {
			return d.Fx(t, y, uf(t), k)
		},
	}, nil
}

// Objective is one weighted integrand of the scalar accumulator.
type Objective struct {
	Weight float64
	G      func(t float64, x, u []float64) float64
	Gx     func(t float64, x, u []float64) []float64
}

// WithObjective appends a scalar accumulator g with
// dg/dt = sum_i w_i*g_i(t,x,u). The Jacobian's last row is the weighted
// state gradient; its last column is zero.
func WithObjective(d *deriv.Derivs, k []float64, u Input, objs []Objective) (*System, error) {
	if d.Order < 1 {
		return nil, kinerr.Unsupportedf("objective system Jacobian needs derivative order >= 1, have %d", d.Order)
	}
	uf := inputOrEmpty(u, d.NU)
	nx := d.NX
	n := nx + 1
	return &System{
		N: n,
		Derivative: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			out := make([]float64, n)
			copy(out, d.F(t, x, ut, k))
			acc := 0.0
			for _, o := range objs {
				acc += o.Weight * o.G(t, x, ut)
			}
			out[nx] = acc
			return out
		},
		Jacobian: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			fx := d.Fx(t, x, ut, k)
			jac := make([]float64, n*n)
			for c := 0; c < nx; c++ {
				for r := 0; r < nx; r++ {
					jac[r+c*n] = fx[r+c*nx]
				}
				for _, o := range objs {
					gx := o.Gx(t, x, ut)
					jac[nx+c*n] += o.Weight * gx[c]
				}
			}
			return jac
		},
	}, nil
}

// Sensitivity builds the first-order augmented system:
// z' = fx*z + fT. Requires order >= 2 so the Jacobian's coupling of the
// sensitivity rows back to the states is exact.
func Sensitivity(d *deriv.Derivs, k []float64, u Input) (*System, error) {
	if d.Order < 2 {
		return nil, kinerr.Unsupportedf("sensitivity system needs derivative order >= 2, have %d", d.Order)
	}
	uf := inputOrEmpty(u, d.NU)
	nx, nT := d.NX, d.NT
	n := nx + nx*nT
	return &System{
		N: n,
		Derivative: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			z := y[nx:]
			fx := d.Fx(t, x, ut, k)
			fT := d.FT(t, x, ut, k)

			out := make([]float64, n)
			copy(out, d.F(t, x, ut, k))
			for j := 0; j < nT; j++ {
				for i := 0; i < nx; i++ {
					acc := fT[i+j*nx]
					for l := 0; l < nx; l++ {
						acc += fx[i+l*nx] * z[l+j*nx]
					}
					out[nx+i+j*nx] = acc
				}
			}
			return out
		},
		Jacobian: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			z := y[nx:]
			fx := d.Fx(t, x, ut, k)
			fxx := d.Fxx(t, x, ut, k)
			fTx := d.FTx(t, x, ut, k)

			jac := make([]float64, n*n)
			// State rows: dF_x/dx = fx, dF_x/dz = 0.
			for c := 0; c < nx; c++ {
				for r := 0; r < nx; r++ {
					jac[r+c*n] = fx[r+c*nx]
				}
			}
			// Sensitivity rows against states:
			// d/dx_m (fx*z + fT)[i,j] = sum_l fxx[i,l,m]*z[l,j] + fTx[i,m,j].
			for j := 0; j < nT; j++ {
				for i := 0; i < nx; i++ {
					r := nx + i + j*nx
					for m := 0; m < nx; m++ {
						acc := fTx[i+m*nx+j*nx*nx]
						for l := 0; l < nx; l++ {
							acc += fxx[i+l*nx+m*nx*nx] * z[l+j*nx]
						}
						jac[r+m*n] = acc
					}
					// Against their own block: block-diagonal fx.
					for l := 0; l < nx; l++ {
						jac[r+(nx+l+j*nx)*n] = fx[i+l*nx]
					}
				}
			}
			return jac
		},
	}, nil
}

// Curvature builds the second-order augmented system:
//
//	w' = fx*w + fTx∘z (symmetrized) + (fxx∘z)*z + fTT.
//
// Requires order >= 3 so the Jacobian's state coupling is exact.
func Curvature(d *deriv.Derivs, k []float64, u Input) (*System, error) {
	if d.Order < 3 {
		return nil, kinerr.Unsupportedf("curvature system needs derivative order >= 3, have %d", d.Order)
	}
	uf := inputOrEmpty(u, d.NU)
	nx, nT := d.NX, d.NT
	nz := nx * nT
	nw := nx * nT * nT
	n := nx + nz + nw

	return &System{
		N: n,
		Derivative: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			z := y[nx : nx+nz]
			w := y[nx+nz:]
			fx := d.Fx(t, x, ut, k)
			fT := d.FT(t, x, ut, k)
			fxx := d.Fxx(t, x, ut, k)
			fTx := d.FTx(t, x, ut, k)
			fTT := d.FTT(t, x, ut, k)

			out := make([]float64, n)
			copy(out, d.F(t, x, ut, k))
			for j := 0; j < nT; j++ {
				for i := 0; i < nx; i++ {
					acc := fT[i+j*nx]
					for l := 0; l < nx; l++ {
						acc += fx[i+l*nx] * z[l+j*nx]
					}
					out[nx+i+j*nx] = acc
				}
			}
			for j2 := 0; j2 < nT; j2++ {
				for j1 := 0; j1 < nT; j1++ {
					for i := 0; i < nx; i++ {
						acc := fTT[i+j1*nx+j2*nx*nT]
						for l := 0; l < nx; l++ {
							acc += fx[i+l*nx] * w[l+j1*nx+j2*nx*nT]
							acc += fTx[i+l*nx+j2*nx*nx] * z[l+j1*nx]
							acc += fTx[i+l*nx+j1*nx*nx] * z[l+j2*nx]
							for m := 0; m < nx; m++ {
								acc += fxx[i+l*nx+m*nx*nx] * z[l+j1*nx] * z[m+j2*nx]
							}
						}
						out[nx+nz+i+j1*nx+j2*nx*nT] = acc
					}
				}
			}
			return out
		},
		Jacobian: func(t float64, y []float64) []float64 {
			ut := uf(t)
			x := y[:nx]
			z := y[nx : nx+nz]
			w := y[nx+nz:]
			fx := d.Fx(t, x, ut, k)
			fxx := d.Fxx(t, x, ut, k)
			fTx := d.FTx(t, x, ut, k)
			fxxx := d.Fxxx(t, x, ut, k)
			fTxx := d.FTxx(t, x, ut, k)
			fTTx := d.FTTx(t, x, ut, k)

			nx2 := nx * nx
			nx3 := nx2 * nx
			jac := make([]float64, n*n)

			// State rows.
			for c := 0; c < nx; c++ {
				for r := 0; r < nx; r++ {
					jac[r+c*n] = fx[r+c*nx]
				}
			}

			// Sensitivity rows (same structure as the first-order system).
			for j := 0; j < nT; j++ {
				for i := 0; i < nx; i++ {
					r := nx + i + j*nx
					for m := 0; m < nx; m++ {
						acc := fTx[i+m*nx+j*nx2]
						for l := 0; l < nx; l++ {
							acc += fxx[i+l*nx+m*nx2] * z[l+j*nx]
						}
						jac[r+m*n] = acc
					}
					for l := 0; l < nx; l++ {
						jac[r+(nx+l+j*nx)*n] = fx[i+l*nx]
					}
				}
			}

			// Curvature rows.
			for j2 := 0; j2 < nT; j2++ {
				for j1 := 0; j1 < nT; j1++ {
					for i := 0; i < nx; i++ {
						r := nx + nz + i + j1*nx + j2*nx*nT

						// Against states x_q.
						for q := 0; q < nx; q++ {
							acc := fTTx[i+q*nx+j1*nx2+j2*nx2*nT]
							for l := 0; l < nx; l++ {
								acc += fxx[i+l*nx+q*nx2] * w[l+j1*nx+j2*nx*nT]
								acc += fTxx[i+l*nx+q*nx2+j2*nx3] * z[l+j1*nx]
								acc += fTxx[i+l*nx+q*nx2+j1*nx3] * z[l+j2*nx]
								for m := 0; m < nx; m++ {
									acc += fxxx[i+l*nx+m*nx2+q*nx3] * z[l+j1*nx] * z[m+j2*nx]
								}
							}
							jac[r+q*n] = acc
						}

						// Against sensitivities z[l, jc].
						for l := 0; l < nx; l++ {
							// jc == j1 contributions.
							c := nx + l + j1*nx
							acc := fTx[i+l*nx+j2*nx2]
							for m := 0; m < nx; m++ {
								acc += fxx[i+l*nx+m*nx2] * z[m+j2*nx]
							}
							jac[r+c*n] += acc

							// jc == j2 contributions.
							c = nx + l + j2*nx
							acc = fTx[i+l*nx+j1*nx2]
							for m := 0; m < nx; m++ {
								acc += fxx[i+m*nx+l*nx2] * z[m+j1*nx]
							}
							jac[r+c*n] += acc
						}

						// Against their own block: block-diagonal fx.
						for l := 0; l < nx; l++ {
							jac[r+(nx+nz+l+j1*nx+j2*nx*nT)*n] = fx[i+l*nx]
						}
					}
				}
			}
			return jac
		},
	}, nil
}

// InitialJoint assembles the joint initial condition for the given
// augmentation order (0, 1 or 2): x0 comes from the seed values, the
// sensitivity block is the seed-to-initial-state identity on active seed
// columns and zero elsewhere, and the curvature block is zero.
func InitialJoint(m *compile.Model, act deriv.Active, seeds []float64, order int) []float64 {
	nx := m.NX
	nT := act.Len()
	n := nx
	if order >= 1 {
		n += nx * nT
	}
	if order >= 2 {
		n += nx * nT * nT
	}
	y0 := make([]float64, n)
	copy(y0, seeds)
	if order >= 1 {
		// Seed columns sit after the active parameters.
		for sj, si := range act.Seeds {
			j := len(act.Params) + sj
			y0[nx+si+j*nx] = 1
		}
	}
	return y0
}
