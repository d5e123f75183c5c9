package physics

// RK4 is the classic fourth-order Runge-Kutta stepper. It reuses its stage
// buffers between steps and is not safe for concurrent use.
type RK4 struct {
	k1, k2, k3, k4 State
	scratch        State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(State, n)
		r.k2 = make(State, n)
		r.k3 = make(State, n)
		r.k4 = make(State, n)
		r.scratch = make(State, n)
	}
}

func (r *RK4) stage(dst State, sys System, x, k State, u Control, t, h float64) {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	copy(dst, sys.Derive(r.scratch, u, t+h))
}

func (r *RK4) Step(sys System, x State, u Control, t, dt float64) State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, sys.Derive(x, u, t))
	r.stage(r.k2, sys, x, r.k1, u, t, dt/2)
	r.stage(r.k3, sys, x, r.k2, u, t, dt/2)
	r.stage(r.k4, sys, x, r.k3, u, t, dt)

	next := make(State, n)
	dt6 := dt / 6
	for i := range x {
		next[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return next
}
