package physics

type State []float64

type Control []float64

// System is a continuous-time model x' = f(x, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}
