package control

// None is a controller that never corrects.
type None struct{}

func NewNone() *None {
	return &None{}
}

func (n *None) Update(err float64) float64 { return 0 }

func (n *None) Reset() {}
