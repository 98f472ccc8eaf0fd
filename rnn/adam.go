package rnn

import "math"

// adamState carries first and second moment estimates for every parameter,
// laid out to match the flattened parameter slices.
type adamState struct {
	m, v  [][]float64
	t     int
	beta1 float64
	beta2 float64
	eps   float64
}

func newAdamState(params [][]float64) *adamState {
	a := &adamState{
		m:     make([][]float64, len(params)),
		v:     make([][]float64, len(params)),
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
	}
	for k, p := range params {
		a.m[k] = make([]float64, len(p))
		a.v[k] = make([]float64, len(p))
	}
	return a
}

// step applies one bias-corrected Adam update in place.
func (a *adamState) step(params, grads [][]float64, lr float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for k := range params {
		for i := range params[k] {
			g := grads[k][i]
			a.m[k][i] = a.beta1*a.m[k][i] + (1-a.beta1)*g
			a.v[k][i] = a.beta2*a.v[k][i] + (1-a.beta2)*g*g
			mHat := a.m[k][i] / c1
			vHat := a.v[k][i] / c2
			params[k][i] -= lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}
