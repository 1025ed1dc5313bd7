package loop

import "math"

// pSquareEstimator implements the P² algorithm (Jain & Chlamtac, 1985) for
// O(1)-memory, O(1)-update streaming quantile estimation of a single
// quantile. pSquareMultiQuantile runs one estimator per tracked quantile.
type pSquareEstimator struct {
	p          float64
	markers    [5]float64 // heights
	positions  [5]float64 // actual marker positions
	desired    [5]float64 // desired marker positions
	increments [5]float64 // desired increments per observation
	count      int
}

func newPSquareEstimator(p float64) *pSquareEstimator {
	return &pSquareEstimator{
		p:          p,
		increments: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (e *pSquareEstimator) Observe(x float64) {
	e.count++
	if e.count <= 5 {
		e.markers[e.count-1] = x
		if e.count == 5 {
			// sort the first 5 observations to seed marker heights
			for i := 1; i < 5; i++ {
				for j := i; j > 0 && e.markers[j-1] > e.markers[j]; j-- {
					e.markers[j-1], e.markers[j] = e.markers[j], e.markers[j-1]
				}
			}
			for i := 0; i < 5; i++ {
				e.positions[i] = float64(i + 1)
			}
			e.desired = [5]float64{1, 1 + 2*e.p, 1 + 4*e.p, 3 + 2*e.p, 5}
		}
		return
	}

	k := 0
	switch {
	case x < e.markers[0]:
		e.markers[0] = x
		k = 0
	case x >= e.markers[4]:
		e.markers[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if e.markers[i] <= x && x < e.markers[i+1] {
				k = i
				break
			}
		}
	}
	for i := k + 1; i < 5; i++ {
		e.positions[i]++
	}
	for i := 0; i < 5; i++ {
		e.desired[i] += e.increments[i]
	}
	for i := 1; i < 4; i++ {
		d := e.desired[i] - e.positions[i]
		if (d >= 1 && e.positions[i+1]-e.positions[i] > 1) ||
			(d <= -1 && e.positions[i-1]-e.positions[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}
			newHeight := e.parabolic(i, sign)
			if e.markers[i-1] < newHeight && newHeight < e.markers[i+1] {
				e.markers[i] = newHeight
			} else {
				e.markers[i] = e.linear(i, sign)
			}
			e.positions[i] += sign
		}
	}
}

func (e *pSquareEstimator) parabolic(i int, d float64) float64 {
	qi, qip1, qim1 := e.markers[i], e.markers[i+1], e.markers[i-1]
	ni, nip1, nim1 := e.positions[i], e.positions[i+1], e.positions[i-1]
	return qi + d/(nip1-nim1)*((ni-nim1+d)*(qip1-qi)/(nip1-ni)+(nip1-ni-d)*(qi-qim1)/(ni-nim1))
}

func (e *pSquareEstimator) linear(i int, d float64) float64 {
	qi := e.markers[i]
	qd := e.markers[i+int(d)]
	nd := e.positions[i+int(d)]
	ni := e.positions[i]
	return qi + d*(qd-qi)/(nd-ni)
}

func (e *pSquareEstimator) Value() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		// not enough samples for P^2 yet; fall back to the closest observed sample
		vals := e.markers[:e.count]
		idx := int(math.Round(e.p * float64(e.count-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(vals) {
			idx = len(vals) - 1
		}
		sorted := append([]float64(nil), vals...)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
				sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
			}
		}
		return sorted[idx]
	}
	return e.markers[2]
}

// pSquareMultiQuantile tracks several quantiles of the same stream
// simultaneously, one estimator each.
type pSquareMultiQuantile struct {
	p50, p90, p95 *pSquareEstimator
}

func newPSquareMultiQuantile() *pSquareMultiQuantile {
	return &pSquareMultiQuantile{
		p50: newPSquareEstimator(0.50),
		p90: newPSquareEstimator(0.90),
		p95: newPSquareEstimator(0.95),
	}
}

func (m *pSquareMultiQuantile) Observe(x float64) {
	m.p50.Observe(x)
	m.p90.Observe(x)
	m.p95.Observe(x)
}
