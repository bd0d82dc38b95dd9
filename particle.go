package goupf

import "gonum.org/v1/gonum/mat"

// Particle is one weighted pose hypothesis with its local uncertainty.
type Particle struct {
	State      []float64     // corrected state, angles in [0, 2π)
	Covariance *mat.SymDense // corrected covariance
	Weight     float64
}

// Clone returns a deep copy of the particle.
func (p Particle) Clone() Particle {
	state := make([]float64, len(p.State))
	copy(state, p.State)
	var cov *mat.SymDense
	if p.Covariance != nil {
		cov = mat.NewSymDense(StateDim, nil)
		cov.CopySym(p.Covariance)
	}
	return Particle{State: state, Covariance: cov, Weight: p.Weight}
}

// set copies o into the storage of p.
func (p *Particle) set(o Particle) {
	copy(p.State, o.State)
	p.Covariance.CopySym(o.Covariance)
	p.Weight = o.Weight
}

// population is an arena of N particle slots. Updates and resampling fill next and swap it with cur.
type population struct {
	cur, next []Particle
}

func newPopulation(n int) population {
	alloc := func() []Particle {
		ps := make([]Particle, n)
		for i := range ps {
			ps[i] = Particle{
				State:      make([]float64, StateDim),
				Covariance: mat.NewSymDense(StateDim, nil),
			}
		}
		return ps
	}
	return population{cur: alloc(), next: alloc()}
}

func (p *population) swap() {
	p.cur, p.next = p.next, p.cur
}

func (p *population) weights() []float64 {
	w := make([]float64, len(p.cur))
	for i, pt := range p.cur {
		w[i] = pt.Weight
	}
	return w
}

func (p *population) setWeights(w []float64) {
	for i := range p.cur {
		p.cur[i].Weight = w[i]
	}
}
