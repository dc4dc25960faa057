package testutil

// LatticeParticles returns n*n*n particles on a regular lattice
// filling the box, one per cell center. A lattice painted with
// cloud-in-cell at matching mesh size gives a perfectly uniform grid.
func LatticeParticles(n int, box [3]float64) [][3]float64 {
	pos := make([][3]float64, 0, n*n*n)
	for i := range n {
		for j := range n {
			for k := range n {
				pos = append(pos, [3]float64{
					(float64(i) + 0.5) * box[0] / float64(n),
					(float64(j) + 0.5) * box[1] / float64(n),
					(float64(k) + 0.5) * box[2] / float64(n),
				})
			}
		}
	}
	return pos
}

// StaticSource is a fixed in-memory particle catalog. Particles are
// split into contiguous rank shares, so the union over all ranks is
// exactly the stored set.
type StaticSource struct {
	BoxSize [3]float64
	Pos     [][3]float64
	Weights []float64
}

func (s *StaticSource) Box() [3]float64 { return s.BoxSize }

func (s *StaticSource) Particles(rank, size int) ([][3]float64, []float64, error) {
	lo := len(s.Pos) * rank / size
	hi := len(s.Pos) * (rank + 1) / size

	var w []float64
	if s.Weights != nil {
		w = s.Weights[lo:hi]
	}
	return s.Pos[lo:hi], w, nil
}
