package comm

import (
	"fmt"
	"sync"
)

// exchangeState backs the all-to-all collective. It is separate from
// the reduction state so the two collectives never share buffers, but
// group protocol still requires all ranks to issue collectives in the
// same order.
type exchangeState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int
	boxes   [][][]float64 // boxes[src][dst]
	result  [][][]float64 // result[dst][src]
}

func (g *Group) exchangeInit() {
	g.exOnce.Do(func() {
		g.ex.boxes = make([][][]float64, g.size)
		g.ex.cond = sync.NewCond(&g.ex.mu)
	})
}

// AllToAllFloat64s sends send[d] to rank d and returns recv where
// recv[s] is the buffer this rank received from rank s. Buffers may
// be empty but send must have exactly one entry per rank.
//
// The returned slices alias the senders' buffers; callers must treat
// them as read-only or copy before mutating.
func (c *Comm) AllToAllFloat64s(send [][]float64) [][]float64 {
	g := c.group
	if len(send) != g.size {
		panic(fmt.Sprintf("comm: rank %d exchanged %d buffers, group has %d ranks",
			c.rank, len(send), g.size))
	}

	g.exchangeInit()

	ex := &g.ex
	ex.mu.Lock()
	defer ex.mu.Unlock()

	ex.boxes[c.rank] = send
	ex.arrived++

	gen := ex.gen
	if ex.arrived == g.size {
		result := make([][][]float64, g.size)
		for dst := range g.size {
			result[dst] = make([][]float64, g.size)
			for src := range g.size {
				result[dst][src] = ex.boxes[src][dst]
			}
		}

		for src := range g.size {
			ex.boxes[src] = nil
		}

		ex.result = result
		ex.arrived = 0
		ex.gen++
		ex.cond.Broadcast()
	} else {
		for gen == ex.gen {
			ex.cond.Wait()
		}
	}

	return ex.result[c.rank]
}
