package comm

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is a fixed set of ranks that jointly execute collectives.
//
// Reductions are deterministic: contributions are combined in rank
// order regardless of arrival order, so a sum over the group yields
// bit-identical results from run to run.
type Group struct {
	size int

	mu   sync.Mutex
	cond *sync.Cond

	gen     uint64
	arrived int
	parts   [][]float64
	length  int
	op      reduceOp
	result  []float64

	exOnce sync.Once
	ex     exchangeState
}

// reduceOp selects how contributions are combined. Both operations
// are commutative and associative; combined in rank order they are
// also deterministic.
type reduceOp int

const (
	opSum reduceOp = iota
	opMax
)

// NewGroup creates a process group with the given number of ranks.
func NewGroup(size int) (*Group, error) {
	if size <= 0 {
		return nil, fmt.Errorf("comm: group size must be > 0: %d", size)
	}

	g := &Group{
		size:   size,
		parts:  make([][]float64, size),
		length: -1,
	}
	g.cond = sync.NewCond(&g.mu)

	return g, nil
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.size }

// Rank returns the communicator handle for one rank.
func (g *Group) Rank(rank int) *Comm {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("comm: rank %d out of range [0,%d)", rank, g.size))
	}

	return &Comm{group: g, rank: rank}
}

// Comm is one rank's handle into a Group. All collective methods block
// until every rank in the group has made the matching call.
type Comm struct {
	group *Group
	rank  int
}

// Rank returns this rank's index within the group.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return c.group.size }

// allReduce deposits this rank's contribution and returns the
// elementwise combination over all ranks, applied in rank order.
//
// Every rank must pass a slice of the same length and the same op. A
// mismatch is a protocol violation: the collective contract has no
// partial-failure mode, so this panics rather than leaving the group
// deadlocked.
func (g *Group) allReduce(rank int, local []float64, op reduceOp) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.length < 0 {
		g.length = len(local)
		g.op = op
	} else if g.length != len(local) || g.op != op {
		panic(fmt.Sprintf("comm: rank %d issued a mismatched collective (%d values, op %d)",
			rank, len(local), op))
	}

	g.parts[rank] = local
	g.arrived++

	gen := g.gen
	if g.arrived == g.size {
		out := append([]float64(nil), g.parts[0]...)
		g.parts[0] = nil

		for r := 1; r < g.size; r++ {
			part := g.parts[r]
			for i, v := range part {
				if op == opMax {
					out[i] = math.Max(out[i], v)
				} else {
					out[i] += v
				}
			}

			g.parts[r] = nil
		}

		g.result = out
		g.arrived = 0
		g.length = -1
		g.gen++
		g.cond.Broadcast()
	} else {
		for gen == g.gen {
			g.cond.Wait()
		}
	}

	return g.result
}

// AllReduceFloat64s sums values elementwise across all ranks and
// stores the result back into values on every rank.
func (c *Comm) AllReduceFloat64s(values []float64) {
	copy(values, c.group.allReduce(c.rank, values, opSum))
}

// AllReduceFloat64 returns the sum of v over all ranks.
func (c *Comm) AllReduceFloat64(v float64) float64 {
	return c.group.allReduce(c.rank, []float64{v}, opSum)[0]
}

// AllReduceMaxFloat64 returns the maximum of v over all ranks.
func (c *Comm) AllReduceMaxFloat64(v float64) float64 {
	return c.group.allReduce(c.rank, []float64{v}, opMax)[0]
}

// AllReduceInt64 returns the sum of v over all ranks.
//
// Values are carried as float64 internally; counts up to 2^53 are
// exact, which covers any realistic mode or particle total.
func (c *Comm) AllReduceInt64(v int64) int64 {
	return int64(c.group.allReduce(c.rank, []float64{float64(v)}, opSum)[0])
}

// Barrier blocks until every rank has reached it.
func (c *Comm) Barrier() {
	c.group.allReduce(c.rank, nil, opSum)
}

// Run launches fn once per rank on its own goroutine and waits for
// all ranks to finish, returning the first error.
func Run(size int, fn func(c *Comm) error) error {
	g, err := NewGroup(size)
	if err != nil {
		return err
	}

	eg := new(errgroup.Group)
	for rank := range size {
		c := g.Rank(rank)
		eg.Go(func() error { return fn(c) })
	}

	return eg.Wait()
}
