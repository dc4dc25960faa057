// Package comm provides a fixed-size SPMD process group with blocking
// collective operations.
//
// A Group owns a set of ranks that execute the same program on disjoint
// data partitions. Cross-rank data exchange happens only through the
// explicit collectives; there is no implicit shared state. Every rank
// must call each collective in the same order and the same number of
// times. A rank with nothing to contribute must still participate with
// a neutral value (zero for sums), never skip the call.
package comm
