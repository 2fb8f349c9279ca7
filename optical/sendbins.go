package optical

import "container/heap"

// sendBins is the set of reserved time bins, ordered so that the earliest
// is always at hand.
type sendBins struct {
	bins     binHeap
	reserved map[int64]bool
}

func newSendBins() *sendBins {
	return &sendBins{reserved: make(map[int64]bool)}
}

func (s *sendBins) Len() int {
	return len(s.bins)
}

func (s *sendBins) Contains(bin int64) bool {
	return s.reserved[bin]
}

func (s *sendBins) Reserve(bin int64) {
	if s.reserved[bin] {
		panic("time bin reserved twice")
	}

	s.reserved[bin] = true
	heap.Push(&s.bins, bin)
}

func (s *sendBins) Earliest() int64 {
	return s.bins[0]
}

func (s *sendBins) PopEarliest() int64 {
	bin := heap.Pop(&s.bins).(int64)
	delete(s.reserved, bin)

	return bin
}

type binHeap []int64

func (h binHeap) Len() int           { return len(h) }
func (h binHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h binHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *binHeap) Push(x any) {
	*h = append(*h, x.(int64))
}

func (h *binHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}
