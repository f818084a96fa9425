package gateway

import "sync"

// Generations hands out increasing tokens per logical operation so that a
// response can be dropped when a newer request for the same operation has
// been issued since.
type Generations struct {
	mu   sync.Mutex
	last map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{last: make(map[string]uint64)}
}

// Next issues a new token for op. Earlier tokens for op stop being current.
func (g *Generations) Next(op string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[op]++
	return g.last[op]
}

// IsCurrent reports whether gen is the latest token issued for op.
func (g *Generations) IsCurrent(op string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last[op] == gen
}
