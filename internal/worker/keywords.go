package worker

import "sync"

// keywordBuffer is a bounded FIFO of search terms. Strategy
// invocations are expensive (LLM calls, feed fetches), so generated
// terms are buffered and drained one per refill iteration.
type keywordBuffer struct {
	mu    sync.Mutex
	items []string
	max   int
}

func newKeywordBuffer(max int) *keywordBuffer {
	if max < 1 {
		max = 1
	}
	return &keywordBuffer{max: max}
}

// Append adds terms at the tail, discarding any beyond capacity.
// Returns the number of terms accepted.
func (b *keywordBuffer) Append(terms ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	added := 0
	for _, t := range terms {
		if len(b.items) >= b.max {
			break
		}
		if t == "" {
			continue
		}
		b.items = append(b.items, t)
		added++
	}
	return added
}

// Pop removes and returns the head term.
func (b *keywordBuffer) Pop() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return "", false
	}
	head := b.items[0]
	b.items = b.items[1:]
	return head, true
}

func (b *keywordBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *keywordBuffer) Cap() int { return b.max }
