package bot

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	selectionsSize = 512
	selectionsTTL  = 30 * time.Minute
)

// selection is the leaders picked on a panel before they are applied.
type selection struct {
	Leader1 string
	Leader2 string
}

func (s selection) empty() bool {
	return s.Leader1 == "" && s.Leader2 == ""
}

// selections keeps pending leader picks per pair. Entries expire so panels
// that are never finalized do not accumulate.
type selections struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, selection]
}

func newSelections(size int, ttl time.Duration) *selections {
	return &selections{cache: expirable.NewLRU[string, selection](size, nil, ttl)}
}

// set records userID as the leader of slot (1 or 2) and returns the
// updated selection.
func (s *selections) set(key string, slot int, userID string) selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel, _ := s.cache.Get(key)
	if slot == 2 {
		sel.Leader2 = userID
	} else {
		sel.Leader1 = userID
	}
	s.cache.Add(key, sel)
	return sel
}

func (s *selections) get(key string) (selection, bool) {
	return s.cache.Get(key)
}

func (s *selections) clear(key string) {
	s.cache.Remove(key)
}
