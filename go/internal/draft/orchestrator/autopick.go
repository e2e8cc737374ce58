package orchestrator

import (
	"math/rand"
	"sync"

	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// AutoPickStrategy chooses the item committed on behalf of a player whose
// turn timed out or who has been skipped.
type AutoPickStrategy interface {
	SelectKey(cat *catalog.Catalog, d *models.Draft) (string, error)
}

// RandomStrategy picks uniformly among the holder's eligible items.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy returns a RandomStrategy seeded with seed.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) SelectKey(cat *catalog.Catalog, d *models.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.RandomPick(cat, d, s.rng)
}

// FirstEligibleStrategy takes the first eligible item in catalog order.
type FirstEligibleStrategy struct{}

func (FirstEligibleStrategy) SelectKey(cat *catalog.Catalog, d *models.Draft) (string, error) {
	if d.Complete {
		return "", engine.ErrDraftComplete
	}
	keys := engine.Eligible(cat, d)
	if len(keys) == 0 {
		return "", engine.ErrExhaustedPools
	}
	return keys[0], nil
}
