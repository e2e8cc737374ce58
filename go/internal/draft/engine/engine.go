// Package engine holds the draft state machine. Every function is pure: it
// reads a models.Draft and returns a new one without touching its input.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/samber/lo"
)

// QuotaFor returns how many items each player may take from a pool.
func QuotaFor(pool catalog.Pool, players int) int {
	switch {
	case players <= 1:
		return pool.Quota
	case players == 2:
		return min(2, pool.Quota)
	default:
		return 1
	}
}

// Start creates a draft for players in a random snake order.
func Start(cat *catalog.Catalog, players []string, maxGambits int, rng *rand.Rand) (*models.Draft, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: no players", ErrConfiguration)
	}
	if dups := lo.FindDuplicates(players); len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate players %v", ErrConfiguration, dups)
	}
	if maxGambits < 0 {
		maxGambits = 0
	}

	quotas := make(map[string]int)
	maxPicks := 0
	for _, pool := range cat.Pools() {
		q := QuotaFor(pool, len(players))
		need := q * len(players)
		if need > len(pool.Items) {
			return nil, fmt.Errorf("%w: pool %q has %d items but %d players need %d",
				ErrConfiguration, pool.Key, len(pool.Items), len(players), need)
		}
		quotas[pool.Key] = q
		maxPicks += need
	}
	if maxPicks == 0 {
		return nil, fmt.Errorf("%w: catalog has nothing to pick", ErrConfiguration)
	}

	order := append([]string(nil), players...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	return &models.Draft{
		Players:       order,
		Position:      append([]string(nil), order...),
		NextPositions: reversed(order),
		Picks:         []models.DraftPick{},
		Picked:        []string{},
		SkipPlayers:   []string{},
		Gambits:       map[string][]string{},
		MaxGambits:    maxGambits,
		Quotas:        quotas,
		MaxPicks:      maxPicks,
	}, nil
}

// Holder returns the participant whose turn it is.
func Holder(d *models.Draft) (string, bool) {
	if d == nil || d.Complete || len(d.Position) == 0 {
		return "", false
	}
	return d.Position[0], true
}

// PoolCount counts player's picks that belong to pool.
func PoolCount(cat *catalog.Catalog, d *models.Draft, player, pool string) int {
	return lo.CountBy(d.Picks, func(p models.DraftPick) bool {
		if p.Player != player {
			return false
		}
		it, ok := cat.Item(p.Key)
		return ok && it.Pool == pool
	})
}

// PicksFor returns the item keys player has picked, in pick order.
func PicksFor(d *models.Draft, player string) []string {
	return lo.FilterMap(d.Picks, func(p models.DraftPick, _ int) (string, bool) {
		return p.Key, p.Player == player
	})
}

// IsPicked reports whether key has been taken.
func IsPicked(d *models.Draft, key string) bool {
	return lo.Contains(d.Picked, key)
}

// LegalPick checks whether player may pick key right now.
func LegalPick(cat *catalog.Catalog, d *models.Draft, player, key string) error {
	if d.Complete {
		return ErrDraftComplete
	}
	if holder, ok := Holder(d); !ok || holder != player {
		return ErrNotYourTurn
	}
	it, ok := cat.Item(key)
	if !ok {
		return ErrUnknownItem
	}
	quota, tracked := d.Quotas[it.Pool]
	if !tracked {
		return ErrNotPoolEligible
	}
	if IsPicked(d, key) {
		return ErrAlreadyPicked
	}
	if PoolCount(cat, d, player, it.Pool) >= quota {
		return ErrQuotaExceeded
	}
	return nil
}

// ApplyPick records a pick that LegalPick has accepted and advances the turn.
func ApplyPick(d *models.Draft, player, key string) *models.Draft {
	next := d.Clone()
	next.Picks = append(next.Picks, models.DraftPick{Key: key, Player: player, Index: len(next.Picks)})
	next.Picked = append(next.Picked, key)

	if len(next.Position) > 0 {
		next.Position = next.Position[1:]
	}
	if len(next.Position) == 0 {
		next.Position = next.NextPositions
		next.NextPositions = reversed(next.NextPositions)
	}

	next.Complete = len(next.Picks) == next.MaxPicks
	return next
}

// Eligible lists, in catalog order, the unpicked keys the current holder may take.
func Eligible(cat *catalog.Catalog, d *models.Draft) []string {
	holder, ok := Holder(d)
	if !ok {
		return nil
	}
	var keys []string
	for _, pool := range cat.Pools() {
		quota, tracked := d.Quotas[pool.Key]
		if !tracked || PoolCount(cat, d, holder, pool.Key) >= quota {
			continue
		}
		for _, key := range pool.Items {
			if !IsPicked(d, key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// RandomPick chooses uniformly among the keys the current holder may take.
func RandomPick(cat *catalog.Catalog, d *models.Draft, rng *rand.Rand) (string, error) {
	if d.Complete {
		return "", ErrDraftComplete
	}
	keys := Eligible(cat, d)
	if len(keys) == 0 {
		return "", ErrExhaustedPools
	}
	return keys[rng.Intn(len(keys))], nil
}

// Remaining returns how many picks are left before completion.
func Remaining(d *models.Draft) int {
	return max(0, d.MaxPicks-len(d.Picks))
}

// NextNonSkipped returns the first upcoming holder, across the current and the
// following round, who still picks manually.
func NextNonSkipped(d *models.Draft) (string, bool) {
	if d.Complete {
		return "", false
	}
	for _, p := range append(append([]string(nil), d.Position...), d.NextPositions...) {
		if !d.IsSkipped(p) {
			return p, true
		}
	}
	return "", false
}

// Skip marks player as no longer picking manually. It reports whether the
// draft changed.
func Skip(d *models.Draft, player string) (*models.Draft, bool) {
	if !d.HasPlayer(player) || d.IsSkipped(player) {
		return d, false
	}
	next := d.Clone()
	next.SkipPlayers = append(next.SkipPlayers, player)
	return next, true
}

// AllSkipped reports whether no player is left to pick manually.
func AllSkipped(d *models.Draft) bool {
	return lo.EveryBy(d.Players, d.IsSkipped)
}

// SetExtraSelection toggles a gambit for player. changed is false when the
// requested state already held.
func SetExtraSelection(cat *catalog.Catalog, d *models.Draft, player, key string, enabled bool) (next *models.Draft, changed bool, err error) {
	if d.Complete {
		return d, false, ErrDraftComplete
	}
	if _, ok := cat.Gambit(key); !ok {
		return d, false, ErrUnknownGambit
	}
	if !d.HasPlayer(player) {
		return d, false, ErrNotParticipant
	}

	current := d.Gambits[player]
	if lo.Contains(current, key) == enabled {
		return d, false, nil
	}
	if enabled && len(current) >= d.MaxGambits {
		return d, false, ErrQuotaExceeded
	}

	next = d.Clone()
	if enabled {
		next.Gambits[player] = append(next.Gambits[player], key)
	} else {
		next.Gambits[player] = lo.Without(next.Gambits[player], key)
	}
	return next, true, nil
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
