package catalog

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/deppfellow/case-unboxing/internal/model"
)

// RarityWeights are the relative odds of each tier. They are renormalised
// over the tiers a case actually contains.
var RarityWeights = map[string]float64{
	model.RarityMilSpec:       79.92,
	model.RarityRestricted:    15.98,
	model.RarityClassified:    3.2,
	model.RarityCovert:        0.64,
	model.RarityExtraordinary: 0.26,
	model.RarityIndustrial:    15,
	model.RarityConsumer:      80,
}

// DefaultRarityWeight applies to tiers missing from RarityWeights.
const DefaultRarityWeight = 1.0

var ErrEmptyCase = errors.New("case has no items")

// Drawer picks random items from a case. It is safe for concurrent use.
type Drawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawer returns a drawer reading from src. A nil src uses a randomly
// seeded PCG.
func NewDrawer(src rand.Source) *Drawer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Drawer{rng: rand.New(src)}
}

type tier struct {
	weight float64
	items  []model.Item
}

// Draw picks a rarity tier by weight, then an item uniformly within it.
func (d *Drawer) Draw(c *Case) (model.Item, error) {
	if c == nil || len(c.Items) == 0 {
		return model.Item{}, ErrEmptyCase
	}

	tiers := groupByRarity(c.Items)

	var total float64
	for _, t := range tiers {
		total += t.weight
	}

	d.mu.Lock()
	roll := d.rng.Float64() * total
	pick := d.rng.Float64()
	d.mu.Unlock()

	chosen := tiers[len(tiers)-1]
	for _, t := range tiers {
		if roll < t.weight {
			chosen = t
			break
		}
		roll -= t.weight
	}

	return chosen.items[int(pick*float64(len(chosen.items)))], nil
}

// groupByRarity keeps tiers in order of first appearance so draws are
// reproducible for a fixed source.
func groupByRarity(items []model.Item) []*tier {
	var tiers []*tier
	index := make(map[string]*tier)

	for _, it := range items {
		t, ok := index[it.Rarity.Name]
		if !ok {
			w, known := RarityWeights[it.Rarity.Name]
			if !known {
				w = DefaultRarityWeight
			}
			t = &tier{weight: w}
			index[it.Rarity.Name] = t
			tiers = append(tiers, t)
		}
		t.items = append(t.items, it)
	}
	return tiers
}
