package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	pools := c.Pools()
	require.Len(t, pools, 3)
	assert.Equal(t, "armour", pools[0].Key)
	assert.Equal(t, []string{"helmet", "chestplate", "leggings", "boots", "bucket"}, pools[0].Items)

	it, ok := c.Item("trident")
	require.True(t, ok)
	assert.Equal(t, "tools", it.Pool)
	assert.Equal(t, "Trident", it.Name.ShortName)

	it, ok = c.Item("mega_taiga")
	require.True(t, ok)
	assert.Equal(t, "Mega Taiga", it.Name.FullName)
	assert.Equal(t, "Taiga", it.Name.ShortName)

	_, ok = c.Gambit("no_beds")
	assert.True(t, ok)
	assert.Len(t, c.Gambits(), 4)
}

func TestNewRejectsDanglingReferences(t *testing.T) {
	tests := []struct {
		name  string
		pools []Pool
		items []Item
		gamb  []Gambit
	}{
		{
			name:  "item references unknown pool",
			pools: []Pool{{Key: "a", Items: []string{"a1"}}},
			items: []Item{{Key: "a1", Pool: "b"}},
		},
		{
			name:  "pool lists unknown item",
			pools: []Pool{{Key: "a", Items: []string{"a1", "a2"}}},
			items: []Item{{Key: "a1", Pool: "a"}},
		},
		{
			name:  "pool lists item of another pool",
			pools: []Pool{{Key: "a", Items: []string{"b1"}}, {Key: "b"}},
			items: []Item{{Key: "b1", Pool: "b"}},
		},
		{
			name:  "item missing from its pool",
			pools: []Pool{{Key: "a", Items: []string{"a1"}}},
			items: []Item{{Key: "a1", Pool: "a"}, {Key: "a2", Pool: "a"}},
		},
		{
			name:  "item listed twice",
			pools: []Pool{{Key: "a", Items: []string{"a1", "a1"}}},
			items: []Item{{Key: "a1", Pool: "a"}},
		},
		{
			name:  "duplicate item",
			pools: []Pool{{Key: "a"}},
			items: []Item{{Key: "a1", Pool: "a"}, {Key: "a1", Pool: "a"}},
		},
		{
			name:  "duplicate pool",
			pools: []Pool{{Key: "a"}, {Key: "a"}},
		},
		{
			name:  "gambit shadows item",
			pools: []Pool{{Key: "a", Items: []string{"a1"}}},
			items: []Item{{Key: "a1", Pool: "a"}},
			gamb:  []Gambit{{Key: "a1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.pools, tt.items, tt.gamb)
			require.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestNewAppliesPoolDefaults(t *testing.T) {
	c, err := New(
		[]Pool{{Key: "a", Items: []string{"a1"}}},
		[]Item{{Key: "a1", Pool: "a"}},
		nil,
	)
	require.NoError(t, err)

	p, ok := c.Pool("a")
	require.True(t, ok)
	assert.Equal(t, DefaultQuota, p.Quota)
	assert.Equal(t, PoolKindIcons, p.Kind)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("pools: [this is: not valid"))
	require.Error(t, err)
}
