package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// PoolKind controls how clients render a pool.
type PoolKind string

const (
	PoolKindIcons     PoolKind = "icons"
	PoolKindAutoNames PoolKind = "auto_names"
)

// DefaultQuota is the per-player quota of a pool that does not declare one.
const DefaultQuota = 2

var ErrInvalidCatalog = errors.New("invalid catalog")

// Name is the display name of an item.
type Name struct {
	FullName  string `json:"full_name"`
	ShortName string `json:"short_name"`
}

// Item is an immutable selectable entry.
type Item struct {
	Key         string `json:"key"`
	Name        Name   `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image_uri"`
	Pool        string `json:"pool"`
}

// Pool groups items under a per-player quota.
type Pool struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Kind  PoolKind `json:"kind"`
	Quota int      `json:"quota"`
	Items []string `json:"contains"`
}

// Gambit is an optional selection that sits outside every pool.
type Gambit struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog is built once at startup and only read afterwards.
type Catalog struct {
	pools   []Pool
	poolIdx map[string]int
	items   map[string]Item
	gambits []Gambit
	gambIdx map[string]int
}

type fileItem struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	ShortName   string `yaml:"short_name"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

type filePool struct {
	Key   string     `yaml:"key"`
	Name  string     `yaml:"name"`
	Kind  PoolKind   `yaml:"kind"`
	Quota int        `yaml:"quota"`
	Items []fileItem `yaml:"items"`
}

type fileCatalog struct {
	Pools   []filePool `yaml:"pools"`
	Gambits []Gambit   `yaml:"gambits"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file, or the default one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	var pools []Pool
	var items []Item
	for _, fp := range fc.Pools {
		p := Pool{Key: fp.Key, Name: fp.Name, Kind: fp.Kind, Quota: fp.Quota}
		for _, fi := range fp.Items {
			short := fi.ShortName
			if short == "" {
				short = fi.Name
			}
			items = append(items, Item{
				Key:         fi.Key,
				Name:        Name{FullName: fi.Name, ShortName: short},
				Description: fi.Description,
				Image:       fi.Image,
				Pool:        fp.Key,
			})
			p.Items = append(p.Items, fi.Key)
		}
		pools = append(pools, p)
	}
	return New(pools, items, fc.Gambits)
}

// New builds a catalog and fails on duplicate keys or dangling references.
func New(pools []Pool, items []Item, gambits []Gambit) (*Catalog, error) {
	c := &Catalog{
		poolIdx: make(map[string]int, len(pools)),
		items:   make(map[string]Item, len(items)),
		gambIdx: make(map[string]int, len(gambits)),
	}

	for _, p := range pools {
		if p.Key == "" {
			return nil, fmt.Errorf("%w: pool key cannot be empty", ErrInvalidCatalog)
		}
		if _, exists := c.poolIdx[p.Key]; exists {
			return nil, fmt.Errorf("%w: pool %q declared twice", ErrInvalidCatalog, p.Key)
		}
		if p.Quota <= 0 {
			p.Quota = DefaultQuota
		}
		if p.Kind == "" {
			p.Kind = PoolKindIcons
		}
		p.Items = append([]string(nil), p.Items...)
		c.poolIdx[p.Key] = len(c.pools)
		c.pools = append(c.pools, p)
	}

	for _, it := range items {
		if it.Key == "" {
			return nil, fmt.Errorf("%w: item key cannot be empty", ErrInvalidCatalog)
		}
		if _, exists := c.items[it.Key]; exists {
			return nil, fmt.Errorf("%w: item %q declared twice", ErrInvalidCatalog, it.Key)
		}
		if _, ok := c.poolIdx[it.Pool]; !ok {
			return nil, fmt.Errorf("%w: item %q references unknown pool %q", ErrInvalidCatalog, it.Key, it.Pool)
		}
		c.items[it.Key] = it
	}

	listed := make(map[string]bool, len(c.items))
	for _, p := range c.pools {
		for _, key := range p.Items {
			it, ok := c.items[key]
			if !ok {
				return nil, fmt.Errorf("%w: pool %q contains unknown item %q", ErrInvalidCatalog, p.Key, key)
			}
			if it.Pool != p.Key {
				return nil, fmt.Errorf("%w: item %q listed in pool %q but belongs to %q", ErrInvalidCatalog, key, p.Key, it.Pool)
			}
			if listed[key] {
				return nil, fmt.Errorf("%w: item %q listed twice in pool %q", ErrInvalidCatalog, key, p.Key)
			}
			listed[key] = true
		}
	}
	// an unlisted item would pass LegalPick but never be offered as eligible
	for _, it := range items {
		if !listed[it.Key] {
			return nil, fmt.Errorf("%w: item %q is missing from its pool %q", ErrInvalidCatalog, it.Key, it.Pool)
		}
	}

	for _, g := range gambits {
		if g.Key == "" {
			return nil, fmt.Errorf("%w: gambit key cannot be empty", ErrInvalidCatalog)
		}
		if _, exists := c.gambIdx[g.Key]; exists {
			return nil, fmt.Errorf("%w: gambit %q declared twice", ErrInvalidCatalog, g.Key)
		}
		if _, clash := c.items[g.Key]; clash {
			return nil, fmt.Errorf("%w: gambit %q shadows an item", ErrInvalidCatalog, g.Key)
		}
		c.gambIdx[g.Key] = len(c.gambits)
		c.gambits = append(c.gambits, g)
	}

	return c, nil
}

// Item looks up an item by key.
func (c *Catalog) Item(key string) (Item, bool) {
	it, ok := c.items[key]
	return it, ok
}

// Pool looks up a pool by key.
func (c *Catalog) Pool(key string) (Pool, bool) {
	i, ok := c.poolIdx[key]
	if !ok {
		return Pool{}, false
	}
	return c.pools[i], true
}

// Pools returns the pools in declaration order.
func (c *Catalog) Pools() []Pool {
	out := make([]Pool, len(c.pools))
	copy(out, c.pools)
	return out
}

// Items returns every item keyed by item key.
func (c *Catalog) Items() map[string]Item {
	out := make(map[string]Item, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// Gambit looks up a gambit by key.
func (c *Catalog) Gambit(key string) (Gambit, bool) {
	i, ok := c.gambIdx[key]
	if !ok {
		return Gambit{}, false
	}
	return c.gambits[i], true
}

// Gambits returns the gambits in declaration order.
func (c *Catalog) Gambits() []Gambit {
	out := make([]Gambit, len(c.gambits))
	copy(out, c.gambits)
	return out
}
