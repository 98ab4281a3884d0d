package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mmcdole/culler/internal/domain"
)

// Options controls which files a scan picks up
type Options struct {
	Extensions []string // Lowercase, without the dot
	Recursive  bool
}

// Catalog is the ordered list of images under a root directory together
// with their ratings. It satisfies navigation.Source.
type Catalog struct {
	root   string
	opts   Options
	store  domain.RatingStore
	logger *slog.Logger

	mu        sync.RWMutex
	items     []domain.Item
	index     map[domain.ItemID]int
	observers []domain.RatingObserver
}

// Open scans root and applies stored ratings
func Open(root string, opts Options, store domain.RatingStore, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	c := &Catalog{root: abs, opts: opts, store: store, logger: logger}
	if _, err := c.Rescan(); err != nil {
		return nil, err
	}
	return c, nil
}

// Scan walks root and returns matching files ordered by id
func Scan(root string, opts Options) ([]domain.Item, error) {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}

	var items []domain.Item
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subdirectory: skip it, keep the rest
			return nil
		}
		if d.IsDir() {
			if path != root && (!opts.Recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		item, ok := itemFor(root, path, exts)
		if !ok {
			return nil
		}
		if info, err := d.Info(); err == nil {
			item.Size = info.Size()
			item.ModTime = info.ModTime()
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func itemFor(root, path string, exts map[string]bool) (domain.Item, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return domain.Item{}, false
	}
	item := domain.Item{ID: domain.ItemID(filepath.ToSlash(rel)), Path: path}
	if !exts[item.Ext()] {
		return domain.Item{}, false
	}
	return item, true
}

// Root returns the absolute catalog root
func (c *Catalog) Root() string { return c.root }

// Rescan re-reads the directory, keeping stored ratings. It reports whether
// the set of items changed.
func (c *Catalog) Rescan() (bool, error) {
	items, err := Scan(c.root, c.opts)
	if err != nil {
		return false, err
	}
	ratings, err := c.store.GetRatings(c.root)
	if err != nil {
		return false, fmt.Errorf("load ratings: %w", err)
	}
	index := make(map[domain.ItemID]int, len(items))
	for i := range items {
		items[i].Rating = ratings[items[i].ID]
		index[items[i].ID] = i
	}

	c.mu.Lock()
	changed := !sameIDs(c.items, items)
	c.items, c.index = items, index
	c.mu.Unlock()

	c.logger.Debug("catalog scanned", "root", c.root, "items", len(items), "rated", len(ratings), "changed", changed)
	return changed, nil
}

func sameIDs(a, b []domain.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// Len returns the number of items
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// At returns the item at catalog index i
func (c *Catalog) At(i int) domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[i]
}

// IndexOf returns the catalog index of id
func (c *Catalog) IndexOf(id domain.ItemID) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	return i, ok
}

// Get returns the item with id
func (c *Catalog) Get(id domain.ItemID) (domain.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return domain.Item{}, false
	}
	return c.items[i], true
}

// Lookup maps an absolute path to a catalog item
func (c *Catalog) Lookup(path string) (domain.Item, bool) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return domain.Item{}, false
	}
	return c.Get(domain.ItemID(filepath.ToSlash(rel)))
}

// Subscribe registers an observer for rating changes
func (c *Catalog) Subscribe(obs domain.RatingObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// SetRating persists a rating and notifies observers. RatingNone clears it.
func (c *Catalog) SetRating(id domain.ItemID, r domain.Rating) error {
	if !r.Valid() {
		return fmt.Errorf("rating %d out of range", int(r))
	}

	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("rate %s: %w", id, domain.ErrItemNotFound)
	}
	if c.items[i].Rating == r {
		c.mu.Unlock()
		return nil
	}
	if err := c.store.SetRating(c.root, id, r); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("rate %s: %w", id, err)
	}
	c.items[i].Rating = r
	observers := append([]domain.RatingObserver(nil), c.observers...)
	c.mu.Unlock()

	c.logger.Info("rating changed", "item", id, "rating", r.String())
	for _, obs := range observers {
		obs.OnRatingChanged(id, r)
	}
	return nil
}

// Marks returns the persisted marked ids
func (c *Catalog) Marks() ([]domain.ItemID, error) {
	return c.store.GetMarks(c.root)
}

// SetMarked persists a mark
func (c *Catalog) SetMarked(id domain.ItemID, marked bool) error {
	if err := c.store.SetMarked(c.root, id, marked); err != nil {
		return fmt.Errorf("mark %s: %w", id, err)
	}
	return nil
}
