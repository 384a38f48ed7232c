package widgets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tcmartin/crewdeck/pkg/collections"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/storage"
)

// Storage keys
const (
	VisibleKey = "dashboard_visible_widgets"
	OrderKey   = "dashboard_widget_order"
)

// ErrUnknownWidget is returned for ids outside the catalog
var ErrUnknownWidget = errors.New("unknown widget")

// Placement is a widget at its position in the user's layout
type Placement struct {
	Widget
	Position int  `json:"position"`
	Visible  bool `json:"visible"`
}

// Preferences is the user's widget layout backed by a preference store.
// The order is always a permutation of the catalog ids.
type Preferences struct {
	store   storage.PreferenceStore
	catalog Catalog
	logger  *slog.Logger

	mu      sync.Mutex
	visible *collections.OrderedSet[string]
	order   *collections.OrderedSet[string]
}

// Option configures Preferences
type Option func(*Preferences)

// WithCatalog replaces the built-in catalog
func WithCatalog(c Catalog) Option {
	return func(p *Preferences) { p.catalog = c }
}

// WithLogger sets the logger used to report repaired data
func WithLogger(l *slog.Logger) Option {
	return func(p *Preferences) { p.logger = l }
}

// NewPreferences creates a layout holding the catalog defaults. Call Load to
// read what was persisted.
func NewPreferences(store storage.PreferenceStore, opts ...Option) *Preferences {
	p := &Preferences{
		store:   store,
		catalog: DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger)
	p.setDefaults()
	return p
}

func (p *Preferences) setDefaults() {
	p.visible = collections.NewOrderedSet(p.catalog.DefaultVisible()...)
	p.order = collections.NewOrderedSet(p.catalog.IDs()...)
}

// Catalog returns the widget catalog
func (p *Preferences) Catalog() Catalog {
	return append(Catalog(nil), p.catalog...)
}

// Load reads both keys. Missing or malformed values fall back to the
// defaults; unknown ids are dropped and ids missing from the order are
// appended in catalog order.
func (p *Preferences) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setDefaults()

	visible, err := p.readIDs(VisibleKey)
	if err != nil {
		return err
	}
	if visible != nil {
		p.visible = collections.NewOrderedSet[string]()
		for _, id := range visible {
			if _, ok := p.catalog.Lookup(id); ok {
				p.visible.Add(id)
			}
		}
	}

	order, err := p.readIDs(OrderKey)
	if err != nil {
		return err
	}
	if order != nil {
		p.order = collections.NewOrderedSet[string]()
		for _, id := range order {
			if _, ok := p.catalog.Lookup(id); ok {
				p.order.Add(id)
			}
		}
		for _, id := range p.catalog.IDs() {
			p.order.Add(id)
		}
	}
	return nil
}

// readIDs returns nil when the key is absent or unparseable
func (p *Preferences) readIDs(key string) ([]string, error) {
	raw, ok, err := p.store.GetItem(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || ids == nil {
		p.logger.Warn("ignoring malformed widget preference", "key", key, "error", err)
		return nil, nil
	}
	return ids, nil
}

// Save persists both keys
func (p *Preferences) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitLocked(p.visible, p.order)
}

// commitLocked writes the given sets and only then makes them current. A nil
// set is left untouched. If a later key fails, keys already written are put
// back so memory and storage keep matching.
func (p *Preferences) commitLocked(visible, order *collections.OrderedSet[string]) error {
	writes := []struct {
		key       string
		cur, next *collections.OrderedSet[string]
	}{
		{VisibleKey, p.visible, visible},
		{OrderKey, p.order, order},
	}

	var written []int
	for i, w := range writes {
		if w.next == nil {
			continue
		}
		if err := p.writeIDs(w.key, w.next.Items()); err != nil {
			for _, j := range written {
				if rerr := p.writeIDs(writes[j].key, writes[j].cur.Items()); rerr != nil {
					p.logger.Error("failed to restore widget preference", "key", writes[j].key, "error", rerr)
				}
			}
			return err
		}
		written = append(written, i)
	}

	if visible != nil {
		p.visible = visible
	}
	if order != nil {
		p.order = order
	}
	return nil
}

func (p *Preferences) writeIDs(key string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := p.store.SetItem(key, string(raw)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Reset restores the catalog defaults and persists them
func (p *Preferences) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commitLocked(
		collections.NewOrderedSet(p.catalog.DefaultVisible()...),
		collections.NewOrderedSet(p.catalog.IDs()...),
	)
}

// Toggle flips the visibility of id and persists. It returns the new
// visibility. On a failed save the layout is unchanged.
func (p *Preferences) Toggle(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.catalog.Lookup(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownWidget, id)
	}
	next := p.visible.Clone()
	visible := next.Toggle(id)
	if err := p.commitLocked(next, nil); err != nil {
		return !visible, err
	}
	return visible, nil
}

// MoveUp moves id one position towards the top and persists. It reports
// whether the position changed. Nothing is written when it did not.
func (p *Preferences) MoveUp(id string) (bool, error) {
	return p.move(id, -1)
}

// MoveDown moves id one position towards the bottom and persists
func (p *Preferences) MoveDown(id string) (bool, error) {
	return p.move(id, 1)
}

func (p *Preferences) move(id string, delta int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.catalog.Lookup(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownWidget, id)
	}
	next := p.order.Clone()
	if !next.Move(id, delta) {
		return false, nil
	}
	if err := p.commitLocked(nil, next); err != nil {
		return false, err
	}
	return true, nil
}

// IsVisible reports whether id is shown
func (p *Preferences) IsVisible(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible.Contains(id)
}

// Visible returns the visible ids as persisted
func (p *Preferences) Visible() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible.Items()
}

// Order returns the full widget order
func (p *Preferences) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Items()
}

// Layout returns every catalog widget in the user's order
func (p *Preferences) Layout() []Placement {
	p.mu.Lock()
	defer p.mu.Unlock()

	layout := make([]Placement, 0, p.order.Len())
	for i, id := range p.order.Items() {
		w, _ := p.catalog.Lookup(id)
		layout = append(layout, Placement{
			Widget:   w,
			Position: i,
			Visible:  p.visible.Contains(id),
		})
	}
	return layout
}

// VisibleLayout returns only the shown widgets, in order
func (p *Preferences) VisibleLayout() []Placement {
	var out []Placement
	for _, pl := range p.Layout() {
		if pl.Visible {
			out = append(out, pl)
		}
	}
	return out
}
