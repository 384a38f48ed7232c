// Package widgets holds the dashboard widget catalog and the user's
// persisted layout of it.
package widgets

// Size is the grid footprint of a widget
type Size string

// Widget sizes
const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeFull   Size = "full"
)

// Widget describes one dashboard panel
type Widget struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	DefaultVisible bool   `json:"default_visible"`
	Size           Size   `json:"size"`
}

// Catalog is an ordered, fixed list of widgets
type Catalog []Widget

var defaultCatalog = Catalog{
	{ID: "stats_overview", Title: "Overview", Description: "Counts of agents, crews, flows and executions", DefaultVisible: true, Size: SizeFull},
	{ID: "recent_executions", Title: "Recent Executions", Description: "Latest crew and flow runs with their status", DefaultVisible: true, Size: SizeLarge},
	{ID: "execution_chart", Title: "Execution Activity", Description: "Executions per day over the last two weeks", DefaultVisible: true, Size: SizeLarge},
	{ID: "quick_actions", Title: "Quick Actions", Description: "Shortcuts to create agents, crews and flows", DefaultVisible: true, Size: SizeMedium},
	{ID: "active_crews", Title: "Active Crews", Description: "Deployed crews and their last run", DefaultVisible: true, Size: SizeMedium},
	{ID: "token_usage", Title: "Token Usage", Description: "Prompt and completion tokens with estimated cost", DefaultVisible: false, Size: SizeMedium},
	{ID: "success_rate", Title: "Success Rate", Description: "Share of executions that completed", DefaultVisible: false, Size: SizeSmall},
	{ID: "triggers", Title: "Triggers", Description: "Active schedules and webhooks", DefaultVisible: false, Size: SizeSmall},
	{ID: "popular_templates", Title: "Popular Templates", Description: "Most used marketplace templates", DefaultVisible: false, Size: SizeMedium},
}

// DefaultCatalog returns a copy of the built-in catalog
func DefaultCatalog() Catalog {
	return append(Catalog(nil), defaultCatalog...)
}

// Lookup finds a widget by id
func (c Catalog) Lookup(id string) (Widget, bool) {
	for _, w := range c {
		if w.ID == id {
			return w, true
		}
	}
	return Widget{}, false
}

// IDs returns every widget id in catalog order
func (c Catalog) IDs() []string {
	ids := make([]string, len(c))
	for i, w := range c {
		ids[i] = w.ID
	}
	return ids
}

// DefaultVisible returns the ids visible by default, in catalog order
func (c Catalog) DefaultVisible() []string {
	var ids []string
	for _, w := range c {
		if w.DefaultVisible {
			ids = append(ids, w.ID)
		}
	}
	return ids
}
