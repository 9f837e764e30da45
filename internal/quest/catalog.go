package quest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

// Catalog holds all registered quest templates
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*Template // questID -> Template
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		templates: make(map[string]*Template),
	}
}

// Register stores a deep copy of t. A template with the same ID is replaced.
func (c *Catalog) Register(t *Template) {
	stored := cloneTemplate(t)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.templates[stored.ID]; exists {
		logger.Debug("Replacing quest template", "quest", stored.ID)
	}
	c.templates[stored.ID] = stored
}

// Get returns a template by ID. Callers must not modify it.
func (c *Catalog) Get(id string) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, exists := c.templates[id]
	return t, exists
}

// All returns every template, highest priority first, then by ID.
func (c *Catalog) All() []*Template {
	c.mu.RLock()
	all := make([]*Template, 0, len(c.templates))
	for _, t := range c.templates {
		all = append(all, t)
	}
	c.mu.RUnlock()

	sortTemplates(all)
	return all
}

// ByCategory returns the templates in category, in All order.
func (c *Catalog) ByCategory(category Category) []*Template {
	var out []*Template
	for _, t := range c.All() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Dependents returns the templates that list questID as a prerequisite.
func (c *Catalog) Dependents(questID string) []*Template {
	var out []*Template
	for _, t := range c.All() {
		if t.HasPrereq(questID) {
			out = append(out, t)
		}
	}
	return out
}

// Count returns the number of registered templates
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// LoadFromConfig registers every definition in config, replacing templates with the same ID.
func (c *Catalog) LoadFromConfig(config *QuestsConfig) error {
	for id, def := range config.Quests {
		t, err := createTemplateFromDefinition(id, &def)
		if err != nil {
			return fmt.Errorf("quest %s: %w", id, err)
		}
		c.Register(t)
	}
	return nil
}

// LoadFromYAML loads quests from a YAML file
func (c *Catalog) LoadFromYAML(filename string) error {
	config, err := LoadQuestsFromYAML(filename)
	if err != nil {
		return err
	}
	return c.LoadFromConfig(config)
}

// LoadFromDirectory loads quests from all YAML files in a directory
func (c *Catalog) LoadFromDirectory(dir string) error {
	config, err := LoadQuestsFromDirectory(dir)
	if err != nil {
		return err
	}
	return c.LoadFromConfig(config)
}

func sortTemplates(ts []*Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Priority != ts[j].Priority {
			return ts[i].Priority > ts[j].Priority
		}
		return ts[i].ID < ts[j].ID
	})
}

// cloneTemplate deep-copies t and fills defaults: objective IDs, wildcard
// targets for blank ones, and a minimum requirement of one.
func cloneTemplate(t *Template) *Template {
	out := *t
	out.Objectives = make([]Objective, len(t.Objectives))
	for i, obj := range t.Objectives {
		if obj.ID == "" {
			obj.ID = fmt.Sprintf("obj_%03d", i+1)
		}
		obj.Target = normalizeTarget(obj.Target)
		if obj.Required < 1 {
			obj.Required = 1
		}
		obj.Current = 0
		obj.Completed = false
		out.Objectives[i] = obj
	}
	out.Rewards = append([]Reward(nil), t.Rewards...)
	out.Requirements = append([]Requirement(nil), t.Requirements...)
	return &out
}
