// Package registry loads the file-based test-suite and style registries that
// jobs are started from. Documents are plain YAML files under the registry
// root: suites/*.yaml and styles.yaml. The registry is read once at startup;
// edits require a reload.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"stylebench/internal/domain"
)

type stylesDoc struct {
	Styles []domain.Style `yaml:"styles"`
}

// Registry holds the loaded suites and styles, safe for concurrent reads.
type Registry struct {
	mu     sync.RWMutex
	path   string
	suites map[string]domain.TestSuite
	styles map[string]domain.Style
}

// Load reads every registry document under path.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the registry documents from disk.
func (r *Registry) Reload() error {
	suites, err := loadSuites(filepath.Join(r.path, "suites"))
	if err != nil {
		return err
	}
	styles, err := loadStyles(filepath.Join(r.path, "styles.yaml"))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.suites = suites
	r.styles = styles
	r.mu.Unlock()
	return nil
}

// Suite returns the suite registered under id.
func (r *Registry) Suite(id string) (domain.TestSuite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	suite, ok := r.suites[id]
	if !ok {
		return domain.TestSuite{}, fmt.Errorf("registry: suite %q: %w", id, domain.ErrNotFound)
	}
	return suite, nil
}

// Style returns the style registered under id.
func (r *Registry) Style(id string) (domain.Style, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	style, ok := r.styles[id]
	if !ok {
		return domain.Style{}, fmt.Errorf("registry: style %q: %w", id, domain.ErrNotFound)
	}
	return style, nil
}

// Suites lists all registered suites ordered by id.
func (r *Registry) Suites() []domain.TestSuite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TestSuite, 0, len(r.suites))
	for _, s := range r.suites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Styles lists all registered styles ordered by id.
func (r *Registry) Styles() []domain.Style {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Style, 0, len(r.styles))
	for _, s := range r.styles {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func loadSuites(dir string) (map[string]domain.TestSuite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.TestSuite{}, nil
		}
		return nil, fmt.Errorf("registry: read suites dir: %w", err)
	}

	suites := make(map[string]domain.TestSuite, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isYAML(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("registry: read suite %s: %w", name, err)
		}
		var suite domain.TestSuite
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("registry: decode suite %s: %w", name, err)
		}
		if suite.ID == "" {
			suite.ID = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		if suite.Name == "" {
			suite.Name = displayName(suite.ID)
		}
		if err := validateSuite(suite); err != nil {
			return nil, fmt.Errorf("registry: suite %s: %w", suite.ID, err)
		}
		suites[suite.ID] = suite
	}
	return suites, nil
}

func loadStyles(path string) (map[string]domain.Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.Style{}, nil
		}
		return nil, fmt.Errorf("registry: read styles: %w", err)
	}
	var doc stylesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: decode styles: %w", err)
	}
	styles := make(map[string]domain.Style, len(doc.Styles))
	for _, style := range doc.Styles {
		if style.ID == "" {
			return nil, fmt.Errorf("registry: style without id")
		}
		if style.Name == "" {
			style.Name = displayName(style.ID)
		}
		styles[style.ID] = style
	}
	return styles, nil
}

func validateSuite(suite domain.TestSuite) error {
	if len(suite.Items) == 0 {
		return fmt.Errorf("no work items")
	}
	seen := make(map[string]struct{}, len(suite.Items))
	for i, item := range suite.Items {
		if strings.TrimSpace(item.Prompt) == "" {
			return fmt.Errorf("item %d has no prompt", i)
		}
		if item.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// displayName turns a registry id like "portrait-closeups" into a readable
// label for clients that render lists.
func displayName(id string) string {
	c := cases.Title(language.Und)
	return c.String(strings.ReplaceAll(strings.ReplaceAll(id, "-", " "), "_", " "))
}
