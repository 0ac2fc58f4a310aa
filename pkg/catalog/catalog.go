// Package catalog holds the read-only metadata and invocation capabilities
// for every registered tool. The catalog is the leaf dependency of graph
// validation and the tool runner; it never executes anything itself.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
	"github.com/visionflowai/visionflow-oss/pkg/engine/runtime"
	"github.com/visionflowai/visionflow-oss/pkg/telemetry"
)

// Catalog maps tool names to their manifest metadata and invokers.
type Catalog struct {
	mu       sync.RWMutex
	tools    map[string]domain.ToolMetadata
	invokers map[string]runtime.ToolInvoker
	metrics  *telemetry.Registry
}

// New creates an empty catalog. metrics may be nil; when set, every
// registered tool gets a LOADED metrics entry at registration time.
func New(metrics *telemetry.Registry) *Catalog {
	return &Catalog{
		tools:    make(map[string]domain.ToolMetadata),
		invokers: make(map[string]runtime.ToolInvoker),
		metrics:  metrics,
	}
}

// Register adds a tool with its invoker. Names are unique: registering a
// duplicate is an error, as is a nil invoker or empty name.
func (c *Catalog) Register(meta domain.ToolMetadata, invoker runtime.ToolInvoker) error {
	if meta.Name == "" {
		return fmt.Errorf("register tool: name is empty")
	}
	if invoker == nil {
		return fmt.Errorf("register tool %q: %w", meta.Name, domain.ErrNilInvoker)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tools[meta.Name]; exists {
		return fmt.Errorf("register tool %q: %w", meta.Name, domain.ErrDuplicateTool)
	}
	c.tools[meta.Name] = meta
	c.invokers[meta.Name] = invoker

	if c.metrics != nil {
		c.metrics.Register(meta.Name)
	}
	return nil
}

// ApplyManifest adds or replaces metadata entries without touching invokers.
// Used by the manifest provider on hot reload: metadata may describe tools
// whose invoker arrives later (external plugin loading is a collaborator
// concern), and running tools keep their invoker across metadata updates.
func (c *Catalog) ApplyManifest(entries []domain.ToolMetadata) error {
	for _, meta := range entries {
		if meta.Name == "" {
			return fmt.Errorf("apply manifest: %w: entry without name", domain.ErrManifestMalformed)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, meta := range entries {
		c.tools[meta.Name] = meta
		if c.metrics != nil {
			c.metrics.Register(meta.Name)
		}
	}
	return nil
}

// Lookup returns the metadata for a tool name.
func (c *Catalog) Lookup(name string) (domain.ToolMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.tools[name]
	return meta, ok
}

// Invoker returns the execution capability for a tool name.
func (c *Catalog) Invoker(name string) (runtime.ToolInvoker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inv, ok := c.invokers[name]
	return inv, ok
}

// List returns all registered metadata sorted by tool name.
func (c *Catalog) List() []domain.ToolMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ToolMetadata, 0, len(c.tools))
	for _, meta := range c.tools {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
