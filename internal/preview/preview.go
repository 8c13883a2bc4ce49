// Package preview keeps resolved response files in memory so the UI can show
// them before anything touches the disk.
package preview

import (
	"sort"
	"sync"

	"github.com/sokinpui/tagstream/model"
)

// Registry stores files under a per-response path prefix. It is safe for
// concurrent use; registration happens on the post-processing goroutine
// while the UI reads.
type Registry struct {
	mu    sync.Mutex
	files map[string]*model.FileContent // prefix + "/" + name
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*model.FileContent)}
}

// Register stores every file under the given prefix, overwriting earlier
// registrations of the same path.
func (r *Registry) Register(files []*model.FileContent, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		r.files[prefix+"/"+f.Name] = f
	}
}

// Get returns the file registered under prefix+"/"+name, or nil.
func (r *Registry) Get(prefix, name string) *model.FileContent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[prefix+"/"+name]
}

// Paths lists all registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
