package batch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
)

// Result reports what one Execute call did.
type Result struct {
	Processed int
	Failed    int
	Errors    []string
	// Done is set once there is nothing left to process.
	Done bool
}

// Processor does the work of one job callback, one page at a time.
type Processor interface {
	Name() string
	// Count returns the number of items the job will process.
	Count(ctx context.Context, job *models.BatchJob) (int, error)
	// Execute handles up to limit items starting at offset. On error the
	// returned Result should only count work a retry of the page will not
	// repeat.
	Execute(ctx context.Context, job *models.BatchJob, offset, limit int) (Result, error)
}

type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor)}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.Name()] = p
}

func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeData unmarshals a job's data column into v. Empty data leaves v untouched.
func DecodeData(job *models.BatchJob, v any) error {
	if len(job.Data) == 0 {
		return nil
	}
	return json.Unmarshal(job.Data, v)
}
