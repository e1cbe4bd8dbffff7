package job

import (
	"sync"

	"github.com/alphadose/haxmap"
)

// Registry maps job ids to live jobs. It is safe for concurrent use;
// reads are lock-free, insertion and removal are serialized.
type Registry struct {
	mu sync.Mutex
	m  *haxmap.Map[string, *Job]
}

func NewRegistry() *Registry {
	return &Registry{m: haxmap.New[string, *Job]()}
}

func (r *Registry) Get(id string) (*Job, bool) {
	return r.m.Get(id)
}

// Add inserts j unless its id is already present. It reports whether j
// was inserted.
func (r *Registry) Add(j *Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, loaded := r.m.GetOrSet(j.ID(), j)
	return !loaded
}

// Remove deletes id and returns the job it held. Of several concurrent
// removers exactly one gets ok == true.
func (r *Registry) Remove(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.GetAndDel(id)
}

// RemoveJob deletes j only while it is still the job registered under its
// id, so a successor added under the same id survives.
func (r *Registry) RemoveJob(j *Job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m.Get(j.ID())
	if !ok || cur != j {
		return false
	}
	r.m.Del(j.ID())
	return true
}

func (r *Registry) Len() int {
	return int(r.m.Len())
}

// Jobs returns a point-in-time copy of the live jobs.
func (r *Registry) Jobs() []*Job {
	jobs := make([]*Job, 0, r.Len())
	r.m.ForEach(func(_ string, j *Job) bool {
		jobs = append(jobs, j)
		return true
	})
	return jobs
}
