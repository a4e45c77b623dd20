package cron

import "context"

// Job represents a scheduled task that runs inside the sync worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scoped jobs name the resource their run lock is keyed on.
type Scoped interface {
	Scope() string
}

// ScopeOf returns the lock scope of job, falling back to its name.
func ScopeOf(job Job) string {
	if scoped, ok := job.(Scoped); ok && scoped.Scope() != "" {
		return scoped.Scope()
	}
	return job.Name()
}

// Registry tracks registered cron jobs.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
