// Copyright 2026 Lectern Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of an ingest job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobCounts accumulates per-job progress.
type JobCounts struct {
	FilesDiscovered   int `json:"files_discovered"`
	FilesProcessed    int `json:"files_processed"`
	FilesFailed       int `json:"files_failed"`
	FilesSkipped      int `json:"files_skipped"`
	ChunksIndexed     int `json:"chunks_indexed"`
	DuplicatesDropped int `json:"duplicates_dropped"`
	EmbeddingFailures int `json:"embedding_failures"`
}

// Job is one ingest run. Errors lists per-file failures; Error is set
// only when the run itself aborts.
type Job struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Counts      JobCounts  `json:"counts"`
	Errors      []string   `json:"errors,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobRegistry tracks jobs in memory.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Create registers a new pending job.
func (r *JobRegistry) Create() *Job {
	job := &Job{
		ID:        uuid.NewString(),
		State:     JobPending,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// Get returns a copy of the job, or false if unknown.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all jobs, newest first.
func (r *JobRegistry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartedAt.After(out[i].StartedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Update mutates a job under the registry lock.
func (r *JobRegistry) Update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

// finish marks the job done with the given terminal state.
func (r *JobRegistry) finish(id string, state JobState, errMsg string) {
	now := time.Now().UTC()
	r.Update(id, func(j *Job) {
		j.State = state
		j.Error = errMsg
		j.CompletedAt = &now
	})
}
