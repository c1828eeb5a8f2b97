package engine

import "time"

// Status is the lifecycle state of a GenerationRequest.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Inclusive bounds for SamplingConfig.MaxTokens.
const (
	MinMaxTokens = 128
	MaxMaxTokens = 512
)

// SamplingConfig carries the generation parameters handed to the backend.
type SamplingConfig struct {
	MaxTokens int
}

// Validate rejects out-of-range values. Values are never clamped.
func (c SamplingConfig) Validate() error {
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return validationError{field: "max_tokens", msg: "must be between 128 and 512 inclusive"}
	}
	return nil
}

// GenerationRequest is owned by the scheduler goroutine from submission until
// it reaches a terminal status.
type GenerationRequest struct {
	ID          string
	Prompt      string
	Sampling    SamplingConfig
	SubmittedAt time.Time
	Status      Status

	admittedAt time.Time
	finishedAt time.Time
	reason     string
	outputLen  int
}

// RequestInfo is a read-only projection of a GenerationRequest.
type RequestInfo struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	MaxTokens   int           `json:"max_tokens"`
	PromptBytes int           `json:"prompt_bytes"`
	OutputBytes int           `json:"output_bytes"`
	Reason      string        `json:"reason,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
	AdmittedAt  time.Time     `json:"admitted_at,omitempty"`
	FinishedAt  time.Time     `json:"finished_at,omitempty"`
	QueueWait   time.Duration `json:"queue_wait_ns"`
}

func (r *GenerationRequest) info() RequestInfo {
	ri := RequestInfo{
		ID:          r.ID,
		Status:      r.Status,
		MaxTokens:   r.Sampling.MaxTokens,
		PromptBytes: len(r.Prompt),
		OutputBytes: r.outputLen,
		Reason:      r.reason,
		SubmittedAt: r.SubmittedAt,
		AdmittedAt:  r.admittedAt,
		FinishedAt:  r.finishedAt,
	}
	if !r.admittedAt.IsZero() {
		ri.QueueWait = r.admittedAt.Sub(r.SubmittedAt)
	}
	return ri
}

// Outcome describes how a running request ended.
type Outcome struct {
	Status Status
	Reason string
	// OutputBytes is the length of the final cumulative snapshot delivered.
	OutputBytes int
	Err         error
}

// Stats is a read-only view of the scheduler state.
type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	MaxQueueDepth int `json:"max_queue_depth"`
	Running       int `json:"running"`
	MaxConcurrent int `json:"max_concurrent"`

	Submitted uint64 `json:"submitted_total"`
	Rejected  uint64 `json:"rejected_total"`
	Completed uint64 `json:"completed_total"`
	Cancelled uint64 `json:"cancelled_total"`
	Failed    uint64 `json:"failed_total"`

	Closed bool `json:"closed"`
}
