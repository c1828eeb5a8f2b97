package types

import "time"

// GenerateRequest is the body of POST /generate. Omitted fields take the
// server defaults.
type GenerateRequest struct {
	// Prompt text to continue. Defaults to a demo prompt when omitted.
	// example: Explain superconductors like I'm five years old
	Prompt *string `json:"prompt,omitempty" example:"Explain superconductors like I'm five years old"`
	// Maximum number of new tokens, 128 to 512 inclusive. Defaults to 512.
	// example: 256
	MaxTokens *int `json:"max_tokens,omitempty" example:"256" minimum:"128" maximum:"512"`
}

// StreamLine is one NDJSON line of a streamed generation. Exactly one of
// Delta, Done or Error is meaningful per line.
type StreamLine struct {
	// Newly generated text since the previous line.
	// example: Hi there
	Delta string `json:"delta,omitempty" example:"Hi there"`
	// Set on the terminal line of a successful generation.
	Done bool `json:"done,omitempty"`
	// Terminal status (completed, cancelled, failed); only on the last line.
	// example: completed
	Status string `json:"status,omitempty" example:"completed"`
	// Failure reason; only on the last line of a failed or cancelled generation.
	// example: backend error
	Error string `json:"error,omitempty" example:"backend error"`
}

// ModelCard describes the served model (GET /model_card).
type ModelCard struct {
	// example: facebook/opt-350m
	ModelID string `json:"model_id" example:"facebook/opt-350m"`
	// example: OpenAI's GPT-3 model fine-tuned on the OpenWebText dataset
	Description string `json:"description" example:"OpenAI's GPT-3 model fine-tuned on the OpenWebText dataset"`
	// example: MIT
	License string `json:"license" example:"MIT"`
	// example: OpenAI
	Author string `json:"author" example:"OpenAI"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RequestStatus reports one generation request (GET /requests/{id}).
type RequestStatus struct {
	// example: 3f1c0d6a9b8e4f2a8c7d6e5f4a3b2c1d
	ID string `json:"id" example:"3f1c0d6a9b8e4f2a8c7d6e5f4a3b2c1d"`
	// queued, running, completed, cancelled or failed.
	// example: running
	Status string `json:"status" example:"running"`
	// example: 512
	MaxTokens int `json:"max_tokens" example:"512"`
	// Prompt length in bytes.
	PromptBytes int `json:"prompt_bytes"`
	// Bytes of generated text delivered so far (final once terminal).
	OutputBytes int `json:"output_bytes"`
	// Why the request ended, when it did not complete normally.
	// example: cancelled by client
	Reason      string     `json:"reason,omitempty" example:"cancelled by client"`
	SubmittedAt time.Time  `json:"submitted_at"`
	AdmittedAt  *time.Time `json:"admitted_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	// Time spent queued before admission, in milliseconds.
	QueueWaitMS int64 `json:"queue_wait_ms"`
}

// RequestsResponse wraps recent finished requests (GET /requests).
type RequestsResponse struct {
	Requests []RequestStatus `json:"requests"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Requests waiting for a slot.
	// example: 3
	QueueDepth int `json:"queue_depth" example:"3"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Sessions currently running in the backend.
	// example: 4
	Running int `json:"running" example:"4"`
	// Concurrency budget.
	// example: 4
	MaxConcurrent int `json:"max_concurrent" example:"4"`
	// Totals since start.
	Submitted uint64 `json:"submitted_total"`
	Rejected  uint64 `json:"rejected_total"`
	Completed uint64 `json:"completed_total"`
	Cancelled uint64 `json:"cancelled_total"`
	Failed    uint64 `json:"failed_total"`
	// ready or draining.
	// example: ready
	State string `json:"state" example:"ready"`
	// Name of the inference backend.
	// example: loopback
	Backend string `json:"backend" example:"loopback"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
