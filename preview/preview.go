// Package preview delivers validated programs to an external renderer and relays progress
// snapshots to watchers.
package preview

import (
	"context"
	"time"
)

// DefaultTimeout bounds one render round-trip.
const DefaultTimeout = 7 * time.Second

// Result is the renderer's answer for one source text.
type Result struct {
	ID          string `json:"id"`
	Valid       bool   `json:"valid"`
	Artifact    string `json:"artifact,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// Unavailable is the placeholder used when no renderer answered in time.
func Unavailable(id string) *Result {
	return &Result{ID: id, Unavailable: true}
}

func (r *Result) String() string {
	switch {
	case r == nil || r.Unavailable:
		return "preview unavailable"
	case r.Valid:
		return "preview rendered"
	case r.Artifact != "":
		return "preview failed: " + r.Artifact
	default:
		return "preview failed"
	}
}

// Renderer renders a source text. A missing or slow renderer yields an Unavailable result,
// not an error; errors are reserved for context cancellation.
type Renderer interface {
	Render(ctx context.Context, source string) (*Result, error)
}

// NopRenderer never renders anything.
type NopRenderer struct{}

func (NopRenderer) Render(ctx context.Context, source string) (*Result, error) {
	return Unavailable(""), nil
}

// Snapshot is one progress notification.
type Snapshot struct {
	RunID      string    `json:"run_id,omitempty"`
	Iteration  int       `json:"iteration"`
	Score      float64   `json:"score"`
	Steps      int       `json:"steps"`
	LastAction string    `json:"last_action,omitempty"`
	LastResult string    `json:"last_result,omitempty"`
	Reward     float64   `json:"reward"`
	Terminal   bool      `json:"terminal"`
	Source     string    `json:"source,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
