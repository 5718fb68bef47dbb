package memory

import (
	"context"
	"sync"

	"github.com/aretw0/botflow/pkg/domain"
)

// Recorder implements ports.EffectSink by keeping every dispatched effect.
type Recorder struct {
	mu      sync.Mutex
	effects map[string][]domain.Effect
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{effects: make(map[string][]domain.Effect)}
}

// Dispatch records effects under botID.
func (r *Recorder) Dispatch(_ context.Context, botID string, effects []domain.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[botID] = append(r.effects[botID], effects...)
	return nil
}

// Effects returns the effects recorded for botID.
func (r *Recorder) Effects(botID string) []domain.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Effect(nil), r.effects[botID]...)
}

// Messages returns the text of the send-message effects recorded for botID.
func (r *Recorder) Messages(botID string) []string {
	var out []string
	for _, e := range r.Effects(botID) {
		if e.Type == domain.EffectSendMessage {
			out = append(out, e.Text)
		}
	}
	return out
}

// Reset forgets everything recorded for botID.
func (r *Recorder) Reset(botID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.effects, botID)
}
