package notification

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogPublisher writes messages to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notification").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, m Message) error {
	p.logger.Info().
		Str("id", m.ID).
		Str("kind", m.Kind).
		Str("patient_id", m.PatientID).
		Str("date", m.Date).
		Msg(m.Body)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MemoryPublisher keeps published messages in memory. Err, when set, is
// returned from every Publish call instead of recording the message.
type MemoryPublisher struct {
	mu       sync.Mutex
	Err      error
	messages []Message
}

func (p *MemoryPublisher) Publish(_ context.Context, m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, m)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
