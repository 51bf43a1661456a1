package reminder

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/covidtrack/covid-server/internal/platform/notification"
)

// Sweeper periodically computes every due reminder and hands it to the
// notification dispatcher.
type Sweeper struct {
	svc        *Service
	dispatcher *notification.Dispatcher
	log        zerolog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewSweeper(svc *Service, dispatcher *notification.Dispatcher, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:        svc,
		dispatcher: dispatcher,
		log:        logger.With().Str("component", "reminder_sweeper").Logger(),
	}
}

// Start schedules the sweep on a standard cron spec or descriptor such as
// "@daily".
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule reminder sweep %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.log.Info().Str("schedule", spec).Msg("reminder sweeper started")
	return nil
}

// Stop cancels an in-flight sweep and waits for it to return.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepResult summarises one run.
type SweepResult struct {
	Due    int
	Sent   int
	Failed int
}

// RunOnce computes the due reminders and publishes each of them. A failed
// publish is logged and the sweep moves on.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	var res SweepResult
	items, err := s.svc.DueForAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reminder sweep failed")
		return res
	}
	res.Due = len(items)
	now := s.svc.now()
	for _, n := range items {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Int("remaining", res.Due-res.Sent-res.Failed).Msg("reminder sweep cancelled")
			break
		}
		_, err := s.dispatcher.Send(ctx, notification.Message{
			Kind:      string(n.Type),
			PatientID: n.PatientID.String(),
			Title:     n.Title,
			Body:      n.Message,
			Date:      n.Date().String(),
			CreatedAt: now,
		})
		if err != nil {
			res.Failed++
			s.log.Warn().Err(err).
				Str("patient_id", n.PatientID.String()).
				Str("kind", string(n.Type)).
				Msg("reminder publish failed")
			continue
		}
		res.Sent++
	}
	s.log.Info().Int("due", res.Due).Int("sent", res.Sent).Int("failed", res.Failed).Msg("reminder sweep finished")
	return res
}
