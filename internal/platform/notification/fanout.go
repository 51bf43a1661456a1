package notification

import (
	"context"
	"errors"
)

// Fanout publishes every message to each publisher in turn. A failure in one
// does not stop the others; the errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, m Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
