package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Notifier delivers one alert message. Implementations must honour ctx.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Named is implemented by notifiers that can describe themselves in logs.
type Named interface {
	Name() string
}

// NameOf returns a short label for n, used in logs and metrics.
func NameOf(n Notifier) string {
	if nn, ok := n.(Named); ok {
		return nn.Name()
	}
	return fmt.Sprintf("%T", n)
}

// Multi delivers to every member, even when earlier ones fail, and
// returns the combined errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, title, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", NameOf(n), err))
		}
	}
	return errs
}

func (m Multi) Name() string { return "multi" }
