package notify

import (
	"github.com/rs/zerolog/log"

	"github.com/kreymann/resetwatch/internal/alert"
)

// Multi fans one notification out to several notifiers. Each notifier gets a
// chance regardless of earlier failures; the first error is returned so the
// dispatcher can log it.
type Multi []alert.Notifier

func (m Multi) Notify(n alert.Notification) error {
	var first error
	for _, notifier := range m {
		if err := notifier.Notify(n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Log writes notifications to the service log only. It is the fallback when
// neither the gateway nor NATS is wired, and useful in development.
type Log struct{}

func (Log) Notify(n alert.Notification) error {
	log.Info().
		Str("kind", string(n.Kind)).
		Str("entity", n.Entity).
		Str("title_key", n.TitleKey).
		Msg("alert fired")
	return nil
}
