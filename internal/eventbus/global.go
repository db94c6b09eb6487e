package eventbus

import (
	"context"

	"github.com/annel0/voxcity/internal/protocol/events"
)

var globalBus EventBus

// Init устанавливает глобальную шину.
func Init(bus EventBus) { globalBus = bus }

// Publish отправляет событие в глобальную шину, если она инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	if globalBus == nil {
		return nil
	}
	return globalBus.Publish(ctx, ev)
}

// PublishEvent заворачивает игровое событие в конверт и публикует его.
func PublishEvent(ctx context.Context, source string, ev events.Event, priority int) error {
	if globalBus == nil {
		return nil
	}

	env, err := NewEnvelope(source, ev.Name, ev)
	if err != nil {
		return err
	}
	env.Priority = priority
	return globalBus.Publish(ctx, env)
}
