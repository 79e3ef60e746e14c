package world

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/events"
)

// Domain event topics published on the event bus. Every state mutation
// emits exactly one of these; subscribers must not mutate game state.
const (
	TopicMoved              = "state.moved"
	TopicFlagSet            = "state.flag_set"
	TopicFlagCleared        = "state.flag_cleared"
	TopicRelationship       = "state.relationship_changed"
	TopicQuestStarted       = "state.quest_started"
	TopicObjectiveCompleted = "state.objective_completed"
	TopicActionExecuted     = "state.action_executed"
	TopicXPGranted          = "state.xp_granted"
)

// publish emits a domain event with the game state as source. Publish
// failures are logged and swallowed: the mutation has already happened
// and subscribers are observers, not validators.
func (m *Manager) publish(ctx context.Context, topic string, data map[string]interface{}) {
	if m.bus == nil {
		return
	}

	event := events.NewGameEvent(topic, m.state, nil)
	for key, value := range data {
		event.Context().Set(key, value)
	}

	if err := m.bus.Publish(ctx, event); err != nil {
		m.log.Warn("failed to publish domain event",
			"topic", topic,
			"error", err)
	}
}

// SubscribeLogging attaches a slog subscriber for every state topic.
// Call once at wiring time; returns the subscription ids.
func SubscribeLogging(bus events.EventBus, log *slog.Logger) []string {
	topics := []string{
		TopicMoved, TopicFlagSet, TopicFlagCleared, TopicRelationship,
		TopicQuestStarted, TopicObjectiveCompleted, TopicActionExecuted,
		TopicXPGranted,
	}

	ids := make([]string, 0, len(topics))
	for _, topic := range topics {
		ids = append(ids, bus.SubscribeFunc(topic, 0, func(_ context.Context, e events.Event) error {
			log.Info("state changed", "topic", e.Type(), "session", e.Source().GetID())
			return nil
		}))
	}
	return ids
}
