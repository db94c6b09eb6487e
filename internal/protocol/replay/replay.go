// Package replay воспроизводит записанные в журнал события обратно в шину:
// записи поднимаются через journal.Reader и публикуются с исходными
// интервалами, растянутыми или сжатыми коэффициентом скорости.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxcity/internal/eventbus"
	"github.com/annel0/voxcity/internal/journal"
	"github.com/annel0/voxcity/internal/logging"
	"github.com/annel0/voxcity/internal/protocol/events"
)

// replaySource помечает переигранные конверты; подписчики отличают их от
// живых событий по источнику
const replaySource = "replay"

// maxGap ограничивает паузу между записями, чтобы ночной простой журнала
// не растягивал воспроизведение
const maxGap = 5 * time.Second

// ReplayFilter определяет фильтры для воспроизведения
type ReplayFilter struct {
	EventTypes []events.EventType `json:"event_types,omitempty"` // Области («map», «entity»)
	Names      []string           `json:"names,omitempty"`       // Точные имена событий
	StartTime  *time.Time         `json:"start_time,omitempty"`
	EndTime    *time.Time         `json:"end_time,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

// matches проверяет запись журнала против фильтра
func (f ReplayFilter) matches(rec journal.Record) bool {
	if len(f.EventTypes) > 0 {
		area := events.AreaOf(rec.Name)
		found := false
		for _, t := range f.EventTypes {
			if t == area {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Names) > 0 {
		found := false
		for _, n := range f.Names {
			if n == rec.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// ReplaySession описывает завершённое воспроизведение
type ReplaySession struct {
	ID        string            `json:"id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Replayed  int               `json:"replayed"`
	Speed     float64           `json:"speed"`
	Metadata  map[string]string `json:"metadata"`
}

// Player воспроизводит события журнала в шину
type Player struct {
	reader *journal.Reader
	bus    eventbus.EventBus
}

// NewPlayer создаёт проигрыватель поверх читателя журнала
func NewPlayer(reader *journal.Reader, bus eventbus.EventBus) *Player {
	return &Player{reader: reader, bus: bus}
}

// Play поднимает записи по фильтру и публикует их с сохранением исходных
// интервалов, делённых на speed (2.0 — вдвое быстрее). Блокируется до
// конца воспроизведения или отмены контекста.
func (p *Player) Play(ctx context.Context, filter ReplayFilter, speed float64) (*ReplaySession, error) {
	if speed <= 0 {
		speed = 1.0
	}

	query := journal.Query{Limit: filter.Limit}
	if filter.StartTime != nil {
		query.From = *filter.StartTime
	}
	if filter.EndTime != nil {
		query.To = *filter.EndTime
	}

	records, err := p.reader.Records(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала для воспроизведения: %w", err)
	}

	session := &ReplaySession{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Speed:     speed,
		Metadata:  map[string]string{},
	}

	logging.Info("🔄 Воспроизведение: %d записей журнала, скорость x%.1f", len(records), speed)

	var prev time.Time
	for _, rec := range records {
		if !filter.matches(rec) {
			continue
		}

		if !prev.IsZero() {
			gap := time.Duration(float64(rec.Timestamp.Sub(prev)) / speed)
			if gap > maxGap {
				gap = maxGap
			}
			if gap > 0 {
				select {
				case <-time.After(gap):
				case <-ctx.Done():
					session.EndTime = time.Now()
					return session, ctx.Err()
				}
			}
		}
		prev = rec.Timestamp

		if err := p.publish(ctx, session.ID, rec); err != nil {
			logging.Warn("Не удалось переиграть событие %s: %v", rec.Name, err)
			continue
		}
		session.Replayed++
	}

	session.EndTime = time.Now()
	logging.Info("✅ Воспроизведение %s завершено: %d событий", session.ID, session.Replayed)
	return session, nil
}

// publish переигрывает одну запись журнала конвертом с источником replay
func (p *Player) publish(ctx context.Context, sessionID string, rec journal.Record) error {
	env := &eventbus.Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        replaySource,
		EventType:     rec.Name,
		Version:       1,
		CorrelationID: sessionID,
		Priority:      2,
		Payload:       rec.Payload,
		Metadata: map[string]string{
			"original_id":     rec.ID,
			"original_source": rec.Source,
			"original_time":   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
	return p.bus.Publish(ctx, env)
}
