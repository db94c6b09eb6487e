package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryProgressRepo реализует ProgressRepo в памяти.
// Используется как fallback, когда MariaDB недоступна,
// или для CI/локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryProgressRepo struct {
	mu   sync.RWMutex
	data map[uint64]map[string]PlayerProgress // userID -> имя карты -> итог
}

// NewMemoryProgressRepo создает новый репозиторий прогресса в памяти
func NewMemoryProgressRepo() *MemoryProgressRepo {
	return &MemoryProgressRepo{
		data: make(map[uint64]map[string]PlayerProgress),
	}
}

func validateProgress(userID uint64, p PlayerProgress) error {
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}
	if p.MapName == "" {
		return fmt.Errorf("итог без имени карты для пользователя %d", userID)
	}
	if p.Rescued < 0 {
		return fmt.Errorf("отрицательное число спасённых для пользователя %d: %d", userID, p.Rescued)
	}
	return nil
}

// Save сохраняет итог игрока в памяти.
func (r *MemoryProgressRepo) Save(ctx context.Context, userID uint64, progress PlayerProgress) error {
	if err := validateProgress(userID, progress); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byMap, ok := r.data[userID]
	if !ok {
		byMap = make(map[string]PlayerProgress)
		r.data[userID] = byMap
	}
	byMap[progress.MapName] = progress
	return nil
}

// Load загружает итог игрока на карте.
func (r *MemoryProgressRepo) Load(ctx context.Context, userID uint64, mapName string) (PlayerProgress, bool, error) {
	if userID == 0 {
		return PlayerProgress{}, false, fmt.Errorf("недействительный userID: %d", userID)
	}

	select {
	case <-ctx.Done():
		return PlayerProgress{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	progress, exists := r.data[userID][mapName]
	return progress, exists, nil
}

// All возвращает все итоги пользователя, отсортированные по имени карты.
func (r *MemoryProgressRepo) All(ctx context.Context, userID uint64) ([]PlayerProgress, error) {
	if userID == 0 {
		return nil, fmt.Errorf("недействительный userID: %d", userID)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	byMap := r.data[userID]
	result := make([]PlayerProgress, 0, len(byMap))
	for _, p := range byMap {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MapName < result[j].MapName })
	return result, nil
}

// Delete удаляет все итоги пользователя из памяти.
func (r *MemoryProgressRepo) Delete(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[userID]; !exists {
		return fmt.Errorf("прогресс для пользователя %d не найден", userID)
	}

	delete(r.data, userID)
	return nil
}

// BatchSave сохраняет итоги нескольких игроков в памяти.
func (r *MemoryProgressRepo) BatchSave(ctx context.Context, progress map[uint64]PlayerProgress) error {
	if len(progress) == 0 {
		return nil // Нечего сохранять
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Валидация всех записей перед сохранением
	for userID, p := range progress {
		if err := validateProgress(userID, p); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, p := range progress {
		byMap, ok := r.data[userID]
		if !ok {
			byMap = make(map[string]PlayerProgress)
			r.data[userID] = byMap
		}
		byMap[p.MapName] = p
	}
	return nil
}

// Count возвращает общее число сохранённых итогов (для отладки)
func (r *MemoryProgressRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, byMap := range r.data {
		total += len(byMap)
	}
	return total
}

// Clear очищает все сохранённые итоги (для тестов)
func (r *MemoryProgressRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[uint64]map[string]PlayerProgress)
}
