package storage

import (
	"context"
	"testing"
	"time"
)

// TestMemoryProgressRepo тестирует in-memory репозиторий прогресса
func TestMemoryProgressRepo(t *testing.T) {
	repo := NewMemoryProgressRepo()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		userID := uint64(123)
		expected := PlayerProgress{MapName: "classic", Rescued: 3, Caught: false, Ticks: 7200}

		err := repo.Save(ctx, userID, expected)
		if err != nil {
			t.Fatalf("Ошибка сохранения прогресса: %v", err)
		}

		actual, found, err := repo.Load(ctx, userID, "classic")
		if err != nil {
			t.Fatalf("Ошибка загрузки прогресса: %v", err)
		}

		if !found {
			t.Fatal("Прогресс не найден")
		}

		if actual != expected {
			t.Errorf("Неверный прогресс: ожидался %+v, получен %+v", expected, actual)
		}
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		progress, found, err := repo.Load(ctx, 999, "classic")
		if err != nil {
			t.Fatalf("Ошибка при загрузке несуществующего прогресса: %v", err)
		}

		if found {
			t.Error("Прогресс найден для несуществующего пользователя")
		}

		if progress != (PlayerProgress{}) {
			t.Errorf("Ожидался пустой прогресс, получен: %+v", progress)
		}
	})

	t.Run("Update Overwrites", func(t *testing.T) {
		userID := uint64(456)
		first := PlayerProgress{MapName: "scattered", Rescued: 1, Ticks: 9000}
		second := PlayerProgress{MapName: "scattered", Rescued: 4, Ticks: 6000}

		if err := repo.Save(ctx, userID, first); err != nil {
			t.Fatalf("Ошибка сохранения первого итога: %v", err)
		}
		if err := repo.Save(ctx, userID, second); err != nil {
			t.Fatalf("Ошибка обновления итога: %v", err)
		}

		actual, found, err := repo.Load(ctx, userID, "scattered")
		if err != nil {
			t.Fatalf("Ошибка загрузки обновленного итога: %v", err)
		}
		if !found {
			t.Fatal("Обновленный итог не найден")
		}
		if actual != second {
			t.Errorf("Неверный итог: ожидался %+v, получен %+v", second, actual)
		}
	})

	t.Run("All Sorted By Map", func(t *testing.T) {
		userID := uint64(777)
		maps := []string{"scattered", "classic", "ruins"}
		for i, name := range maps {
			err := repo.Save(ctx, userID, PlayerProgress{MapName: name, Rescued: i})
			if err != nil {
				t.Fatalf("Ошибка сохранения итога для карты %s: %v", name, err)
			}
		}

		all, err := repo.All(ctx, userID)
		if err != nil {
			t.Fatalf("Ошибка загрузки всех итогов: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Ожидалось 3 итога, получено: %d", len(all))
		}

		// Итоги отсортированы по имени карты
		expectedOrder := []string{"classic", "ruins", "scattered"}
		for i, name := range expectedOrder {
			if all[i].MapName != name {
				t.Errorf("Неверный порядок: позиция %d содержит %s, ожидалась %s", i, all[i].MapName, name)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		userID := uint64(789)
		if err := repo.Save(ctx, userID, PlayerProgress{MapName: "classic", Rescued: 2}); err != nil {
			t.Fatalf("Ошибка сохранения итога: %v", err)
		}

		if err := repo.Delete(ctx, userID); err != nil {
			t.Fatalf("Ошибка удаления итогов: %v", err)
		}

		_, found, err := repo.Load(ctx, userID, "classic")
		if err != nil {
			t.Fatalf("Ошибка загрузки после удаления: %v", err)
		}
		if found {
			t.Error("Итог найден после удаления")
		}

		if err := repo.Delete(ctx, userID); err == nil {
			t.Error("Ожидалась ошибка при повторном удалении")
		}
	})

	t.Run("BatchSave", func(t *testing.T) {
		progress := map[uint64]PlayerProgress{
			100: {MapName: "classic", Rescued: 1, Ticks: 100},
			200: {MapName: "classic", Rescued: 2, Ticks: 200},
			300: {MapName: "scattered", Rescued: 3, Ticks: 300},
		}

		if err := repo.BatchSave(ctx, progress); err != nil {
			t.Fatalf("Ошибка пакетного сохранения: %v", err)
		}

		for userID, expected := range progress {
			actual, found, err := repo.Load(ctx, userID, expected.MapName)
			if err != nil {
				t.Fatalf("Ошибка загрузки итога для пользователя %d: %v", userID, err)
			}
			if !found {
				t.Errorf("Итог не найден для пользователя %d", userID)
				continue
			}
			if actual != expected {
				t.Errorf("Неверный итог для пользователя %d: ожидался %+v, получен %+v",
					userID, expected, actual)
			}
		}
	})

	t.Run("Validation", func(t *testing.T) {
		if err := repo.Save(ctx, 0, PlayerProgress{MapName: "classic"}); err == nil {
			t.Error("Ожидалась ошибка для недействительного userID")
		}

		if err := repo.Save(ctx, 123, PlayerProgress{MapName: ""}); err == nil {
			t.Error("Ожидалась ошибка для пустого имени карты")
		}

		if err := repo.Save(ctx, 123, PlayerProgress{MapName: "classic", Rescued: -1}); err == nil {
			t.Error("Ожидалась ошибка для отрицательного числа спасённых")
		}
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		canceledCtx, cancel := context.WithCancel(context.Background())
		cancel()

		err := repo.Save(canceledCtx, 555, PlayerProgress{MapName: "classic"})
		if err != context.Canceled {
			t.Errorf("Ожидалась ошибка отмены контекста, получена: %v", err)
		}
	})
}

// TestMemoryProgressRepoUtilityMethods тестирует вспомогательные методы
func TestMemoryProgressRepoUtilityMethods(t *testing.T) {
	repo := NewMemoryProgressRepo()
	ctx := context.Background()

	if repo.Count() != 0 {
		t.Errorf("Ожидалось 0 итогов, получено: %d", repo.Count())
	}

	// Два итога одного пользователя на разных картах и один чужой
	if err := repo.Save(ctx, 1, PlayerProgress{MapName: "classic", Rescued: 1}); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}
	if err := repo.Save(ctx, 1, PlayerProgress{MapName: "scattered", Rescued: 2}); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}
	if err := repo.Save(ctx, 2, PlayerProgress{MapName: "classic", Rescued: 3}); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	if repo.Count() != 3 {
		t.Errorf("Ожидалось 3 итога, получено: %d", repo.Count())
	}

	repo.Clear()
	if repo.Count() != 0 {
		t.Errorf("После Clear ожидалось 0 итогов, получено: %d", repo.Count())
	}
}

// TestProgressConcurrentAccess тестирует concurrent доступ к репозиторию
func TestProgressConcurrentAccess(t *testing.T) {
	repo := NewMemoryProgressRepo()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 100

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer func() { done <- true }()

			for j := 0; j < numOperations; j++ {
				userID := uint64(goroutineID*numOperations + j + 1) // +1 чтобы избежать userID = 0
				progress := PlayerProgress{MapName: "classic", Rescued: j, Ticks: uint64(goroutineID)}

				if err := repo.Save(ctx, userID, progress); err != nil {
					t.Errorf("Ошибка сохранения в горутине %d: %v", goroutineID, err)
					return
				}

				loaded, found, err := repo.Load(ctx, userID, "classic")
				if err != nil {
					t.Errorf("Ошибка загрузки в горутине %d: %v", goroutineID, err)
					return
				}
				if !found {
					t.Errorf("Итог не найден в горутине %d для пользователя %d", goroutineID, userID)
					return
				}
				if loaded != progress {
					t.Errorf("Неверный итог в горутине %d: ожидался %+v, получен %+v",
						goroutineID, progress, loaded)
					return
				}
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Тест превысил таймаут")
		}
	}

	if repo.Count() != numGoroutines*numOperations {
		t.Errorf("Ожидалось %d итогов после concurrent теста, получено: %d",
			numGoroutines*numOperations, repo.Count())
	}
}

// TestLeaderboardScore проверяет упаковку итога в счёт sorted set
func TestLeaderboardScore(t *testing.T) {
	cases := []struct {
		rescued int
		ticks   uint64
	}{
		{0, 0},
		{0, 600},
		{1, 0},
		{3, 7200},
		{12, 1_000_000},
	}

	for _, tc := range cases {
		score := composeScore(tc.rescued, tc.ticks)
		rescued, ticks := decomposeScore(score)
		if rescued != tc.rescued || ticks != tc.ticks {
			t.Errorf("Счёт не обратим: (%d, %d) -> %.0f -> (%d, %d)",
				tc.rescued, tc.ticks, score, rescued, ticks)
		}
	}
}

// TestLeaderboardScore_Ordering проверяет, что порядок счёта соответствует правилам
func TestLeaderboardScore_Ordering(t *testing.T) {
	// Больше спасённых всегда выше, сколько бы ни длилась сессия
	slowButMore := composeScore(3, 500_000)
	fastButFewer := composeScore(2, 10)
	if slowButMore <= fastButFewer {
		t.Error("Больше спасённых должно давать больший счёт независимо от тиков")
	}

	// При равных спасённых быстрее сессия выше
	fast := composeScore(2, 100)
	slow := composeScore(2, 200)
	if fast <= slow {
		t.Error("При равных спасённых меньшие тики должны давать больший счёт")
	}

	// Переполнение полосы тиков зажимается, а не ломает порядок
	overflow := composeScore(2, tickBand*10)
	if overflow >= fast {
		t.Error("Зажатые тики не должны обгонять быстрые сессии")
	}
	if overflow < composeScore(1, 0) {
		t.Error("Зажатые тики не должны проваливаться в чужую полосу")
	}
}
