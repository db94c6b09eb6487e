package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaProgressRepo реализует ProgressRepo для базы данных MariaDB/MySQL.
// Использует таблицу player_progress с составным ключом (user_id, map_name).
type MariaProgressRepo struct {
	db *sql.DB
}

// NewMariaProgressRepo создает новый репозиторий прогресса для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
//
// Возвращает:
//
//	*MariaProgressRepo - экземпляр репозитория
//	error - ошибка при подключении или создании таблицы
func NewMariaProgressRepo(dsn string) (*MariaProgressRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaProgressRepo{db: db}

	// Создаем таблицу, если она не существует
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу player_progress, если она не существует.
func (r *MariaProgressRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS player_progress (
			user_id    BIGINT          NOT NULL,
			map_name   VARCHAR(64)     NOT NULL,
			rescued    INT             NOT NULL DEFAULT 0,
			caught     TINYINT(1)      NOT NULL DEFAULT 0,
			ticks      BIGINT UNSIGNED NOT NULL DEFAULT 0,
			updated_at TIMESTAMP       DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE       CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, map_name),
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы player_progress: %w", err)
	}

	return nil
}

// Save сохраняет итог игрока в базе данных.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (r *MariaProgressRepo) Save(ctx context.Context, userID uint64, progress PlayerProgress) error {
	if err := validateProgress(userID, progress); err != nil {
		return err
	}

	query := `
		INSERT INTO player_progress (user_id, map_name, rescued, caught, ticks)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			rescued = VALUES(rescued),
			caught = VALUES(caught),
			ticks = VALUES(ticks),
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, userID, progress.MapName, progress.Rescued, progress.Caught, progress.Ticks)
	if err != nil {
		return fmt.Errorf("ошибка сохранения прогресса для пользователя %d: %w", userID, err)
	}

	return nil
}

// Load загружает итог игрока на карте из базы данных.
func (r *MariaProgressRepo) Load(ctx context.Context, userID uint64, mapName string) (PlayerProgress, bool, error) {
	if userID == 0 {
		return PlayerProgress{}, false, fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `SELECT map_name, rescued, caught, ticks, updated_at FROM player_progress WHERE user_id = ? AND map_name = ?`

	var p PlayerProgress
	err := r.db.QueryRowContext(ctx, query, userID, mapName).
		Scan(&p.MapName, &p.Rescued, &p.Caught, &p.Ticks, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		// Итога нет - игрок на карте ещё не играл
		return PlayerProgress{}, false, nil
	}

	if err != nil {
		return PlayerProgress{}, false, fmt.Errorf("ошибка загрузки прогресса для пользователя %d: %w", userID, err)
	}

	return p, true, nil
}

// All возвращает все итоги пользователя.
func (r *MariaProgressRepo) All(ctx context.Context, userID uint64) ([]PlayerProgress, error) {
	if userID == 0 {
		return nil, fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `SELECT map_name, rescued, caught, ticks, updated_at FROM player_progress WHERE user_id = ? ORDER BY map_name`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки прогресса для пользователя %d: %w", userID, err)
	}
	defer rows.Close()

	var result []PlayerProgress
	for rows.Next() {
		var p PlayerProgress
		if err := rows.Scan(&p.MapName, &p.Rescued, &p.Caught, &p.Ticks, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки прогресса: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода строк прогресса: %w", err)
	}

	return result, nil
}

// Delete удаляет все итоги пользователя.
func (r *MariaProgressRepo) Delete(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	query := `DELETE FROM player_progress WHERE user_id = ?`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления прогресса для пользователя %d: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("прогресс для пользователя %d не найден", userID)
	}

	return nil
}

// BatchSave сохраняет итоги нескольких игроков в одной транзакции.
func (r *MariaProgressRepo) BatchSave(ctx context.Context, progress map[uint64]PlayerProgress) error {
	if len(progress) == 0 {
		return nil // Нечего сохранять
	}

	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	query := `
		INSERT INTO player_progress (user_id, map_name, rescued, caught, ticks)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			rescued = VALUES(rescued),
			caught = VALUES(caught),
			ticks = VALUES(ticks),
			updated_at = CURRENT_TIMESTAMP
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for userID, p := range progress {
		if err := validateProgress(userID, p); err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		_, err = stmt.ExecContext(ctx, userID, p.MapName, p.Rescued, p.Caught, p.Ticks)
		if err != nil {
			return fmt.Errorf("ошибка сохранения прогресса для пользователя %d в batch: %w", userID, err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return nil
}

// Close закрывает соединение с базой данных.
func (r *MariaProgressRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
