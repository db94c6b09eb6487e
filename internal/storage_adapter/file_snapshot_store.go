package storage_adapter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/voxcity/internal/storage"
	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

// FileSnapshotStore хранит снапшоты карт в виде JSON-файлов каталога,
// по файлу <имя>.json на карту. Формат файлов совпадает с обменным
// форматом клиента, поэтому каталог можно наполнять и внешним
// конвертером. Используется инструментом mapgen и одноузловыми
// запусками без BadgerDB.
type FileSnapshotStore struct {
	basePath string
	cache    map[string][]byte // закодированные снапшоты по имени карты
	mu       sync.RWMutex
	autoSave bool // писать файл при каждом SaveMap
}

var _ storage.MapStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore создаёт файловое хранилище карт в каталоге basePath.
// При autoSave=false изменения копятся в памяти до вызова Flush.
func NewFileSnapshotStore(basePath string, autoSave bool) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}

	return &FileSnapshotStore{
		basePath: basePath,
		cache:    make(map[string][]byte),
		autoSave: autoSave,
	}, nil
}

// SaveMap сохраняет снапшот карты под её именем.
func (fss *FileSnapshotStore) SaveMap(snap *snapshot.MapSnapshot) error {
	if snap == nil || snap.Name == "" {
		return fmt.Errorf("снимок карты без имени")
	}
	if !storage.ValidMapName(snap.Name) {
		return fmt.Errorf("недопустимое имя карты: %q", snap.Name)
	}

	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка: %w", err)
	}

	fss.mu.Lock()
	fss.cache[snap.Name] = data
	fss.mu.Unlock()

	if fss.autoSave {
		return fss.writeFile(snap.Name, data)
	}
	return nil
}

// LoadMap загружает снапшот карты по имени.
func (fss *FileSnapshotStore) LoadMap(name string) (*snapshot.MapSnapshot, error) {
	if !storage.ValidMapName(name) {
		return nil, fmt.Errorf("недопустимое имя карты: %q", name)
	}

	fss.mu.RLock()
	data, cached := fss.cache[name]
	fss.mu.RUnlock()

	if !cached {
		var err error
		data, err = os.ReadFile(fss.filename(name))
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrMapNotFound, name)
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения файла карты %s: %w", name, err)
		}

		fss.mu.Lock()
		fss.cache[name] = data
		fss.mu.Unlock()
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("карта %s: %w", name, err)
	}
	return snap, nil
}

// LoadGrid загружает карту и сразу разворачивает её в воксельную сетку.
func (fss *FileSnapshotStore) LoadGrid(name string) (*world.VoxelGrid, error) {
	snap, err := fss.LoadMap(name)
	if err != nil {
		return nil, err
	}
	return snap.ToGrid()
}

// HasMap проверяет наличие карты в кеше или на диске.
func (fss *FileSnapshotStore) HasMap(name string) (bool, error) {
	if !storage.ValidMapName(name) {
		return false, nil
	}

	fss.mu.RLock()
	_, cached := fss.cache[name]
	fss.mu.RUnlock()
	if cached {
		return true, nil
	}

	_, err := os.Stat(fss.filename(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки файла карты %s: %w", name, err)
	}
	return true, nil
}

// DeleteMap удаляет карту из кеша и с диска.
func (fss *FileSnapshotStore) DeleteMap(name string) error {
	if !storage.ValidMapName(name) {
		return fmt.Errorf("%w: %s", storage.ErrMapNotFound, name)
	}

	fss.mu.Lock()
	_, existed := fss.cache[name]
	delete(fss.cache, name)
	fss.mu.Unlock()

	err := os.Remove(fss.filename(name))
	switch {
	case err == nil:
		existed = true
	case os.IsNotExist(err):
		// Карта могла жить только в кеше при autoSave=false.
	default:
		return fmt.Errorf("ошибка удаления файла карты %s: %w", name, err)
	}

	if !existed {
		return fmt.Errorf("%w: %s", storage.ErrMapNotFound, name)
	}
	return nil
}

// ListMaps возвращает имена всех карт: объединение кеша и файлов
// каталога, отсортированное лексикографически.
func (fss *FileSnapshotStore) ListMaps() ([]string, error) {
	seen := make(map[string]struct{})

	fss.mu.RLock()
	for name := range fss.cache {
		seen[name] = struct{}{}
	}
	fss.mu.RUnlock()

	entries, err := os.ReadDir(fss.basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога карт: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if storage.ValidMapName(name) {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Flush принудительно записывает все закешированные снапшоты на диск.
func (fss *FileSnapshotStore) Flush() error {
	fss.mu.RLock()
	pending := make(map[string][]byte, len(fss.cache))
	for name, data := range fss.cache {
		pending[name] = data
	}
	fss.mu.RUnlock()

	for name, data := range pending {
		if err := fss.writeFile(name, data); err != nil {
			return fmt.Errorf("ошибка сохранения карты %s: %w", name, err)
		}
	}
	return nil
}

// Stats возвращает статистику хранилища.
func (fss *FileSnapshotStore) Stats() map[string]interface{} {
	fss.mu.RLock()
	cachedMaps := len(fss.cache)
	fss.mu.RUnlock()

	var fileCount int
	filepath.WalkDir(fss.basePath, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && filepath.Ext(path) == ".json" {
			fileCount++
		}
		return nil
	})

	return map[string]interface{}{
		"cached_maps":  cachedMaps,
		"stored_files": fileCount,
		"base_path":    fss.basePath,
		"auto_save":    fss.autoSave,
	}
}

// filename возвращает путь файла для карты.
func (fss *FileSnapshotStore) filename(name string) string {
	return filepath.Join(fss.basePath, name+".json")
}

// writeFile записывает данные карты в файл.
func (fss *FileSnapshotStore) writeFile(name string, data []byte) error {
	if err := os.WriteFile(fss.filename(name), data, 0644); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", fss.filename(name), err)
	}
	return nil
}
