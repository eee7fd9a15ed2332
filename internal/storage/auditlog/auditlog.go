// Пакет auditlog — журнал аудита DarkVault: один JSON-файл
// с упорядоченным массивом событий upload/delete.
package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
)

// Prometheus-метрики кэша разбора журнала.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkvault_audit_cache_hits_total",
		Help: "Общее количество попаданий в кэш разобранного журнала аудита.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darkvault_audit_cache_misses_total",
		Help: "Общее количество промахов кэша разобранного журнала аудита.",
	})
)

const (
	// cacheSize — число версий файла в кэше
	cacheSize = 4
	// cacheTTL — время жизни разобранной версии
	cacheTTL = 5 * time.Minute
)

// Log — журнал аудита.
// Цикл чтение-изменение-запись сериализуется мьютексом в пределах процесса.
// Одновременная запись из нескольких процессов не поддерживается.
type Log struct {
	// path — путь к JSON-файлу журнала
	path string
	// mu — мьютекс записи
	mu sync.Mutex
	// cache — разобранные версии файла, ключ — размер и mtime
	cache  *expirable.LRU[string, []model.AuditEntry]
	logger *slog.Logger
	// now — источник времени для поля time
	now func() time.Time
}

// New создаёт журнал аудита. Создаёт родительскую директорию файла
// если она не существует. Сам файл появляется при первой записи.
func New(path string, logger *slog.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала %s: %w", filepath.Dir(path), err)
	}

	return &Log{
		path:   path,
		cache:  expirable.NewLRU[string, []model.AuditEntry](cacheSize, nil, cacheTTL),
		logger: logger.With(slog.String("component", "auditlog")),
		now:    time.Now,
	}, nil
}

// Path возвращает путь к файлу журнала.
func (l *Log) Path() string {
	return l.path
}

// Append добавляет событие с текущим временем UTC в конец журнала.
// Отсутствующий или повреждённый файл считается пустым массивом.
// Существующие записи сохраняются со всеми полями, включая незнакомые.
//
// Паттерн: temp файл → fsync → atomic rename.
func (l *Log) Append(ctx context.Context, entry model.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRaw()
	if err != nil {
		return err
	}

	entry.Time = model.FormatAuditTime(l.now())
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи аудита: %w", err)
	}
	records = append(records, raw)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации журнала аудита: %w", err)
	}

	if err := l.writeAtomic(data); err != nil {
		return err
	}

	l.logger.Debug("Событие записано в журнал аудита",
		slog.String("action", string(entry.Action)),
		slog.String("file", entry.File),
		slog.Int("entries", len(records)),
	)
	return nil
}

// LoadAll возвращает все события журнала в порядке добавления.
// Отсутствующий или повреждённый файл — пустая история без ошибки.
// Разобранный результат кэшируется до изменения размера или mtime файла.
func (l *Log) LoadAll(ctx context.Context) ([]model.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("ошибка получения информации о журнале %s: %w", l.path, err)
	}

	key := fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
	if entries, ok := l.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return slices.Clone(entries), nil
	}
	cacheMissesTotal.Inc()

	records, err := l.readRaw()
	if err != nil {
		return nil, err
	}

	entries := make([]model.AuditEntry, 0, len(records))
	for i, raw := range records {
		var e model.AuditEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			l.logger.Warn("Пропущена некорректная запись журнала аудита",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, e)
	}

	l.cache.Add(key, entries)
	return slices.Clone(entries), nil
}

// readRaw читает массив записей без разбора полей.
// Вызывающий код должен держать mu при последующей записи.
func (l *Log) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения журнала %s: %w", l.path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		l.logger.Warn("Журнал аудита повреждён, используется пустая история",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return records, nil
}

// writeAtomic записывает журнал целиком через temp файл и rename.
func (l *Log) writeAtomic(data []byte) error {
	tmpPath := filepath.Join(filepath.Dir(l.path), "."+filepath.Base(l.path)+"."+uuid.New().String()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла журнала: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи журнала: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync журнала: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия журнала: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования журнала: %w", err)
	}
	return nil
}
