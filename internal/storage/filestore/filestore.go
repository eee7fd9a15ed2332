// Пакет filestore — операции с файлами в директории загрузок
// и производными артефактами (превью, QR-коды) в поддиректории thumbs.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
)

// Ошибки разрешения имён.
var (
	// ErrInvalidName — имя пустое, содержит разделители пути или меняется при очистке
	ErrInvalidName = errors.New("недопустимое имя файла")
	// ErrNotFound — файл отсутствует или находится вне директории
	ErrNotFound = errors.New("файл не найден")
)

// timestampLayout — префикс имени файла на диске (UTC).
const timestampLayout = "20060102150405"

// maxCollisionSuffix — предел перебора суффиксов -1, -2, ... при совпадении имён.
const maxCollisionSuffix = 1000

// FileStore — управление файлами на диске.
type FileStore struct {
	// uploadDir — директория загруженных файлов (абсолютный путь)
	uploadDir string
	// thumbDir — директория превью и QR-кодов (абсолютный путь)
	thumbDir string
	// allowedExt — разрешённые расширения; пустая карта — разрешены все
	allowedExt map[string]struct{}
	logger     *slog.Logger
	// now — источник времени для префикса имени
	now func() time.Time
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// Name — итоговое имя файла в uploadDir
	Name string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — количество записанных байт
	Size int64
}

// New создаёт FileStore. Создаёт директории загрузок и превью
// если они не существуют.
func New(uploadDir, thumbDir string, allowedExt []string, logger *slog.Logger) (*FileStore, error) {
	absUpload, err := filepath.Abs(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения пути %s: %w", uploadDir, err)
	}
	absThumb, err := filepath.Abs(thumbDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения пути %s: %w", thumbDir, err)
	}

	for _, dir := range []string{absUpload, absThumb} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	exts := make(map[string]struct{}, len(allowedExt))
	for _, ext := range allowedExt {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts[ext] = struct{}{}
		}
	}

	return &FileStore{
		uploadDir:  absUpload,
		thumbDir:   absThumb,
		allowedExt: exts,
		logger:     logger.With(slog.String("component", "filestore")),
		now:        time.Now,
	}, nil
}

// UploadDir возвращает путь к директории загрузок.
func (fs *FileStore) UploadDir() string {
	return fs.uploadDir
}

// ThumbDir возвращает путь к директории превью.
func (fs *FileStore) ThumbDir() string {
	return fs.thumbDir
}

// ExtensionAllowed проверяет расширение очищенного имени по списку разрешённых.
// Имя без точки имеет пустое расширение.
func (fs *FileStore) ExtensionAllowed(filename string) bool {
	if len(fs.allowedExt) == 0 {
		return true
	}
	safe := SanitizeFilename(filename)
	ext := ""
	if i := strings.LastIndexByte(safe, '.'); i >= 0 {
		ext = strings.ToLower(safe[i+1:])
	}
	_, ok := fs.allowedExt[ext]
	return ok
}

// Save записывает данные из reader в uploadDir.
// Имя: {YYYYMMDDHHMMSS}_{очищенное имя}. При совпадении имени
// перед расширением вставляется суффикс -N, существующий файл не перезаписывается.
//
// Паттерн: скрытый temp файл → запись → fsync → link на итоговое имя.
func (fs *FileStore) Save(reader io.Reader, originalFilename string) (*SaveResult, error) {
	safe := SanitizeFilename(originalFilename)
	if safe == "" {
		safe = "file"
	}
	safe = truncateName(safe)
	baseName := fs.now().UTC().Format(timestampLayout) + "_" + safe

	// Скрытое имя: ListRecent не покажет незавершённую запись
	tmpPath := filepath.Join(fs.uploadDir, "."+uuid.New().String()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	name, err := fs.publish(tmpPath, baseName)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	return &SaveResult{
		Name:     name,
		FullPath: filepath.Join(fs.uploadDir, name),
		Size:     size,
	}, nil
}

// publish делает temp файл видимым под первым свободным именем.
// os.Link не перезаписывает существующий файл, поэтому гонка
// двух загрузок с одинаковым именем разрешается суффиксом.
func (fs *FileStore) publish(tmpPath, baseName string) (string, error) {
	for i := 0; i <= maxCollisionSuffix; i++ {
		name := withSuffix(baseName, i)
		target := filepath.Join(fs.uploadDir, name)

		err := os.Link(tmpPath, target)
		if err == nil {
			os.Remove(tmpPath)
			return name, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}

		// ФС без жёстких ссылок: проверка + rename
		if _, statErr := os.Lstat(target); statErr == nil {
			continue
		}
		if err := os.Rename(tmpPath, target); err != nil {
			return "", fmt.Errorf("ошибка переименования в %s: %w", name, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("не найдено свободное имя для %s", baseName)
}

// ListRecent возвращает до n файлов uploadDir, новые первыми.
// Директории и скрытые файлы пропускаются. n <= 0 — без ограничения.
func (fs *FileStore) ListRecent(n int) ([]model.StoredFile, error) {
	entries, err := os.ReadDir(fs.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.uploadDir, err)
	}

	files := make([]model.StoredFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		info, err := os.Stat(filepath.Join(fs.uploadDir, name))
		if err != nil {
			// Файл удалён между ReadDir и Stat
			continue
		}
		if info.IsDir() {
			continue
		}

		files = append(files, model.StoredFile{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			MIME:    model.MIMEType(name),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})

	if n > 0 && len(files) > n {
		files = files[:n]
	}
	return files, nil
}

// Delete удаляет файл и его производные артефакты.
// Возвращает true, если основной файл существовал.
// Ошибки удаления артефактов логируются и не прерывают операцию.
func (fs *FileStore) Delete(name string) (bool, error) {
	safe := SanitizeFilename(name)
	if safe == "" {
		return false, nil
	}

	path := filepath.Join(fs.uploadDir, safe)
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка получения информации о файле %s: %w", safe, err)
	}
	if info.IsDir() {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка удаления файла %s: %w", safe, err)
	}

	for _, p := range []string{fs.ThumbPath(safe), fs.QRPath(safe)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fs.logger.Warn("Не удалось удалить артефакт",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}

	return true, nil
}

// ThumbPath — путь превью для файла.
func (fs *FileStore) ThumbPath(name string) string {
	return filepath.Join(fs.thumbDir, model.ThumbName(name))
}

// QRPath — путь QR-кода для файла.
func (fs *FileStore) QRPath(name string) string {
	return filepath.Join(fs.thumbDir, model.QRName(name))
}

// ResolveUpload возвращает путь к загруженному файлу по имени из URL.
func (fs *FileStore) ResolveUpload(name string) (string, error) {
	return resolveIn(fs.uploadDir, name)
}

// ResolveThumb возвращает путь к артефакту в thumbs по имени из URL.
func (fs *FileStore) ResolveThumb(name string) (string, error) {
	return resolveIn(fs.thumbDir, name)
}

// Writable проверяет возможность записи в обе директории.
// Используется readiness-проверкой.
func (fs *FileStore) Writable() error {
	for _, dir := range []string{fs.uploadDir, fs.thumbDir} {
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("директория %s недоступна для записи: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	return nil
}

// withSuffix вставляет -N перед расширением: a.txt → a-1.txt.
func withSuffix(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
