// Пакет service — бизнес-логика DarkVault.
// files.go — загрузка, удаление и просмотр файлов: хранилище → артефакты →
// журнал аудита → метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/api/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/media"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/auditlog"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/filestore"
)

// Коды ошибок загрузки. Совпадают с ключами сообщений i18n.
const (
	CodeNoFile         = "flash.no_file"
	CodeTypeNotAllowed = "flash.type_not_allowed"
	CodeTooLarge       = "flash.too_large"
	CodeStorageFailure = "flash.upload_failed"
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// Filename — имя файла, переданное клиентом
	Filename string
	// BaseURL — базовый URL сервиса из запроса (используется без PublicURL)
	BaseURL string
	// RemoteIP — адрес клиента
	RemoteIP string
	// UserAgent — заголовок User-Agent
	UserAgent string
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	// Name — имя файла на диске
	Name string
	// Size — размер в байтах
	Size int64
	// DownloadURL — абсолютная ссылка на скачивание (закодирована в QR)
	DownloadURL string
	// Thumbnail — превью построено
	Thumbnail bool
	// QR — QR-код построен
	QR bool
}

// UploadError — ошибка загрузки с кодом сообщения для пользователя.
type UploadError struct {
	Code string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	return e.Code
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// DeleteResult — результат удаления.
type DeleteResult struct {
	// Name — очищенное имя, по которому выполнено удаление
	Name string
	// Existed — файл существовал и удалён
	Existed bool
}

// FileService — сервис операций с файлами.
type FileService struct {
	store     *filestore.FileStore
	audit     *auditlog.Log
	publicURL string
	logger    *slog.Logger
}

// NewFileService создаёт сервис файлов.
// publicURL — базовый URL для QR-кодов; пустой — берётся из запроса.
func NewFileService(store *filestore.FileStore, audit *auditlog.Log, publicURL string, logger *slog.Logger) *FileService {
	return &FileService{
		store:     store,
		audit:     audit,
		publicURL: publicURL,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет файл и строит производные артефакты.
//
// Поток:
//  1. Проверка имени и расширения
//  2. Save (temp → fsync → link)
//  3. Превью для изображений
//  4. QR-код со ссылкой на скачивание
//  5. Запись в журнал аудита
//
// Ошибки шагов 3-5 логируются и не отменяют загрузку.
func (s *FileService) Upload(ctx context.Context, params UploadParams) (*UploadResult, *UploadError) {
	if params.Reader == nil || params.Filename == "" {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &UploadError{Code: CodeNoFile}
	}

	if !s.store.ExtensionAllowed(params.Filename) {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		s.logger.Info("Загрузка отклонена: расширение не разрешено",
			slog.String("filename", params.Filename),
			slog.String("remote_ip", params.RemoteIP),
		)
		return nil, &UploadError{Code: CodeTypeNotAllowed}
	}

	saved, err := s.store.Save(params.Reader, params.Filename)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
			return nil, &UploadError{Code: CodeTooLarge, Err: err}
		}
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", params.Filename),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{Code: CodeStorageFailure, Err: err}
	}

	result := &UploadResult{
		Name:        saved.Name,
		Size:        saved.Size,
		DownloadURL: s.downloadURL(params.BaseURL, saved.Name),
	}

	if media.IsImage(saved.Name) {
		result.Thumbnail = s.derive("thumbnail", saved.Name, func() error {
			return media.MakeThumbnail(saved.FullPath, s.store.ThumbPath(saved.Name))
		})
	}

	result.QR = s.derive("qr", saved.Name, func() error {
		return media.GenerateQR(result.DownloadURL, s.store.QRPath(saved.Name))
	})

	s.appendAudit(ctx, model.NewUploadEntry(saved.Name, params.RemoteIP, params.UserAgent))

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadedBytesTotal.Add(float64(saved.Size))

	s.logger.Info("Файл загружен",
		slog.String("name", saved.Name),
		slog.Int64("size", saved.Size),
		slog.Bool("thumbnail", result.Thumbnail),
		slog.Bool("qr", result.QR),
		slog.String("remote_ip", params.RemoteIP),
	)

	return result, nil
}

// Delete удаляет файл и его артефакты. Отсутствующий файл —
// не ошибка: DeleteResult.Existed = false, журнал не пишется.
func (s *FileService) Delete(ctx context.Context, name, adminIP string) (*DeleteResult, error) {
	safe := filestore.SanitizeFilename(name)

	existed, err := s.store.Delete(name)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления файла",
			slog.String("name", safe),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("удаление %s: %w", safe, err)
	}

	if !existed {
		middleware.OperationsTotal.WithLabelValues("delete", "not_found").Inc()
		return &DeleteResult{Name: safe}, nil
	}

	s.appendAudit(ctx, model.NewDeleteEntry(safe, adminIP))
	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()

	s.logger.Info("Файл удалён",
		slog.String("name", safe),
		slog.String("admin_ip", adminIP),
	)

	return &DeleteResult{Name: safe, Existed: true}, nil
}

// Recent возвращает до n последних файлов.
func (s *FileService) Recent(n int) ([]model.StoredFile, error) {
	return s.store.ListRecent(n)
}

// History возвращает журнал аудита целиком.
func (s *FileService) History(ctx context.Context) ([]model.AuditEntry, error) {
	return s.audit.LoadAll(ctx)
}

// downloadURL формирует абсолютную ссылку на скачивание файла.
func (s *FileService) downloadURL(baseURL, name string) string {
	if s.publicURL != "" {
		baseURL = s.publicURL
	}
	return baseURL + "/uploads/" + url.PathEscape(name)
}

// derive выполняет построение артефакта и учитывает результат в метриках.
func (s *FileService) derive(kind, name string, fn func() error) bool {
	if err := fn(); err != nil {
		middleware.DerivedArtifactsTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Warn("Не удалось построить артефакт",
			slog.String("kind", kind),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	middleware.DerivedArtifactsTotal.WithLabelValues(kind, "success").Inc()
	return true
}

// appendAudit пишет событие в журнал. Ошибка записи не отменяет операцию.
// Завершённая операция журналируется и при разрыве соединения клиентом.
func (s *FileService) appendAudit(ctx context.Context, entry model.AuditEntry) {
	if err := s.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		middleware.AuditWritesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка записи в журнал аудита",
			slog.String("action", string(entry.Action)),
			slog.String("file", entry.File),
			slog.String("error", err.Error()),
		)
		return
	}
	middleware.AuditWritesTotal.WithLabelValues("success").Inc()
}
