// files.go — главная страница с загрузкой, скачивание файлов и артефактов,
// панель администратора с удалением.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/service"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/filestore"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/pages"
)

const (
	// homeListSize — файлов на главной странице
	homeListSize = 30
	// adminListSize — файлов в панели администратора
	adminListSize = 200
	// uploadField — имя поля формы с файлом
	uploadField = "file"
)

// FilesHandler — обработчики файловых страниц.
type FilesHandler struct {
	base
	files          *service.FileService
	store          *filestore.FileStore
	maxUploadBytes int64
	allowedExt     []string
}

// NewFilesHandler создаёт FilesHandler.
func NewFilesHandler(
	files *service.FileService,
	store *filestore.FileStore,
	sessionManager *auth.SessionManager,
	renderer *pages.Renderer,
	maxUploadBytes int64,
	allowedExt []string,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		base: base{
			sessionManager: sessionManager,
			renderer:       renderer,
			logger:         logger.With(slog.String("component", "ui.files")),
		},
		files:          files,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		allowedExt:     allowedExt,
	}
}

// HandleHome обрабатывает GET / — форма загрузки и последние файлы.
func (h *FilesHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.Recent(homeListSize)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
	}

	h.render(w, r, pages.PageHome, &pages.Page{
		TitleKey:       "nav.home",
		Files:          files,
		MaxUploadBytes: h.maxUploadBytes,
		AllowedExt:     h.allowedExt,
	})
}

// HandleUpload обрабатывает POST / — загрузка файла из поля "file".
// Тело multipart читается потоком, без промежуточного разбора формы.
func (h *FilesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	part, err := h.filePart(r)
	if err != nil {
		if isTooLarge(err) {
			h.tooLarge(w, r)
			return
		}
		h.logger.Debug("Форма загрузки без файла", slog.String("error", err.Error()))
		h.redirectWithFlash(w, r, "/", auth.FlashError, service.CodeNoFile)
		return
	}
	defer part.Close()

	res, uerr := h.files.Upload(r.Context(), service.UploadParams{
		Reader:    part,
		Filename:  part.FileName(),
		BaseURL:   baseURL(r),
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
	})
	if uerr != nil {
		if uerr.Code == service.CodeTooLarge {
			h.tooLarge(w, r)
			return
		}
		h.redirectWithFlash(w, r, "/", auth.FlashError, uerr.Code)
		return
	}

	h.redirectWithFlash(w, r, "/", auth.FlashSuccess, "flash.uploaded", res.Name)
}

// filePart возвращает часть multipart-тела с полем "file".
func (h *FilesHandler) filePart(r *http.Request) (filePart, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("поле file отсутствует")
			}
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		part.Close()
	}
}

// filePart — часть multipart-тела с файлом.
type filePart interface {
	io.ReadCloser
	FileName() string
}

// tooLarge отвечает 413 на превышение лимита тела запроса.
func (h *FilesHandler) tooLarge(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("Превышен размер загрузки",
		slog.Int64("limit", h.maxUploadBytes),
		slog.String("remote_ip", remoteIP(r)),
	)
	http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// HandleDownload обрабатывает GET /uploads/{name} — файл как вложение.
func (h *FilesHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name, ok := urlName(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	path, err := h.store.ResolveUpload(name)
	if err != nil {
		h.notFound(w, r, name, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	h.serveFile(w, r, name, path)
}

// HandleThumb обрабатывает GET /thumbs/{name} — превью или QR-код.
func (h *FilesHandler) HandleThumb(w http.ResponseWriter, r *http.Request) {
	name, ok := urlName(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	path, err := h.store.ResolveThumb(name)
	if err != nil {
		h.notFound(w, r, name, err)
		return
	}

	w.Header().Set("Content-Disposition", "inline")
	h.serveFile(w, r, name, path)
}

// serveFile отдаёт файл с поддержкой Range и If-Modified-Since.
func (h *FilesHandler) serveFile(w http.ResponseWriter, r *http.Request, name, path string) {
	f, err := os.Open(path)
	if err != nil {
		h.notFound(w, r, name, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("Ошибка получения информации о файле",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	contentType := model.MIMEType(name)
	if contentType == model.MIMEUnknown {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *FilesHandler) notFound(w http.ResponseWriter, r *http.Request, name string, err error) {
	if !errors.Is(err, filestore.ErrNotFound) && !errors.Is(err, filestore.ErrInvalidName) && !errors.Is(err, os.ErrNotExist) {
		h.logger.Error("Ошибка разрешения имени файла",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
	http.NotFound(w, r)
}

// urlName извлекает и декодирует параметр {name} маршрута.
func urlName(r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// HandleAdmin обрабатывает GET /admin — все файлы и журнал аудита.
func (h *FilesHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.Recent(adminListSize)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
	}

	logs, err := h.files.History(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения журнала аудита", slog.String("error", err.Error()))
	}

	h.render(w, r, pages.PageAdmin, &pages.Page{
		TitleKey: "admin.title",
		Files:    files,
		Logs:     logs,
	})
}

// HandleDelete обрабатывает POST /delete/{name} — удаление файла и артефактов.
func (h *FilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name, _ := urlName(r)

	res, err := h.files.Delete(r.Context(), name, remoteIP(r))
	switch {
	case err != nil:
		h.redirectWithFlash(w, r, "/admin", auth.FlashError, "flash.delete_failed")
	case !res.Existed:
		h.redirectWithFlash(w, r, "/admin", auth.FlashError, "flash.not_found")
	default:
		h.redirectWithFlash(w, r, "/admin", auth.FlashSuccess, "flash.deleted", res.Name)
	}
}
