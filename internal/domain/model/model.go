// Пакет model — доменные модели DarkVault: сохранённый файл
// и запись журнала аудита.
package model

import (
	"encoding/json"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// MIMEUnknown — MIME-тип для файлов с неизвестным расширением.
const MIMEUnknown = "unknown"

// AuditTimeLayout — формат поля time в журнале аудита (UTC, микросекунды, суффикс Z).
const AuditTimeLayout = "2006-01-02T15:04:05.000000Z"

// StoredFile — файл в директории загрузок.
// Идентичность — Name (имя на диске).
type StoredFile struct {
	// Name — имя на диске: {YYYYMMDDHHMMSS}_{очищенное исходное имя}
	Name string
	// Size — размер в байтах
	Size int64
	// ModTime — время последней модификации
	ModTime time.Time
	// MIME — тип по расширению или MIMEUnknown
	MIME string
}

// IsImage сообщает, что для файла строится превью.
func (f StoredFile) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// MIMEType определяет MIME-тип по расширению без анализа содержимого.
// Параметры (charset) отбрасываются; неизвестное расширение — MIMEUnknown.
func MIMEType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return MIMEUnknown
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

// IsImageName сообщает, что тип файла по расширению — image/*.
func IsImageName(name string) bool {
	return strings.HasPrefix(MIMEType(name), "image/")
}

// ThumbName — имя превью в директории thumbs.
func ThumbName(stored string) string {
	return stored + ".png"
}

// QRName — имя QR-кода в директории thumbs.
func QRName(stored string) string {
	return stored + "_qr.png"
}

// AuditAction — тип события журнала аудита.
type AuditAction string

const (
	// ActionUpload — загрузка файла
	ActionUpload AuditAction = "upload"
	// ActionDelete — удаление файла администратором
	ActionDelete AuditAction = "delete"
)

// AuditEntry — запись журнала аудита.
// Для upload заполняются IP и UA, для delete — AdminIP.
type AuditEntry struct {
	Time    string      `json:"time"`
	Action  AuditAction `json:"action"`
	File    string      `json:"file"`
	IP      string      `json:"ip,omitempty"`
	UA      string      `json:"ua,omitempty"`
	AdminIP string      `json:"admin_ip,omitempty"`
}

// uploadRecord и deleteRecord задают набор полей на диске
// для каждого типа события.
type uploadRecord struct {
	Time   string      `json:"time"`
	Action AuditAction `json:"action"`
	File   string      `json:"file"`
	IP     string      `json:"ip"`
	UA     string      `json:"ua"`
}

type deleteRecord struct {
	Time    string      `json:"time"`
	Action  AuditAction `json:"action"`
	File    string      `json:"file"`
	AdminIP string      `json:"admin_ip"`
}

// MarshalJSON пишет поля, соответствующие типу события.
// Поле ua у upload присутствует даже пустым.
func (e AuditEntry) MarshalJSON() ([]byte, error) {
	switch e.Action {
	case ActionUpload:
		return json.Marshal(uploadRecord{e.Time, e.Action, e.File, e.IP, e.UA})
	case ActionDelete:
		return json.Marshal(deleteRecord{e.Time, e.Action, e.File, e.AdminIP})
	default:
		type plain AuditEntry
		return json.Marshal(plain(e))
	}
}

// NewUploadEntry создаёт запись о загрузке.
func NewUploadEntry(file, ip, ua string) AuditEntry {
	return AuditEntry{Action: ActionUpload, File: file, IP: ip, UA: ua}
}

// NewDeleteEntry создаёт запись об удалении.
func NewDeleteEntry(file, adminIP string) AuditEntry {
	return AuditEntry{Action: ActionDelete, File: file, AdminIP: adminIP}
}

// FormatAuditTime форматирует момент события для поля time.
func FormatAuditTime(t time.Time) string {
	return t.UTC().Format(AuditTimeLayout)
}
