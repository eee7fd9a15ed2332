// Пакет pages — HTML-страницы UI на html/template.
// Шаблоны встроены в бинарник; каждая страница — base.html + свой файл.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// Имена страниц.
const (
	PageHome  = "home"
	PageLogin = "login"
	PageAdmin = "admin"
)

// FlashView — переведённое уведомление для шаблона.
type FlashView struct {
	Category string
	Text     string
}

// Page — данные страницы.
type Page struct {
	// Заполняются Renderer
	Lang  string
	Langs []string

	// TitleKey — ключ i18n заголовка страницы
	TitleKey string
	Admin    bool
	Flashes  []FlashView

	// Главная и админ-панель
	Files          []model.StoredFile
	MaxUploadBytes int64
	AllowedExt     []string

	// Админ-панель
	Logs []model.AuditEntry
}

// Renderer — набор разобранных страниц.
type Renderer struct {
	pages  map[string]*template.Template
	bundle *i18n.Bundle
}

// NewRenderer разбирает встроенные шаблоны всех страниц.
func NewRenderer(bundle *i18n.Bundle) (*Renderer, error) {
	funcs := template.FuncMap{
		"t": bundle.T,
		"tf": func(lang, key string, args ...any) string {
			return bundle.Tf(lang, key, args...)
		},
		"bytes": func(n int64) string {
			if n < 0 {
				return "0 B"
			}
			return humanize.IBytes(uint64(n))
		},
		"datetime": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04:05")
		},
		"ago":    humanize.Time,
		"escape": url.PathEscape,
		"thumb":  model.ThumbName,
		"qr":     model.QRName,
		"join":   strings.Join,
		"client": func(e model.AuditEntry) string {
			if e.AdminIP != "" {
				return e.AdminIP
			}
			if e.UA != "" {
				return e.IP + " · " + e.UA
			}
			return e.IP
		},
	}

	r := &Renderer{pages: make(map[string]*template.Template), bundle: bundle}
	for _, name := range []string{PageHome, PageLogin, PageAdmin} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/files.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора шаблона %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Flashes переводит уведомления сессии на язык запроса.
func (r *Renderer) Flashes(lang string, flashes []auth.Flash) []FlashView {
	views := make([]FlashView, 0, len(flashes))
	for _, f := range flashes {
		args := make([]any, len(f.Args))
		for i, a := range f.Args {
			args[i] = a
		}
		views = append(views, FlashView{
			Category: string(f.Category),
			Text:     r.bundle.Tf(lang, f.Key, args...),
		})
	}
	return views
}

// Render выполняет шаблон страницы и пишет HTML в ответ.
// Ответ формируется в буфере: ошибка шаблона не оставляет частичный HTML.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, page *Page) error {
	body, err := r.Execute(req, name, page)
	if err != nil {
		return err
	}
	return Write(w, body)
}

// Execute выполняет шаблон страницы в буфер, ничего не записывая в ответ.
func (r *Renderer) Execute(req *http.Request, name string, page *Page) ([]byte, error) {
	tmpl, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("неизвестная страница %q", name)
	}

	page.Lang = i18n.LangFromContext(req.Context())
	page.Langs = r.bundle.Languages()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", page); err != nil {
		return nil, fmt.Errorf("ошибка рендеринга %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Write отправляет готовую HTML-страницу.
func Write(w http.ResponseWriter, body []byte) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := w.Write(body)
	return err
}
