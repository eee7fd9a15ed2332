// Пакет i18n — интернационализация UI DarkVault.
// Каталоги переводов — плоские JSON-файлы locales/<lang>.json.
// Язык определяется middleware: cookie "lang" → Accept-Language → "en".
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLang — язык по умолчанию и fallback для отсутствующих ключей.
const DefaultLang = "en"

type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — каталоги переводов всех языков. Только чтение после загрузки.
type Bundle struct {
	catalogs map[string]map[string]string // lang → key → translation
	langs    []string
	matcher  language.Matcher
}

// Load загружает все каталоги locales/*.json из fsys.
// Каталог языка по умолчанию обязателен.
func Load(fsys fs.FS, logger *slog.Logger) (*Bundle, error) {
	files, err := fs.Glob(fsys, "locales/*.json")
	if err != nil {
		return nil, fmt.Errorf("i18n: ошибка поиска каталогов: %w", err)
	}

	b := &Bundle{catalogs: make(map[string]map[string]string, len(files))}
	for _, file := range files {
		lang := strings.TrimSuffix(path.Base(file), ".json")

		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", file, err)
		}
		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
		}
		b.catalogs[lang] = messages

		logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}

	if _, ok := b.catalogs[DefaultLang]; !ok {
		return nil, fmt.Errorf("i18n: отсутствует каталог языка по умолчанию %q", DefaultLang)
	}

	// Язык по умолчанию — первый: matcher возвращает его при отсутствии совпадений
	b.langs = append(b.langs, DefaultLang)
	for lang := range b.catalogs {
		if lang != DefaultLang {
			b.langs = append(b.langs, lang)
		}
	}
	slices.Sort(b.langs[1:])

	tags := make([]language.Tag, 0, len(b.langs))
	for _, lang := range b.langs {
		tags = append(tags, language.Make(lang))
	}
	b.matcher = language.NewMatcher(tags)

	logger.Info("i18n каталоги загружены", slog.Any("languages", b.langs))
	return b, nil
}

// Languages возвращает коды загруженных языков; первый — язык по умолчанию.
func (b *Bundle) Languages() []string {
	return slices.Clone(b.langs)
}

// Supported сообщает, загружен ли каталог языка.
func (b *Bundle) Supported(lang string) bool {
	_, ok := b.catalogs[lang]
	return ok
}

// T возвращает перевод ключа. Отсутствующий ключ ищется в каталоге
// по умолчанию, затем возвращается сам ключ.
func (b *Bundle) T(lang, key string) string {
	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if msg, ok := b.catalogs[DefaultLang][key]; ok {
		return msg
	}
	return key
}

// Tf возвращает перевод с подстановкой аргументов.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	template := b.T(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// formatFunc — fmt.Sprintf через переменную: формат-строки приходят
// из каталогов во время выполнения, go vet не может их проверить.
var formatFunc = fmt.Sprintf

// Match выбирает лучший загруженный язык для заголовка Accept-Language.
func (b *Bundle) Match(acceptLanguage string) string {
	_, idx := language.MatchStrings(b.matcher, acceptLanguage)
	if idx < 0 || idx >= len(b.langs) {
		return DefaultLang
	}
	return b.langs[idx]
}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. Default: "en".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}
