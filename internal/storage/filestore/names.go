package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxNameBytes — предел длины очищенного имени (без префикса времени).
const maxNameBytes = 200

// SanitizeFilename приводит имя файла к безопасному ASCII-виду:
// NFKD-нормализация с отбрасыванием не-ASCII, разделители пути заменяются
// пробелами, части через пробел склеиваются "_", остаются только
// [A-Za-z0-9_.-], крайние "." и "_" удаляются. Может вернуть пустую строку.
func SanitizeFilename(name string) string {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < 0x80 {
			ascii.WriteRune(r)
		}
	}

	s := strings.NewReplacer("/", " ", "\\", " ").Replace(ascii.String())
	s = strings.Join(strings.Fields(s), "_")

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-' {
			result.WriteRune(r)
		}
	}

	return strings.Trim(result.String(), "._")
}

// truncateName ограничивает длину имени, сохраняя расширение.
func truncateName(name string) string {
	if len(name) <= maxNameBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxNameBytes/2 {
		ext = ""
	}
	return name[:maxNameBytes-len(ext)] + ext
}

// resolveIn проверяет имя из URL и возвращает путь внутри dir.
// Отклоняются пустые имена, разделители пути, "." и "..", имена,
// меняющиеся при очистке, и пути, выводящие за пределы dir через symlink.
func resolveIn(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	if SanitizeFilename(name) != name {
		return "", ErrInvalidName
	}

	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("ошибка разрешения директории %s: %w", dir, err)
	}

	real, err := filepath.EvalSymlinks(filepath.Join(dir, name))
	if err != nil {
		return "", ErrNotFound
	}

	rel, err := filepath.Rel(realDir, real)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrNotFound
	}

	info, err := os.Stat(real)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}

	return real, nil
}
