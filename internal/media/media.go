// Пакет media — производные артефакты загрузок: превью изображений
// и QR-коды со ссылкой на скачивание.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // регистрация декодера GIF
	_ "image/jpeg" // регистрация декодера JPEG
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/bmp" // регистрация декодера BMP
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // регистрация декодера TIFF
	_ "golang.org/x/image/webp" // регистрация декодера WebP

	"github.com/hasnain-dark-net/Darkvault-pro/internal/domain/model"
)

const (
	// ThumbMaxSide — максимальная сторона превью в пикселях
	ThumbMaxSide = 240
	// QRSize — сторона изображения QR-кода в пикселях
	QRSize = 256
	// maxSourcePixels — предел размера исходного изображения (защита от decompression bomb)
	maxSourcePixels = 64 * 1024 * 1024
)

// ErrImageTooLarge — исходное изображение превышает допустимое число пикселей.
var ErrImageTooLarge = errors.New("изображение слишком большое для превью")

// IsImage сообщает, что тип файла по расширению — image/*.
// Содержимое файла не анализируется.
func IsImage(filename string) bool {
	return model.IsImageName(filename)
}

// MakeThumbnail строит PNG-превью изображения src и записывает его в dst.
// Изображение уменьшается с сохранением пропорций так, чтобы ни одна сторона
// не превышала ThumbMaxSide; маленькие изображения не увеличиваются.
func MakeThumbnail(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", src, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("ошибка чтения заголовка изображения: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("ошибка позиционирования %s: %w", src, err)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("ошибка декодирования изображения: %w", err)
	}

	thumb := scaleDown(img, ThumbMaxSide)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return fmt.Errorf("ошибка кодирования PNG: %w", err)
	}
	return writeFileAtomic(dst, buf.Bytes())
}

// GenerateQR кодирует url в PNG QR-код QRSize×QRSize
// (средний уровень коррекции) и записывает его в dst.
func GenerateQR(url, dst string) error {
	data, err := qrcode.Encode(url, qrcode.Medium, QRSize)
	if err != nil {
		return fmt.Errorf("ошибка генерации QR-кода: %w", err)
	}
	return writeFileAtomic(dst, data)
}

// ThumbSize вычисляет размер превью для исходного w×h.
func ThumbSize(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := (h*maxSide + w/2) / w
		return maxSide, max(nh, 1)
	}
	nw := (w*maxSide + h/2) / h
	return max(nw, 1), maxSide
}

// scaleDown уменьшает изображение интерполяцией Catmull-Rom.
func scaleDown(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := ThumbSize(b.Dx(), b.Dy(), maxSide)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// writeFileAtomic записывает data через temp файл → fsync → rename.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := filepath.Join(filepath.Dir(path), "."+uuid.New().String()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}
