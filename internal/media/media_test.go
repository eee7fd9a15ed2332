package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// writePNG создаёт тестовое PNG-изображение w×h.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("создание %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("кодирование PNG: %v", err)
	}
}

// readPNG декодирует PNG-файл.
func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("открытие %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("декодирование %s: %v", path, err)
	}
	return img
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"photo.png":  true,
		"photo.JPEG": true,
		"anim.gif":   true,
		"doc.pdf":    false,
		"notes.txt":  false,
		"noext":      false,
	}
	for name, want := range tests {
		if got := IsImage(name); got != want {
			t.Errorf("IsImage(%q) = %v, ожидалось %v", name, got, want)
		}
	}
}

func TestThumbSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{800, 400, 240, 120},
		{400, 800, 120, 240},
		{240, 240, 240, 240},
		{100, 50, 100, 50},
		{1000, 1, 240, 1},
		{3, 2000, 1, 240},
	}
	for _, tt := range tests {
		w, h := ThumbSize(tt.w, tt.h, ThumbMaxSide)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ThumbSize(%d, %d) = %dx%d, ожидалось %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
		}
	}
}

// TestMakeThumbnail проверяет уменьшение большого изображения.
func TestMakeThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	dst := filepath.Join(dir, "big.png.png")
	writePNG(t, src, 800, 400)

	if err := MakeThumbnail(src, dst); err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}

	b := readPNG(t, dst).Bounds()
	if b.Dx() != 240 || b.Dy() != 120 {
		t.Errorf("размер превью: %dx%d, ожидалось 240x120", b.Dx(), b.Dy())
	}
}

// TestMakeThumbnail_NoUpscale проверяет, что маленькие изображения не увеличиваются.
func TestMakeThumbnail_NoUpscale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	dst := filepath.Join(dir, "small.png.png")
	writePNG(t, src, 100, 50)

	if err := MakeThumbnail(src, dst); err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}

	b := readPNG(t, dst).Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("размер превью: %dx%d, ожидалось 100x50", b.Dx(), b.Dy())
	}
}

// TestMakeThumbnail_NotAnImage проверяет ошибку для не-изображения
// и отсутствие частично записанного результата.
func TestMakeThumbnail_NotAnImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fake.png")
	dst := filepath.Join(dir, "fake.png.png")
	if err := os.WriteFile(src, []byte("not an image"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := MakeThumbnail(src, dst); err == nil {
		t.Fatal("ожидалась ошибка для не-изображения")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("превью не должно создаваться")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("остались лишние файлы: %d", len(entries))
	}
}

// TestMakeThumbnail_MissingSource проверяет ошибку для отсутствующего файла.
func TestMakeThumbnail_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MakeThumbnail(filepath.Join(dir, "none.png"), filepath.Join(dir, "out.png")); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
}

// TestGenerateQR проверяет, что QR-код декодируется в исходный URL.
func TestGenerateQR(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a.txt_qr.png")
	url := "http://localhost:8000/uploads/20240101120000_a.txt"

	if err := GenerateQR(url, dst); err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}

	img := readPNG(t, dst)
	b := img.Bounds()
	if b.Dx() != QRSize || b.Dy() != QRSize {
		t.Errorf("размер QR: %dx%d, ожидалось %dx%d", b.Dx(), b.Dy(), QRSize, QRSize)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		t.Fatalf("бинаризация: %v", err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		t.Fatalf("декодирование QR: %v", err)
	}
	if result.GetText() != url {
		t.Errorf("текст QR: %q, ожидалось %q", result.GetText(), url)
	}
}
