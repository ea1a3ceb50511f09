package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	AvatarSize    = 128
	AvatarQuality = 80
	// MaxUploadSize bounds an uploaded picture before decoding.
	MaxUploadSize = 5 << 20
)

var (
	ErrUnsupportedImage = errors.New("images: unsupported image format")
	ErrTooLarge         = errors.New("images: upload too large")
)

// Avatar decodes a JPEG, PNG, GIF or WebP image, crops it to a centred
// square, scales it to size×size and encodes it as JPEG.
func Avatar(r io.Reader, size int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: AvatarQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}

// coverRect returns the largest centred square inside b.
func coverRect(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	side := min(w, h)
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// AvatarKey builds a unique object key such as
// avatars/<user>/<random>-portrait.jpg for an uploaded file.
func AvatarKey(userID, filename string) string {
	return fmt.Sprintf("avatars/%s/%s-%s.jpg", userID, strings.ReplaceAll(uuid.NewString(), "-", "")[:12], slug(filename))
}

func slug(filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 48 {
		s = s[:48]
	}
	if s == "" || s == "." {
		return "avatar"
	}
	return s
}
