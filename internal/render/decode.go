package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks an entry whose bytes could not be turned into a bitmap.
var ErrDecode = errors.New("cannot decode image")

// Decoder turns an entry key into a bitmap.
type Decoder interface {
	Decode(key string) (image.Image, error)
}

// DecodeFunc adapts a function to Decoder.
type DecodeFunc func(key string) (image.Image, error)

func (f DecodeFunc) Decode(key string) (image.Image, error) {
	return f(key)
}

// DecodeFile treats key as a file path and decodes any registered format.
func DecodeFile(key string) (image.Image, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return img, nil
}
