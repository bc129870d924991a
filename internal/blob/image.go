package blob

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// NormalizeImage sniffs data and returns bytes the PDF layer can embed along
// with their type ("JPG" or "PNG"). Other decodable formats are re-encoded
// as PNG.
func NormalizeImage(data []byte) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}

	switch strings.ToLower(format) {
	case "jpeg":
		return data, "JPG", nil
	case "png":
		return data, "PNG", nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "PNG", nil
}
