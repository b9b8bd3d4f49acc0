package ratio

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// PadImageBytes is the bytes-level convenience used by the synchronous resize
// path: decode, pad to the target ratio, re-encode. JPEG input stays JPEG;
// everything else is encoded as PNG so the sentinel bars survive losslessly.
// The returned format is "jpeg" or "png".
func PadImageBytes(data []byte, target Ratio) ([]byte, *PaddedImage, string, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, nil, "", err
	}

	padded, err := PadToRatio(img, target)
	if err != nil {
		return nil, nil, "", err
	}

	encFormat := imaging.PNG
	name := "png"
	if format == "jpeg" {
		encFormat = imaging.JPEG
		name = "jpeg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, padded.Image, encFormat); err != nil {
		return nil, nil, "", fmt.Errorf("ratio: encode padded image: %w", err)
	}
	return buf.Bytes(), padded, name, nil
}

// EncodePNG encodes an image as PNG. The padded canvas handed to the
// generation backend always goes out as PNG.
func EncodePNG(padded *PaddedImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, padded.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("ratio: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
