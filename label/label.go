// Package label renders printable label images.
package label

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"janouch.name/qlusb/ql"
)

// GenQRLabel encodes text as a QR code filling the media's printable
// width, or its printable length on die-cut labels when that is the
// tighter constraint.
func GenQRLabel(text string, media ql.Media) (image.Image, error) {
	spec, ok := media.Spec()
	if !ok {
		return nil, fmt.Errorf("unsupported media %s", media)
	}

	size := spec.PrintWidthDots
	if spec.LengthDots != 0 && spec.LengthDots < size {
		size = spec.LengthDots
	}

	code, err := qr.Encode(text, qr.H, qr.Auto)
	if err != nil {
		return nil, err
	}
	return barcode.Scale(code, size, size)
}
