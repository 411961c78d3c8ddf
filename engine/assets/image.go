package assets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// DecodeImage decodes PNG, JPEG, BMP, TIFF or WebP into tightly packed sRGB RGBA8.
func DecodeImage(r io.Reader) (metadata.TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return metadata.TextureData{}, errors.Wrap(err, "decoding image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return metadata.TextureData{}, errors.Newf("%s image has no pixels", format)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return metadata.TextureData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Format: vk.FormatR8g8b8a8Srgb,
		Pixels: rgba.Pix,
	}, nil
}
