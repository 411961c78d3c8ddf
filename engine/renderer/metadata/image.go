package metadata

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

/**
 * @brief Decoded pixels ready for texture creation.
 */
type TextureData struct {
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief The pixel format of Pixels. */
	Format vk.Format
	/** @brief Tightly packed rows, Width*Height*BytesPerPixel(Format) bytes. */
	Pixels []uint8
}

// BytesPerPixel reports the texel size of the formats textures may be created from.
func BytesPerPixel(format vk.Format) (uint32, bool) {
	switch format {
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb,
		vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return 4, true
	}
	return 0, false
}

// Validate checks that the pixel payload matches the declared extent and format.
func (t TextureData) Validate() error {
	if t.Width == 0 || t.Height == 0 {
		return errors.Newf("texture extent %dx%d has no area", t.Width, t.Height)
	}
	bpp, ok := BytesPerPixel(t.Format)
	if !ok {
		return errors.Newf("unsupported texture format %d", t.Format)
	}
	if want := uint64(t.Width) * uint64(t.Height) * uint64(bpp); uint64(len(t.Pixels)) != want {
		return errors.Newf("texture %dx%d needs %d bytes, got %d", t.Width, t.Height, want, len(t.Pixels))
	}
	return nil
}
