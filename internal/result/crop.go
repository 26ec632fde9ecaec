package result

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
)

// CropDPI is the pixel density declared in every crop file.
const CropDPI = 300

// DefaultCropQuality is the JPEG quality used for crops.
const DefaultCropQuality = 75

// ErrEmptyCrop is returned when a box maps outside the original image.
var ErrEmptyCrop = errors.New("crop region is outside the image")

// Cropper cuts regions out of original images and saves them as JPEG files.
type Cropper struct {
	Quality int
}

// Load decodes the original image file, ignoring orientation metadata.
func (c *Cropper) Load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

// Crop extracts rect from img. The rectangle is intersected with the image bounds.
func (c *Cropper) Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	b := img.Bounds()
	r := rect.Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, errors.Wrapf(ErrEmptyCrop, "rect %v, image %dx%d", rect, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, r), nil
}

// Save writes img as a JPEG file declaring CropDPI.
func (c *Cropper) Save(img image.Image, path string) error {
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultCropQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return errors.Wrap(err, "failed to encode crop")
	}
	data, err := withDensity(buf.Bytes(), CropDPI)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write crop")
	}
	return nil
}

// CropName builds "<stem>-<label>-<ordinal>.jpg" for a box of imagePath.
func CropName(imagePath, label string, ordinal int) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	label = strings.NewReplacer("/", "_", "\\", "_").Replace(label)
	return stem + "-" + label + "-" + strconv.Itoa(ordinal) + ".jpg"
}

// withDensity inserts a JFIF APP0 segment with the given dots per inch right
// after the SOI marker. The standard encoder writes no APP0 segment.
func withDensity(jpg []byte, dpi int) ([]byte, error) {
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		return nil, errors.New("encoded crop is not a JPEG stream")
	}
	if len(jpg) >= 4 && jpg[2] == 0xFF && jpg[3] == 0xE0 {
		return jpg, nil
	}
	app0 := make([]byte, 18)
	app0[0], app0[1] = 0xFF, 0xE0
	binary.BigEndian.PutUint16(app0[2:], 16)
	copy(app0[4:], "JFIF\x00")
	app0[9], app0[10] = 1, 1 // version 1.01
	app0[11] = 1             // units: dots per inch
	binary.BigEndian.PutUint16(app0[12:], uint16(dpi))
	binary.BigEndian.PutUint16(app0[14:], uint16(dpi))
	out := make([]byte, 0, len(jpg)+len(app0))
	out = append(out, jpg[:2]...)
	out = append(out, app0...)
	out = append(out, jpg[2:]...)
	return out, nil
}
