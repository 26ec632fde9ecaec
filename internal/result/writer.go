package result

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/geometry"
	"github.com/verte-zerg/boxlabel/internal/model"
)

// ErrUnlabeledBox is returned when a commit contains a box without a label.
var ErrUnlabeledBox = errors.New("cannot commit an unlabeled box")

// CommitOptions controls crop extraction for one commit.
type CommitOptions struct {
	Crop    bool
	SaveDir string
}

// Result summarizes what a commit wrote.
type Result struct {
	SidecarPath string
	Lines       int
	Crops       []string
}

// Writer serializes finished boxes of an image.
type Writer struct {
	Labels    model.LabelSet
	Precision int
	Cropper   *Cropper
}

// NewWriter returns a writer with the given label names and number precision.
func NewWriter(labels model.LabelSet, precision, cropQuality int) *Writer {
	return &Writer{
		Labels:    labels,
		Precision: precision,
		Cropper:   &Cropper{Quality: cropQuality},
	}
}

// Commit saves every box as a crop of the original image in crop mode, then
// appends one line per box to the image's sidecar file. The sidecar is the
// resume marker, so it is written last and in a single write: a failed commit
// leaves no lines behind and can be retried. An image without boxes gets an
// empty sidecar file so it is skipped on resume.
func (w *Writer) Commit(boxes []model.Box, d geometry.Display, imagePath string, opts CommitOptions) (Result, error) {
	for i, b := range boxes {
		if !b.Labeled() {
			return Result{}, errors.Wrapf(ErrUnlabeledBox, "box %d", i)
		}
	}
	res := Result{SidecarPath: SidecarPath(imagePath)}
	normalized := make([]geometry.Normalized, len(boxes))
	for i, b := range boxes {
		normalized[i] = geometry.ToNormalized(b, d)
	}

	if opts.Crop {
		if err := os.MkdirAll(opts.SaveDir, 0o755); err != nil {
			return res, errors.Wrap(err, "failed to create save directory")
		}
		if len(boxes) > 0 {
			crops, err := w.writeCrops(normalized, imagePath, opts.SaveDir)
			if err != nil {
				return res, err
			}
			res.Crops = crops
		}
	}

	if err := w.appendLines(res.SidecarPath, normalized); err != nil {
		return res, err
	}
	res.Lines = len(normalized)
	return res, nil
}

func (w *Writer) appendLines(path string, boxes []geometry.Normalized) error {
	var body bytes.Buffer
	for _, n := range boxes {
		body.WriteString(FormatLine(n, w.Precision))
		body.WriteByte('\n')
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open label file")
	}
	if _, err := file.Write(body.Bytes()); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "failed to write label file")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "failed to close label file")
	}
	return nil
}

func (w *Writer) writeCrops(boxes []geometry.Normalized, imagePath, saveDir string) ([]string, error) {
	cropper := w.Cropper
	if cropper == nil {
		cropper = &Cropper{}
	}
	img, err := cropper.Load(imagePath)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	written := make([]string, 0, len(boxes))
	for i, n := range boxes {
		rect := geometry.ToOriginalPixels(n, b.Dx(), b.Dy())
		region, err := cropper.Crop(img, rect)
		if err != nil {
			return written, errors.Wrapf(err, "box %d", i)
		}
		path := filepath.Join(saveDir, CropName(imagePath, w.Labels.Name(n.Label), i))
		if err := cropper.Save(region, path); err != nil {
			return written, errors.Wrapf(err, "box %d", i)
		}
		written = append(written, path)
	}
	return written, nil
}
