package stats

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/model"
	"github.com/verte-zerg/boxlabel/internal/queue"
	"github.com/verte-zerg/boxlabel/internal/result"
)

// Report summarizes the annotation progress of a directory.
type Report struct {
	Dir       string
	Total     int
	Labeled   int
	Empty     int
	Boxes     int
	PerLabel  []int
	Unknown   int
	PerImage  []float64
	Malformed []string
}

// Remaining returns the number of images without a sidecar file.
func (r Report) Remaining() int {
	return r.Total - r.Labeled
}

// BuildReport scans dir the way a session does and parses every sidecar file.
// Boxes whose label index falls outside labels count as Unknown.
func BuildReport(dir string, labels model.LabelSet) (Report, error) {
	images, err := queue.List(dir)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Dir:      dir,
		Total:    len(images),
		PerLabel: make([]int, len(labels)),
	}
	for _, img := range images {
		if !result.HasSidecar(img) {
			continue
		}
		report.Labeled++
		boxes, err := result.ReadSidecar(result.SidecarPath(img))
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return Report{}, err
			}
			report.Malformed = append(report.Malformed, filepath.Base(result.SidecarPath(img)))
			continue
		}
		if len(boxes) == 0 {
			report.Empty++
		}
		report.Boxes += len(boxes)
		report.PerImage = append(report.PerImage, float64(len(boxes)))
		for _, b := range boxes {
			if labels.Valid(b.Label) {
				report.PerLabel[b.Label]++
			} else {
				report.Unknown++
			}
		}
	}
	return report, nil
}
