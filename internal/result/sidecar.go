// Package result persists finished annotations as sidecar label files and crops.
package result

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/geometry"
)

// SidecarExt is the extension of per-image label files.
const SidecarExt = ".txt"

// DefaultPrecision is the number of decimals written per coordinate.
const DefaultPrecision = 6

// SidecarPath returns the label file path for an image: the image path with
// its extension replaced by .txt.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + SidecarExt
}

// HasSidecar reports whether the image already has a label file.
func HasSidecar(imagePath string) bool {
	info, err := os.Stat(SidecarPath(imagePath))
	return err == nil && !info.IsDir()
}

// FormatLine renders one sidecar line without the trailing newline. A negative
// precision writes the shortest text that round-trips.
func FormatLine(n geometry.Normalized, precision int) string {
	parts := []string{
		strconv.Itoa(n.Label),
		strconv.FormatFloat(n.CX, 'f', precision, 64),
		strconv.FormatFloat(n.CY, 'f', precision, 64),
		strconv.FormatFloat(n.W, 'f', precision, 64),
		strconv.FormatFloat(n.H, 'f', precision, 64),
	}
	return strings.Join(parts, " ")
}

// ParseSidecar reads normalized boxes from a label file body. Blank lines are skipped.
func ParseSidecar(r io.Reader) ([]geometry.Normalized, error) {
	var out []geometry.Normalized
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		out = append(out, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read label file")
	}
	return out, nil
}

// ReadSidecar parses the label file at path.
func ReadSidecar(path string) ([]geometry.Normalized, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open label file")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only label file.
			_ = cerr
		}
	}()
	boxes, err := ParseSidecar(file)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return boxes, nil
}

func parseLine(line string) (geometry.Normalized, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return geometry.Normalized{}, errors.Newf("expected 5 fields, got %d", len(fields))
	}
	label, err := strconv.Atoi(fields[0])
	if err != nil {
		return geometry.Normalized{}, errors.Wrap(err, "invalid label index")
	}
	var vals [4]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Normalized{}, errors.Wrap(err, "invalid coordinate")
		}
		vals[i] = v
	}
	return geometry.Normalized{Label: label, CX: vals[0], CY: vals[1], W: vals[2], H: vals[3]}, nil
}
