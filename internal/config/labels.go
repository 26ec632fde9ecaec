package config

import (
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/verte-zerg/boxlabel/internal/model"
)

// DefaultLabelsPath is the labels file looked up in the working directory.
const DefaultLabelsPath = "config.json"

// ErrNoLabels is returned when a labels file defines no non-empty key.
var ErrNoLabels = errors.New("no labels configured")

// LoadLabels reads key_1..key_9 from a JSON, YAML or TOML file. Empty or
// missing keys are skipped; the remaining names keep their order.
func LoadLabels(path string) (model.LabelSet, error) {
	if path == "" {
		return nil, errors.New("labels path is empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithHintf(
			errors.Wrapf(err, "failed to read labels from %s", path),
			"the file needs string entries %q through %q", "key_1", "key_"+strconv.Itoa(model.MaxLabels))
	}
	labels := make(model.LabelSet, 0, model.MaxLabels)
	for i := 1; i <= model.MaxLabels; i++ {
		name := v.GetString("key_" + strconv.Itoa(i))
		if name == "" {
			continue
		}
		labels = append(labels, name)
	}
	if len(labels) == 0 {
		return nil, errors.Wrapf(ErrNoLabels, "%s", path)
	}
	return labels, nil
}
