package main

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospector/internal/model"
)

// targetsFile is the on-disk batch format: an ordered list of target
// specifications, each a URL plus optional selector spec and prompt
// template override.
type targetsFile struct {
	Targets []*model.Target `yaml:"targets"`
}

// loadTargets reads and validates a targets YAML file.
func loadTargets(path string) ([]*model.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "targets: read file")
	}

	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "targets: parse yaml")
	}
	if len(f.Targets) == 0 {
		return nil, eris.New("targets: file lists no targets")
	}
	for i, t := range f.Targets {
		if t.URL == "" {
			return nil, eris.Errorf("targets: entry %d has no url", i)
		}
	}

	return f.Targets, nil
}
