package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

type sourcesFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

// LoadSources читает список источников по умолчанию. Нет файла значит нет сидов
func LoadSources(path string) ([]model.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	sources := make([]model.Source, 0, len(file.Sources))
	for i, s := range file.Sources {
		name, url := strings.TrimSpace(s.Name), strings.TrimSpace(s.URL)
		if name == "" || url == "" {
			return nil, fmt.Errorf("source #%d in %s: name and url are required", i+1, path)
		}

		sources = append(sources, model.Source{
			Name:    name,
			FeedURL: url,
			// По умолчанию источник включен
			Enabled: s.Enabled == nil || *s.Enabled,
			Health:  model.Health{Status: model.HealthUnknown},
		})
	}

	return sources, nil
}
