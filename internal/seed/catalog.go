package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"stackit/internal/service"

	"gopkg.in/yaml.v3"
)

//go:embed tags.yml
var catalogYAML []byte

type catalogFile struct {
	Tags []catalogEntry `yaml:"tags"`
}

type catalogEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog returns the embedded initial tag catalog.
func Catalog() ([]service.CreateTagInput, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes a YAML tag catalog. Names must be present and unique
// ignoring case.
func ParseCatalog(raw []byte) ([]service.CreateTagInput, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tag catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Tags))
	out := make([]service.CreateTagInput, 0, len(file.Tags))
	for i, entry := range file.Tags {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("tag catalog entry %d has no name", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("tag catalog lists %q twice", name)
		}
		seen[key] = true
		out = append(out, service.CreateTagInput{Name: name, Description: strings.TrimSpace(entry.Description)})
	}
	return out, nil
}

// LoadTags upserts the embedded catalog and returns how many tags were new.
func LoadTags(ctx context.Context, tags *service.TagService) (int, error) {
	catalog, err := Catalog()
	if err != nil {
		return 0, err
	}
	return tags.LoadCatalog(ctx, catalog)
}
