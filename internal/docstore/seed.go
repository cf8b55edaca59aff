package docstore

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chartcode/internal/model"
)

// SeedFile is the YAML layout accepted by LoadSeed
type SeedFile struct {
	Documents []model.Document `yaml:"documents"`
}

// LoadSeed reads documents from a YAML file and puts each one into s.
// Documents with an explicit ID replace any stored document with that ID
func LoadSeed(ctx context.Context, s Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "read seed file %s", path)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, eris.Wrapf(err, "parse seed file %s", path)
	}

	for i := range seed.Documents {
		doc := &seed.Documents[i]
		if doc.Title == "" || doc.Content == "" {
			return i, eris.Errorf("seed document %d: title and content are required", i+1)
		}
		if err := s.Put(ctx, doc); err != nil {
			return i, eris.Wrapf(err, "seed document %q", doc.Title)
		}
	}

	zap.L().Info("seeded documents", zap.String("file", path), zap.Int("count", len(seed.Documents)))
	return len(seed.Documents), nil
}
