package cli

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"mission-quiz-service/internal/content"
	"mission-quiz-service/internal/domain"
)

//go:embed missions
var sampleFS embed.FS

// sampleMissions decodes the bundled demo missions; they back every other content source.
func sampleMissions(normalizer *content.Normalizer) (map[string]domain.MissionContent, error) {
	entries, err := fs.ReadDir(sampleFS, "missions")
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.MissionContent, len(entries))
	for _, e := range entries {
		name := path.Join("missions", e.Name())
		format, ok := content.FormatForPath(name)
		if !ok {
			continue
		}
		data, err := sampleFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		c, err := normalizer.Decode(data, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[c.ID] = c
	}
	return out, nil
}
