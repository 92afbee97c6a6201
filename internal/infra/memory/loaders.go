package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mission-quiz-service/internal/content"
	"mission-quiz-service/internal/domain"
)

// StaticContentLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticContentLoader struct {
	missions map[string]domain.MissionContent
}

func NewStaticContentLoader(missions map[string]domain.MissionContent) *StaticContentLoader {
	return &StaticContentLoader{missions: missions}
}

func (l *StaticContentLoader) LoadContent(_ context.Context, missionID string) (domain.MissionContent, error) {
	if c, ok := l.missions[missionID]; ok {
		return c, nil
	}
	return domain.MissionContent{}, fmt.Errorf("%w: %q", domain.ErrContentUnavailable, missionID)
}

// DirContentLoader reads authored mission files (<missionID>.json|.yaml|.yml) from a directory.
type DirContentLoader struct {
	dir        string
	normalizer *content.Normalizer
}

func NewDirContentLoader(dir string, normalizer *content.Normalizer) *DirContentLoader {
	if normalizer == nil {
		normalizer = content.NewNormalizer(nil)
	}
	return &DirContentLoader{dir: dir, normalizer: normalizer}
}

func (l *DirContentLoader) LoadContent(_ context.Context, missionID string) (domain.MissionContent, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(l.dir, filepath.Base(missionID)+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return domain.MissionContent{}, fmt.Errorf("%w: %w", domain.ErrContentUnavailable, err)
		}
		format, _ := content.FormatForPath(path)
		c, err := l.normalizer.Decode(data, format)
		if err != nil {
			return domain.MissionContent{}, fmt.Errorf("%w: %s: %w", domain.ErrContentUnavailable, path, err)
		}
		return c, nil
	}
	return domain.MissionContent{}, fmt.Errorf("%w: no file for %q in %s", domain.ErrContentUnavailable, missionID, l.dir)
}

// ChainLoader tries loaders in order, moving on only when content is unavailable.
type ChainLoader []ContentLoader

func (c ChainLoader) LoadContent(ctx context.Context, missionID string) (domain.MissionContent, error) {
	err := fmt.Errorf("%w: no loaders configured", domain.ErrContentUnavailable)
	for _, l := range c {
		var mc domain.MissionContent
		mc, err = l.LoadContent(ctx, missionID)
		if err == nil {
			return mc, nil
		}
		if !errors.Is(err, domain.ErrContentUnavailable) {
			return domain.MissionContent{}, err
		}
	}
	return domain.MissionContent{}, err
}
