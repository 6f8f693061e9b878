package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/colligo/internal/models"
)

// seedBatch is the on-disk shape of a seed file.
type seedBatch struct {
	Articles []models.ArticleSubmission `yaml:"articles"`
}

// LoadSeedBatches reads every *.yaml / *.yml file in dir and submits each as
// one batch. A missing directory is not an error; a malformed file is logged
// and skipped so one bad seed cannot block startup.
func (c *Coordinator) LoadSeedBatches(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Debug().Str("dir", dir).Msg("Seed directory not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to read seed directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", path).Msg("Failed to read seed file")
			continue
		}

		var batch seedBatch
		if err := yaml.Unmarshal(data, &batch); err != nil {
			c.logger.Warn().Err(err).Str("file", path).Msg("Failed to parse seed file")
			continue
		}
		if len(batch.Articles) == 0 {
			c.logger.Warn().Str("file", path).Msg("Seed file has no articles, skipping")
			continue
		}

		resp, err := c.Submit(ctx, batch.Articles)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", path).Msg("Failed to submit seed batch")
			continue
		}

		c.logger.Info().
			Str("file", entry.Name()).
			Str("job_id", resp.JobID).
			Int("total", resp.TotalArticles).
			Int("cached", resp.CachedArticles).
			Msg("Seed batch submitted")
		loaded++
	}

	if loaded > 0 {
		c.logger.Info().Int("batches", loaded).Str("dir", dir).Msg("Seed batches loaded")
	}
	return nil
}
