package main

import (
	"errors"

	"pricecrawl/pkg/checkpoint"
	"pricecrawl/pkg/config"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/traversal"
)

// buildLevels turns the configured hierarchy into engine levels, each with
// its checkpoint under the output directory.
func buildLevels(cfg *config.Config, log logger.Logger) []traversal.Level {
	levels := make([]traversal.Level, len(cfg.Levels))
	for i, lc := range cfg.Levels {
		levels[i] = traversal.Level{
			Name:       lc.Name,
			Field:      lc.Field,
			Checkpoint: checkpoint.New(cfg.CheckpointPath(lc), lc.RootTag, lc.ItemTag, checkpoint.WithLogger(log)),
			Ignore: traversal.IgnoreRule{
				Always: lc.Ignore,
				Under:  lc.IgnoreUnder,
			},
			Limit: lc.Limit,
		}
	}
	return levels
}

func levelNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Levels))
	for i, lc := range cfg.Levels {
		names[i] = lc.Name
	}
	return names
}

// resetLevels deletes every level's checkpoint file.
func resetLevels(levels []traversal.Level) error {
	var errs []error
	for _, lvl := range levels {
		if err := lvl.Checkpoint.Delete(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
