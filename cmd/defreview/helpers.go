// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lendproj/defreview/internal/catalog"
	"github.com/lendproj/defreview/internal/config"
	"github.com/lendproj/defreview/internal/detect"
	"github.com/lendproj/defreview/internal/filter"
	"github.com/lendproj/defreview/internal/logging"
	"github.com/lendproj/defreview/internal/oracle"
	"github.com/lendproj/defreview/internal/pipeline"
	"github.com/lendproj/defreview/internal/rank"
	"github.com/lendproj/defreview/internal/score"
)

// buildPipeline loads configuration and catalog and wires every stage.
// Returned alongside are the logger (caller syncs it) for command-level use.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	if flagCatalog != "" {
		cfg.CatalogPath = flagCatalog
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if cfg.CatalogPath == "" {
		return nil, nil, fmt.Errorf("no condition catalog: set --catalog or catalog_path in the config file")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("conditions", cat.Len()))

	genai, err := oracle.NewGenAI(ctx, cfg.Oracle, log)
	if err != nil {
		return nil, nil, err
	}
	sim := oracle.NewEmbedCache(genai)

	pipe := pipeline.New(
		cat,
		filter.New(cfg.Filter, sim, log),
		rank.New(sim, log),
		detect.New(genai, cat, cfg.Detect, log),
		score.New(genai, cat, cfg.Score, log),
		pipeline.Options{RankMethod: rank.Method(cfg.Rank.Method), RankTopN: cfg.Rank.TopN},
		log,
	)
	return pipe, log, nil
}
