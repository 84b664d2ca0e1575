// Package pipeline runs fetch, normalize, persist and load in sequence.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edubigdata/stocketl/internal/config"
	"github.com/edubigdata/stocketl/internal/historical"
	"github.com/edubigdata/stocketl/internal/store"
)

// Source produces the scraped table.
type Source interface {
	Fetch(ctx context.Context) ([]historical.RawRow, error)
}

// Result summarizes a finished run.
type Result struct {
	Fetched  int
	Inserted int
}

// Pipeline wires the stages together for one configuration.
type Pipeline struct {
	config *config.Config
	source Source
	loader *store.Loader
}

// New creates a pipeline reading from source and writing where cfg points.
func New(cfg *config.Config, source Source) *Pipeline {
	return &Pipeline{
		config: cfg,
		source: source,
		loader: store.NewLoader(cfg.Database.Path),
	}
}

// Run executes the whole pipeline. The normalized rows are loaded from memory.
// A fetch failure stops the run before any file is written.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	rows, err := p.FetchAndSave(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := p.loader.CreateTable(ctx); err != nil {
		return Result{Fetched: len(rows)}, err
	}

	inserted, err := p.loader.Insert(ctx, rows)
	if err != nil {
		return Result{Fetched: len(rows)}, err
	}

	log.Info().Int("rows", inserted).Msg("ETL pipeline completed successfully")
	return Result{Fetched: len(rows), Inserted: inserted}, nil
}

// FetchAndSave fetches the table, writes the raw snapshot, normalizes it and
// writes the processed snapshot.
func (p *Pipeline) FetchAndSave(ctx context.Context) ([]historical.StockRow, error) {
	raw, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := historical.SaveRawCSV(p.config.Output.RawPath, raw); err != nil {
		return nil, fmt.Errorf("failed to save raw data: %w", err)
	}

	rows, err := historical.Normalize(raw)
	if err != nil {
		return nil, err
	}

	if err := historical.SaveProcessedCSV(p.config.Output.ProcessedPath, rows); err != nil {
		return nil, fmt.Errorf("failed to save processed data: %w", err)
	}

	if p.config.Output.ParquetEnabled {
		if err := historical.SaveParquet(p.config.Output.ParquetPath, rows); err != nil {
			return nil, fmt.Errorf("failed to save parquet data: %w", err)
		}
	}

	return rows, nil
}

// Load creates the table and inserts the processed snapshot from disk.
func (p *Pipeline) Load(ctx context.Context) (int, error) {
	if err := p.loader.CreateTable(ctx); err != nil {
		return 0, err
	}
	return p.loader.LoadFile(ctx, p.config.Output.ProcessedPath)
}
