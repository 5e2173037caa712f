// Package analysis provides an expression analysis session that filters a
// dataset and reports summary counts.
package analysis

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/vibe-expr/internal/expression"
)

// ErrNotYetAnalyzed is returned when summary statistics are requested
// before Run has succeeded.
var ErrNotYetAnalyzed = errors.New("analysis has not been run")

// SummaryStats holds the counts reported after an analysis run.
type SummaryStats struct {
	TotalGenes       int `yaml:"total_genes"`
	SignificantGenes int `yaml:"significant_genes"`
	Upregulated      int `yaml:"upregulated"`
	Downregulated    int `yaml:"downregulated"`
}

// Session holds one dataset and the most recent filter result.
type Session struct {
	ID uuid.UUID

	data        []expression.GeneRecord
	significant []expression.GeneRecord
	thresholds  expression.Thresholds
	analyzed    bool
	logger      *zap.Logger
}

// NewSession creates a session over records.
func NewSession(records []expression.GeneRecord) *Session {
	return &Session{
		ID:     uuid.New(),
		data:   records,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for info and debug messages.
func (s *Session) SetLogger(l *zap.Logger) {
	s.logger = l.With(zap.String("session", s.ID.String()))
}

// Run filters the dataset with th and stores the result, replacing any
// earlier result. On error the previous result is kept.
func (s *Session) Run(th expression.Thresholds) ([]expression.GeneRecord, error) {
	significant, err := expression.Filter(s.data, th)
	if err != nil {
		return nil, err
	}

	s.significant = significant
	s.thresholds = th
	s.analyzed = true

	s.logger.Info("analysis complete",
		zap.Int("genes", len(s.data)),
		zap.Int("significant", len(significant)),
		zap.Float64("p_threshold", th.PValue),
		zap.Float64("fc_threshold", th.FoldChange))

	return significant, nil
}

// Significant returns the result of the most recent Run.
func (s *Session) Significant() ([]expression.GeneRecord, error) {
	if !s.analyzed {
		return nil, ErrNotYetAnalyzed
	}
	return s.significant, nil
}

// Thresholds returns the thresholds used by the most recent Run.
func (s *Session) Thresholds() (expression.Thresholds, error) {
	if !s.analyzed {
		return expression.Thresholds{}, ErrNotYetAnalyzed
	}
	return s.thresholds, nil
}

// Summary counts input genes, significant genes, and significant genes by
// direction. Genes with a fold change of exactly 0 are in neither direction.
func (s *Session) Summary() (SummaryStats, error) {
	if !s.analyzed {
		return SummaryStats{}, ErrNotYetAnalyzed
	}

	stats := SummaryStats{
		TotalGenes:       len(s.data),
		SignificantGenes: len(s.significant),
	}
	for _, r := range s.significant {
		switch {
		case r.FoldChange > 0:
			stats.Upregulated++
		case r.FoldChange < 0:
			stats.Downregulated++
		}
	}
	return stats, nil
}
