package search

import (
	"log/slog"

	"github.com/poiesic/groundwork/core"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to inspect each leg and the fused result.
type RetrievalMonitor interface {
	Start(query string, k int)
	AfterSemanticLeg(hits []core.Hit, err error)
	AfterLexicalLeg(hits []core.Hit)
	Finish(results []core.FusedHit)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                  {}
func (n *noopMonitor) AfterSemanticLeg(_ []core.Hit, _ error) {}
func (n *noopMonitor) AfterLexicalLeg(_ []core.Hit)           {}
func (n *noopMonitor) Finish(_ []core.FusedHit)               {}

// LogMonitor logs each retrieval stage at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ RetrievalMonitor = (*LogMonitor)(nil)

func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger}
}

func (m *LogMonitor) Start(query string, k int) {
	m.logger.Debug("retrieval started", "query", query, "k", k)
}

func (m *LogMonitor) AfterSemanticLeg(hits []core.Hit, err error) {
	if err != nil {
		m.logger.Debug("semantic leg failed", "err", err)
		return
	}
	m.logger.Debug("semantic leg", "hits", len(hits), "ids", hitIDs(hits))
}

func (m *LogMonitor) AfterLexicalLeg(hits []core.Hit) {
	m.logger.Debug("lexical leg", "hits", len(hits), "ids", hitIDs(hits))
}

func (m *LogMonitor) Finish(results []core.FusedHit) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	m.logger.Debug("fused", "results", len(results), "ids", ids)
}

func hitIDs(hits []core.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}
