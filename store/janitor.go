package store

import (
	"log/slog"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
)

// sweep evicts terminal records whose terminal transition is older than the
// retention window. Non-terminal records are never evicted, regardless of
// age: losing in-flight work silently would break the caller's polling
// contract. Eviction is the only removal path besides Dispose.
func (s *Store) sweep() {
	s.mu.Lock()
	cutoff := s.now().Add(-s.cfg.Retention)
	var evicted []*prediction.Record
	for key, rec := range s.records {
		if !rec.Status.Terminal() {
			continue
		}
		if rec.TerminalAt == nil || rec.TerminalAt.After(cutoff) {
			continue
		}
		evicted = append(evicted, rec)
		delete(s.records, key)
	}
	s.mu.Unlock()

	if len(evicted) == 0 {
		return
	}

	for _, rec := range evicted {
		s.hooks.EmitPredictionEvicted(s.baseCtx, rec)
	}
	s.logger.Debug("expired predictions evicted", slog.Int("count", len(evicted)))
}
