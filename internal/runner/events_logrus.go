package runner

import (
	"time"

	"github.com/distr1/builder/pb"
	"github.com/sirupsen/logrus"
)

// LogrusEventSink formats every spec.md §6 event as a structured logrus
// entry instead of the human-facing text a terminal UI would render; the
// core itself never does that formatting (see EventSink's doc comment).
// Grounded on internal/cache.ActionCache's own log.WithFields pattern.
type LogrusEventSink struct {
	Log *logrus.Entry
}

// NewLogrusEventSink wraps log (or a default logger, if nil) for use as a
// Runner's EventSink.
func NewLogrusEventSink(log *logrus.Logger) *LogrusEventSink {
	if log == nil {
		log = logrus.New()
	}
	return &LogrusEventSink{Log: log.WithField("component", "events")}
}

func (s *LogrusEventSink) ActionStarted(targetID, actionType string) {
	s.Log.WithFields(logrus.Fields{
		"event":       "action_started",
		"target":      targetID,
		"action_type": actionType,
	}).Debug("action started")
}

func (s *LogrusEventSink) ActionCompleted(targetID, actionType string, status string, duration time.Duration, cacheStatus string) {
	entry := s.Log.WithFields(logrus.Fields{
		"event":        "action_completed",
		"target":       targetID,
		"action_type":  actionType,
		"status":       status,
		"duration_ms":  duration.Milliseconds(),
		"cache_status": cacheStatus,
	})
	if status == "failed" {
		entry.Warn("action completed")
		return
	}
	entry.Info("action completed")
}

func (s *LogrusEventSink) CacheHit(targetID string, key string) {
	s.Log.WithFields(logrus.Fields{
		"event":  "cache_hit",
		"target": targetID,
		"key":    key,
	}).Debug("cache hit")
}

func (s *LogrusEventSink) CacheMiss(targetID string, key string) {
	s.Log.WithFields(logrus.Fields{
		"event":  "cache_miss",
		"target": targetID,
		"key":    key,
	}).Debug("cache miss")
}

func (s *LogrusEventSink) SandboxViolation(targetID string, kind string, path string, message string) {
	s.Log.WithFields(logrus.Fields{
		"event":  "sandbox_violation",
		"target": targetID,
		"kind":   kind,
		"path":   path,
	}).Warn(message)
}

func (s *LogrusEventSink) GraphExtended(discoveringTargetID string, newNodeCount int) {
	s.Log.WithFields(logrus.Fields{
		"event":          "graph_extended",
		"discovered_by":  discoveringTargetID,
		"new_node_count": newNodeCount,
	}).Info("graph extended")
}

func (s *LogrusEventSink) BuildSummary(summary *pb.BuildSummary) {
	entry := s.Log.WithFields(logrus.Fields{
		"event":     "build_summary",
		"succeeded": summary.GetSucceeded(),
		"failed":    summary.GetFailed(),
		"cached":    summary.GetCached(),
		"skipped":   summary.GetSkipped(),
	})
	if summary.GetFailed() == 0 {
		entry.Info("build summary")
		return
	}
	entry.Warn("build summary")
	for _, f := range summary.GetFailures() {
		s.Log.WithFields(logrus.Fields{
			"event":      "build_failure",
			"target":     f.GetTargetId(),
			"code":       f.GetCode(),
			"hint":       f.GetRemediationHint(),
		}).Error(f.GetMessage())
	}
}

var _ EventSink = (*LogrusEventSink)(nil)
