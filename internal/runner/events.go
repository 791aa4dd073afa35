package runner

import (
	"time"

	"github.com/distr1/builder/pb"
)

// EventSink receives the structured events spec.md §6 names as the
// runner's produced interface. The core never formats these for humans;
// cmd/builder wires a logrus-backed sink (see internal/services).
type EventSink interface {
	ActionStarted(targetID, actionType string)
	ActionCompleted(targetID, actionType string, status string, duration time.Duration, cacheStatus string)
	CacheHit(targetID string, key string)
	CacheMiss(targetID string, key string)
	SandboxViolation(targetID string, kind string, path string, message string)
	GraphExtended(discoveringTargetID string, newNodeCount int)
	BuildSummary(summary *pb.BuildSummary)
}

// NopEventSink discards every event; useful as a default and in tests that
// don't assert on the event stream.
type NopEventSink struct{}

func (NopEventSink) ActionStarted(string, string)                                {}
func (NopEventSink) ActionCompleted(string, string, string, time.Duration, string) {}
func (NopEventSink) CacheHit(string, string)                                      {}
func (NopEventSink) CacheMiss(string, string)                                     {}
func (NopEventSink) SandboxViolation(string, string, string, string)              {}
func (NopEventSink) GraphExtended(string, int)                                   {}
func (NopEventSink) BuildSummary(*pb.BuildSummary)                               {}
