package queue

import (
	"sync/atomic"
	"time"
)

// StatsCollector collects processing counters using atomic operations.
// It is shared by the processor, rate limiter path, and the control API.
type StatsCollector struct {
	processed         atomic.Int64
	errors            atomic.Int64
	rateLimited       atomic.Int64
	dropped           atomic.Int64
	commandsExecuted  atomic.Int64
	mediaTransactions atomic.Int64
	aiResponses       atomic.Int64

	startTime time.Time
}

// NewStatsCollector creates a new statistics collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{startTime: time.Now()}
}

// RecordProcessed records one fully handled message.
func (sc *StatsCollector) RecordProcessed() { sc.processed.Add(1) }

// RecordError records a dispatch failure.
func (sc *StatsCollector) RecordError() { sc.errors.Add(1) }

// RecordRateLimited records a throttled message.
func (sc *StatsCollector) RecordRateLimited() { sc.rateLimited.Add(1) }

// RecordDropped records a message skipped for missing chat context.
func (sc *StatsCollector) RecordDropped() { sc.dropped.Add(1) }

// RecordCommand records a command handler execution.
func (sc *StatsCollector) RecordCommand() { sc.commandsExecuted.Add(1) }

// RecordMediaTransaction records a media delivery attempt.
func (sc *StatsCollector) RecordMediaTransaction() { sc.mediaTransactions.Add(1) }

// RecordAIResponse records an AI-generated reply.
func (sc *StatsCollector) RecordAIResponse() { sc.aiResponses.Add(1) }

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	Processed         int64         `json:"processed"`
	Errors            int64         `json:"errors"`
	RateLimited       int64         `json:"rate_limited"`
	Dropped           int64         `json:"dropped"`
	CommandsExecuted  int64         `json:"commands_executed"`
	MediaTransactions int64         `json:"media_transactions"`
	AIResponses       int64         `json:"ai_responses"`
	Uptime            time.Duration `json:"uptime"`
}

// Snapshot returns the current counters.
func (sc *StatsCollector) Snapshot() Stats {
	return Stats{
		Processed:         sc.processed.Load(),
		Errors:            sc.errors.Load(),
		RateLimited:       sc.rateLimited.Load(),
		Dropped:           sc.dropped.Load(),
		CommandsExecuted:  sc.commandsExecuted.Load(),
		MediaTransactions: sc.mediaTransactions.Load(),
		AIResponses:       sc.aiResponses.Load(),
		Uptime:            time.Since(sc.startTime),
	}
}
