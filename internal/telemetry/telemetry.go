// Package telemetry tracks interface-level counters and optionally
// pushes them to InfluxDB. It generalizes the teacher's metrics.Metrics
// (flow/node/API counters) to this node's frame- and message-plane
// counters, keeping the same atomic-counter-plus-snapshot shape and
// Prometheus text rendering, with InfluxDB push as the new sink.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// Counters holds this node's running totals. All fields are updated via
// atomic ops so handlers on the executor's single thread and the
// periodic flush goroutine never race.
type Counters struct {
	FramesSent         int64
	FramesReceived      int64
	MessagesDispatched int64
	ArbitrationRestarts int64
	DatagramTimeouts    int64

	startTime time.Time
}

// New returns zeroed Counters with startTime set to now.
func New() *Counters {
	return &Counters{startTime: time.Now()}
}

func (c *Counters) IncFramesSent()         { atomic.AddInt64(&c.FramesSent, 1) }
func (c *Counters) IncFramesReceived()     { atomic.AddInt64(&c.FramesReceived, 1) }
func (c *Counters) IncMessagesDispatched() { atomic.AddInt64(&c.MessagesDispatched, 1) }
func (c *Counters) IncArbitrationRestarts() { atomic.AddInt64(&c.ArbitrationRestarts, 1) }
func (c *Counters) IncDatagramTimeouts()    { atomic.AddInt64(&c.DatagramTimeouts, 1) }

// Snapshot is an immutable, JSON/monitor-friendly view of Counters at a
// point in time.
type Snapshot struct {
	FramesSent          int64   `json:"frames_sent"`
	FramesReceived       int64   `json:"frames_received"`
	MessagesDispatched  int64   `json:"messages_dispatched"`
	ArbitrationRestarts int64   `json:"arbitration_restarts"`
	DatagramTimeouts    int64   `json:"datagram_timeouts"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
}

// Snapshot reads all counters consistently enough for reporting; exact
// cross-counter atomicity is not required since each is independent.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FramesSent:          atomic.LoadInt64(&c.FramesSent),
		FramesReceived:       atomic.LoadInt64(&c.FramesReceived),
		MessagesDispatched:  atomic.LoadInt64(&c.MessagesDispatched),
		ArbitrationRestarts: atomic.LoadInt64(&c.ArbitrationRestarts),
		DatagramTimeouts:    atomic.LoadInt64(&c.DatagramTimeouts),
		UptimeSeconds:       int64(time.Since(c.startTime).Seconds()),
	}
}

// Prometheus renders a Snapshot in the same hand-rolled exposition
// format the teacher's metrics package used, under this node's
// namespace.
func (s Snapshot) Prometheus() string {
	return fmt.Sprintf(`# HELP lccnode_frames_sent_total Total CAN frames sent
# TYPE lccnode_frames_sent_total counter
lccnode_frames_sent_total %d

# HELP lccnode_frames_received_total Total CAN frames received
# TYPE lccnode_frames_received_total counter
lccnode_frames_received_total %d

# HELP lccnode_messages_dispatched_total Total OpenLCB messages dispatched to handlers
# TYPE lccnode_messages_dispatched_total counter
lccnode_messages_dispatched_total %d

# HELP lccnode_arbitration_restarts_total Total alias arbitration restarts
# TYPE lccnode_arbitration_restarts_total counter
lccnode_arbitration_restarts_total %d

# HELP lccnode_datagram_timeouts_total Total datagram sends that timed out unacknowledged
# TYPE lccnode_datagram_timeouts_total counter
lccnode_datagram_timeouts_total %d

# HELP lccnode_uptime_seconds Node uptime in seconds
# TYPE lccnode_uptime_seconds gauge
lccnode_uptime_seconds %d
`, s.FramesSent, s.FramesReceived, s.MessagesDispatched, s.ArbitrationRestarts, s.DatagramTimeouts, s.UptimeSeconds)
}

// InfluxConfig configures the optional InfluxDB push sink. A zero-value
// Config (empty URL) means telemetry stays in-process only.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxPusher periodically writes a Counters snapshot to InfluxDB.
type InfluxPusher struct {
	log      *zap.Logger
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	nodeID   string
}

// NewInfluxPusher connects to InfluxDB per cfg. Callers should check
// cfg.URL != "" before calling; an empty URL is the local-only case and
// has no pusher.
func NewInfluxPusher(log *zap.Logger, nodeID string, cfg InfluxConfig) *InfluxPusher {
	if log == nil {
		log = zap.NewNop()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxPusher{
		log:      log,
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		nodeID:   nodeID,
	}
}

// Push writes one snapshot as a single InfluxDB point.
func (p *InfluxPusher) Push(ctx context.Context, s Snapshot) error {
	point := influxdb2.NewPointWithMeasurement("lccnode_counters").
		AddTag("node_id", p.nodeID).
		AddField("frames_sent", s.FramesSent).
		AddField("frames_received", s.FramesReceived).
		AddField("messages_dispatched", s.MessagesDispatched).
		AddField("arbitration_restarts", s.ArbitrationRestarts).
		AddField("datagram_timeouts", s.DatagramTimeouts).
		SetTime(time.Now())

	if err := p.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("telemetry: influx write: %w", err)
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (p *InfluxPusher) Close() {
	p.client.Close()
}
