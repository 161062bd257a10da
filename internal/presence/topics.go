package presence

// TopicRecompute carries presence recompute jobs. Every connect/disconnect
// enqueues one; the aggregator coalesces bursts into a single broadcast.
const TopicRecompute = "presence.recompute"

// RecomputeJob is the payload of a recompute message. The aggregator only
// needs the signal, but the fields make queue traffic debuggable.
type RecomputeJob struct {
	Type         string `json:"type"` // "connect" or "disconnect"
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}
