package syncstatus

// MessageType is the kind of a background sync message.
type MessageType string

const (
	MsgSyncStarted    MessageType = "SYNC_STARTED"
	MsgSyncCompleted  MessageType = "SYNC_COMPLETED"
	MsgSyncFailed     MessageType = "SYNC_FAILED"
	MsgPendingChanges MessageType = "PENDING_CHANGES"
)

// Message is a report from the background syncer.
type Message struct {
	Type  MessageType `json:"type"`
	Count int         `json:"count,omitempty"`
	Error string      `json:"error,omitempty"`
}
