package core

// WebhookEventType enumerates the lifecycle notifications an importer can
// subscribe to.
type WebhookEventType string

const (
	EventImportStarted   WebhookEventType = "import.started"
	EventImportCompleted WebhookEventType = "import.completed"
	EventImportFailed    WebhookEventType = "import.failed"
)

// Work function names registered with the queue consumer. A dispatched unit
// carries a name rather than a live handle so the consumer can run in a
// separate process.
const (
	WorkImportProcess = "import.process"
	WorkWebhookSend   = "webhook.send"
)
