package core

// Importer is a saved configuration that authorizes and describes one import
// pipeline. The key acts as a bearer credential for the unauthenticated
// intake path; webhook settings decide whether lifecycle events leave the
// system at all.
type Importer struct {
	ID             string `db:"id" json:"id"`
	UserID         string `db:"user_id" json:"user_id"`
	Name           string `db:"name" json:"name"`
	Key            string `db:"key" json:"key"`
	WebhookEnabled bool   `db:"webhook_enabled" json:"webhook_enabled"`
	WebhookURL     string `db:"webhook_url" json:"webhook_url"`
}

// WebhookConfigured reports whether lifecycle webhooks may be constructed for
// jobs belonging to this importer. Both intake and the processor must check
// this independently since they run in different processes.
func (i *Importer) WebhookConfigured() bool {
	return i.WebhookEnabled && i.WebhookURL != ""
}
