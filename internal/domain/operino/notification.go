package operino

import "time"

// NotificationStatus is the provisioning outcome carried by a Notification.
type NotificationStatus string

// Notification statuses
const (
	NotificationSuccess NotificationStatus = "success"
	NotificationFailure NotificationStatus = "failure"
)

// Attachment is a generated document delivered alongside a notification.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Notification is the outcome event published for downstream consumers such
// as the email sender. It is never persisted.
type Notification struct {
	ID          string             `json:"id"`
	Status      NotificationStatus `json:"status"`
	TaskID      string             `json:"task_id"`
	OperinoID   int64              `json:"operino_id"`
	Domain      string             `json:"domain"`
	Recipient   string             `json:"recipient"`
	Config      map[string]string  `json:"config,omitempty"`
	Error       string             `json:"error,omitempty"`
	Attachments []Attachment       `json:"attachments,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
