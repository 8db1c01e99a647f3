// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	UserID        string          `json:"user_id"`
	Action        string          `json:"action"`
	ResourceType  string          `json:"resource_type,omitempty"`
	ResourceID    string          `json:"resource_id,omitempty"`
	AccessGranted bool            `json:"access_granted"`
	ChangeDetails json.RawMessage `json:"change_details,omitempty"`
}
