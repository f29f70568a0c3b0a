package yard

import "time"

// StatusEntry records a single status change on a truck or loading.
// History is append-only; the newest entry reflects the record's
// current status.
type StatusEntry struct {
	Status    string            `json:"status"`           // Status at this point in time
	Timestamp time.Time         `json:"timestamp"`        // When the change happened
	Detail    map[string]string `json:"detail,omitempty"` // Free-form extras (waybill, reject reason)
}

// LastTimestamp returns the timestamp of the newest entry, or the zero
// time when the history is empty.
func LastTimestamp(history []StatusEntry) time.Time {
	if len(history) == 0 {
		return time.Time{}
	}
	return history[len(history)-1].Timestamp
}

// appendEntry adds a status entry stamped at now.
func appendEntry(history []StatusEntry, status string, now time.Time, detail map[string]string) []StatusEntry {
	return append(history, StatusEntry{
		Status:    status,
		Timestamp: now,
		Detail:    detail,
	})
}
