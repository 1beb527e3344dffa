package subscribe

import "log"

// logNotifyError reports a failed or timed-out send. The subscription is
// not proactively removed; the reaper observes closure eventually
// (spec.md §7 "Notification timeout").
func logNotifyError(topic string, conn ConnectionID, err error) {
	log.Printf("[Notifier %s] WARN: send to connection %s failed: %v", topic, conn, err)
}
