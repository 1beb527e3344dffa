package consensus

import "log"

// logInfof and logWarnf follow the teacher's "[Component nodeID] message"
// prefix convention (pkg/replication/raft.go, transport.go). Nothing in this
// package panics on a recoverable error (spec.md §7); these are the only two
// severities consensus logs at.
func logInfof(component, nodeID, format string, args ...any) {
	log.Printf("[%s %s] "+format, prependNode(component, nodeID, args)...)
}

func logWarnf(component, nodeID, format string, args ...any) {
	log.Printf("[%s %s] WARN: "+format, prependNode(component, nodeID, args)...)
}

func prependNode(component, nodeID string, args []any) []any {
	out := make([]any, 0, len(args)+2)
	out = append(out, component, nodeID)
	out = append(out, args...)
	return out
}
