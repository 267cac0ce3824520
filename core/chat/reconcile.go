package chat

import "sort"

// Reconcile merges server history with optimistic local sends that may not
// have been acknowledged yet. Pure function.
//
// Rules:
//   - a pending message whose ClientRef matches a server message is dropped:
//     the server copy wins (it carries the authoritative ID and timestamp);
//   - remaining pending messages are kept so an in-flight send stays visible;
//   - the merged list is ordered by SentAt, then ID, so both devices converge
//     on the same ordering regardless of arrival order.
func Reconcile(server, pending []Message) []Message {
	acked := make(map[string]struct{}, len(server))
	for _, msg := range server {
		if msg.ClientRef != "" {
			acked[msg.ClientRef] = struct{}{}
		}
	}

	merged := make([]Message, 0, len(server)+len(pending))
	merged = append(merged, server...)
	for _, msg := range pending {
		if msg.ClientRef != "" {
			if _, ok := acked[msg.ClientRef]; ok {
				continue
			}
		}
		merged = append(merged, msg)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].SentAt.Equal(merged[j].SentAt) {
			return merged[i].SentAt.Before(merged[j].SentAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
