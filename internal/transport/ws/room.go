package ws

import "github.com/google/uuid"

// RoomKey derives the conversation-room identifier for an unordered
// pair of users. Order independent: RoomKey(a, b) == RoomKey(b, a).
func RoomKey(a, b uuid.UUID) string {
	s1, s2 := a.String(), b.String()
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	return s1 + "-" + s2
}
