package redisx

import "fmt"

const ns = "cinehold:v1"

func KeyShowSummary(showID int64) string {
	return fmt.Sprintf("%s:show:%d:summary", ns, showID)
}

func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemBooking(showID int64, userID, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s:%s", ns, showID, userID, idemKey)
}

func KeyReaperLock() string {
	return ns + ":lock:reaper"
}

func ChannelShowsChanged() string {
	return ns + ":shows:changed"
}
