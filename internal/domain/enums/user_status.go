package enums

// UserStatus tracks reachability of the chat recipient. A blocked user is
// skipped by the scheduler until the status is reset externally.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)
