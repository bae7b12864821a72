package auth

import "strconv"

// Subjects are numeric user IDs carried as strings in the JWT `sub`
// claim, matching how the rest of the stack addresses users.

func formatSubject(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

func parseSubject(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
