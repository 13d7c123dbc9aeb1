package handlers

import (
	"strconv"
	"strings"
)

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseTaskID accepts only a literal digit string naming a positive id.
func parseTaskID(arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if !isDigits(arg) {
		return 0, false
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePage defaults to the first page when no argument is given.
func parsePage(arg string) (int, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 1, true
	}
	if !isDigits(arg) {
		return 0, false
	}
	page, err := strconv.Atoi(arg)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
