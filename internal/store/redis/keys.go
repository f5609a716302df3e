package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixResult is the prefix for persisted check results
	KeyPrefixResult = "usercheck:result:"
	// KeyPrefixLatest points a username at its most recent check ID
	KeyPrefixLatest = "usercheck:latest:"
	// KeyPrefixUsage is the prefix for per-platform usage hashes
	KeyPrefixUsage = "usercheck:usage:"
	// KeyAllResults is the sorted set of check IDs scored by completion time
	KeyAllResults = "usercheck:results:all"
	// KeyUsagePlatforms is the set of platforms with usage counters
	KeyUsagePlatforms = "usercheck:usage:platforms"
)

// Usage hash fields
const (
	UsageTotal      = "total"
	UsageSuccessful = "successful"
	UsageTaken      = "taken"
	UsageAvailable  = "available"
)

// ResultKey takes a record ID, see RecordID.
func ResultKey(id string) string {
	return KeyPrefixResult + id
}

// RecordID is the storage identity of a result: the check ID followed by the
// lower-cased username. Display check IDs may collide across usernames
// checked in the same second.
func RecordID(checkID, username string) string {
	return checkID + ":" + strings.ToLower(username)
}

// LatestKey is case-insensitive on the username.
func LatestKey(username string) string {
	return KeyPrefixLatest + strings.ToLower(username)
}

func UsageKey(platform string) string {
	return KeyPrefixUsage + platform
}

func AllResultsKey() string {
	return KeyAllResults
}

// ExtractResultID extracts the check ID from a result key
func ExtractResultID(key string) (string, error) {
	if len(key) <= len(KeyPrefixResult) || !strings.HasPrefix(key, KeyPrefixResult) {
		return "", fmt.Errorf("invalid result key: %s", key)
	}
	return key[len(KeyPrefixResult):], nil
}
