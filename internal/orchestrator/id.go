package orchestrator

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// IDGenerator builds the display identifier of a check.
type IDGenerator func(username string, now time.Time) string

// LegacyID is "check_{unix}_{hash%10000}". Two checks of the same username
// within one second share an ID, and different usernames may collide.
func LegacyID(username string, now time.Time) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return fmt.Sprintf("check_%d_%04d", now.Unix(), h.Sum32()%10000)
}

// UUIDID is collision free.
func UUIDID(_ string, _ time.Time) string {
	return "check_" + uuid.NewString()
}

// IDGeneratorFor maps a configured scheme to its generator.
func IDGeneratorFor(scheme string) IDGenerator {
	if scheme == "uuid" {
		return UUIDID
	}
	return LegacyID
}
