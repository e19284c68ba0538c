package benchmark

import (
	"fmt"
	"time"

	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/util"
)

const keySuffixLength = 8

// NewObjectSpecs creates count specs whose keys combine a nanosecond timestamp, the index and
// a random suffix, so keys never repeat within a race.
func NewObjectSpecs(prefix string, count int, sizeBytes int64) []*objectprovider.ObjectSpec {
	now := time.Now().UnixNano()
	specs := make([]*objectprovider.ObjectSpec, count)
	for i := range specs {
		specs[i] = &objectprovider.ObjectSpec{
			Key:       fmt.Sprintf("%s%d-%d-%s", prefix, now, i, util.Randstring(keySuffixLength)),
			SizeBytes: sizeBytes,
		}
	}
	return specs
}

func Keys(specs []*objectprovider.ObjectSpec) []string {
	keys := make([]string, len(specs))
	for i, spec := range specs {
		keys[i] = spec.Key
	}
	return keys
}
