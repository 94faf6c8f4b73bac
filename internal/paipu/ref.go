package paipu

import (
	"regexp"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

var majsoulUUID = regexp.MustCompile(`\d{6}-[\da-fA-F]{8}-[\da-fA-F]{4}-[\da-fA-F]{4}-[\da-fA-F]{4}-[\da-fA-F]{12}`)

// ParseMajsoulRef extracts the replay id from a Majsoul replay link or a bare id.
func ParseMajsoulRef(ref string) (string, error) {
	id := majsoulUUID.FindString(ref)
	if id == "" {
		return "", common.InvalidInputf("not a majsoul replay: %q", ref)
	}
	return id, nil
}
