package sources

import (
	"regexp"

	"github.com/jonathan/job-radar/internal/types"
)

var (
	notRemoteRe = regexp.MustCompile(`(?i)\b(no[nt]?[\s-]remote|hybrid|on[\s-]?site|in[\s-]office|in[\s-]person)\b`)
	remoteRe    = regexp.MustCompile(`(?i)\b(remote|anywhere|work from home|wfh|distributed)\b`)
)

// DetectRemote infers the work mode from free text such as a location or a
// workplace label. Negative markers win over a bare "remote".
func DetectRemote(texts ...string) types.RemoteStatus {
	var remote bool
	for _, t := range texts {
		if t == "" {
			continue
		}
		if notRemoteRe.MatchString(t) {
			return types.RemoteNo
		}
		if remoteRe.MatchString(t) {
			remote = true
		}
	}
	if remote {
		return types.RemoteYes
	}
	return types.RemoteUnknown
}

// remoteFromBool maps an explicit API flag.
func remoteFromBool(remote bool) types.RemoteStatus {
	if remote {
		return types.RemoteYes
	}
	return types.RemoteNo
}
