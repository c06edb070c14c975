package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-radar/internal/types"
)

func TestDetectRemote(t *testing.T) {
	tests := []struct {
		texts []string
		want  types.RemoteStatus
	}{
		{[]string{"Remote"}, types.RemoteYes},
		{[]string{"Remote - US"}, types.RemoteYes},
		{[]string{"Work from anywhere"}, types.RemoteYes},
		{[]string{"Berlin", "Fully distributed team"}, types.RemoteYes},
		{[]string{"Hybrid remote"}, types.RemoteNo},
		{[]string{"Not remote"}, types.RemoteNo},
		{[]string{"Non-remote role"}, types.RemoteNo},
		{[]string{"London (In office 3 days)"}, types.RemoteNo},
		{[]string{"Remote", "On-site in Austin"}, types.RemoteNo},
		{[]string{"Berlin"}, types.RemoteUnknown},
		{[]string{""}, types.RemoteUnknown},
		{nil, types.RemoteUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectRemote(tt.texts...), "%q", tt.texts)
	}
}
