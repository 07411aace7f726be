package cmd

import (
	"strings"
	"testing"

	"github.com/smazurov/streamrelay/internal/relay"
	"github.com/smazurov/streamrelay/internal/relay/store"
)

func TestValidateFileAcceptsGoodConfig(t *testing.T) {
	file := store.File{
		Streams: map[string]relay.StreamSpec{
			"cam": {Role: relay.RolePull, InputURL: "rtsp://host/cam"},
			"out": {Role: relay.RolePush, OutputURL: "rtmp://host/live"},
		},
		Forwards: map[string]relay.ForwardSpec{
			"fwd": {PullID: "cam", PushID: "out"},
		},
	}
	if problems := validateFile(file); len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
}

func TestValidateFileReportsProblems(t *testing.T) {
	file := store.File{
		Streams: map[string]relay.StreamSpec{
			"cam":    {Role: relay.RolePull, InputURL: "rtsp://host/cam"},
			"broken": {Role: relay.RolePull},
		},
		Forwards: map[string]relay.ForwardSpec{
			"missing-push": {PullID: "cam", PushID: "nope"},
			"no-refs":      {},
			"wrong-role":   {PullID: "cam", PushID: "cam"},
		},
	}

	problems := validateFile(file)
	if len(problems) == 0 {
		t.Fatal("expected problems")
	}
	joined := strings.Join(problems, "\n")
	for _, want := range []string{
		`stream "broken"`,
		`push stream "nope" not found`,
		`pull_id and push_id are required`,
		`stream "cam" is not a push stream`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("problems missing %q:\n%s", want, joined)
		}
	}
}
