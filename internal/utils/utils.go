package utils

import (
	"bytes"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/xid"
)

// GenerateID returns a short sortable token used to correlate log lines for one request.
func GenerateID() string {
	return xid.New().String()
}

var commit = sync.OnceValue(func() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}

	return strings.TrimSpace(out.String())
})

func GetCommit() string {
	return commit()
}
