package internal

import (
	"fmt"
	"strconv"
	"time"
)

var (
	commitVersion string = "v0.1.0-dev" // Should be updated during build
	commitDate    string = ""           // commitDate in Epoch seconds (can be filled in during build)
)

// GetVersion - get version and commitDate depending on what is inserted
func GetVersion() string {
	msg := commitVersion
	if commitDate != "" {
		seconds, _ := strconv.Atoi(commitDate)
		t := time.Unix(int64(seconds), 0)
		msg += fmt.Sprintf(", date: %s", t.Format("2006-01-02"))
	}
	return msg
}
