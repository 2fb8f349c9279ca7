package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunTableName is the table that a RunRecorder writes.
const RunTableName = "run_info"

type runInfo struct {
	Property string
	Value    string
}

// A RunRecorder records how a simulation run was started and when it ended.
type RunRecorder struct {
	recorder DataRecorder
	entries  []runInfo
}

// NewRunRecorder creates the run table in recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	recorder.CreateTable(RunTableName, runInfo{})

	return &RunRecorder{recorder: recorder}
}

// Start records the start time and the command line.
func (r *RunRecorder) Start() {
	r.Set("Start Time", now())
	r.Set("Command", strings.Join(os.Args, " "))

	if wd, err := os.Getwd(); err == nil {
		r.Set("Working Directory", wd)
	}
}

// Set records a property of the run, such as the seed or the configuration
// file.
func (r *RunRecorder) Set(property, value string) {
	r.entries = append(r.entries, runInfo{Property: property, Value: value})
}

// End writes the recorded properties along with the end time.
func (r *RunRecorder) End() {
	r.Set("End Time", now())

	for _, entry := range r.entries {
		r.recorder.InsertData(RunTableName, entry)
	}

	r.entries = nil

	r.recorder.Flush()
}

func now() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
