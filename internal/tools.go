package internal

import (
	"fmt"
	"os/exec"
	"strings"
)

// ToolRequirement is an external binary the pipeline invokes
type ToolRequirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// ToolStatus reports whether a tool could be located
type ToolStatus struct {
	ToolRequirement
	Available bool
	Path      string
	Detail    string
}

// lookPath is replaced in tests
var lookPath = exec.LookPath

// PipelineTools lists the binaries needed for a run with the given config
func PipelineTools(config *Config) []ToolRequirement {
	return []ToolRequirement{
		{Name: "ffmpeg", Command: config.FFmpegPath, Description: "downloads streams and extracts audio"},
		{Name: "ffprobe", Command: config.FFprobePath, Description: "measures audio duration (file size estimate when missing)", Optional: true},
	}
}

// CheckTools looks up each requirement on PATH
func CheckTools(requirements []ToolRequirement) []ToolStatus {
	results := make([]ToolStatus, 0, len(requirements))
	for _, req := range requirements {
		status := ToolStatus{ToolRequirement: req}
		status.Command = strings.TrimSpace(req.Command)
		if status.Command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := lookPath(status.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// RequireTools fails with ErrToolNotFound for the first missing required tool
func RequireTools(statuses []ToolStatus) error {
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return wrapErr(ErrToolNotFound, fmt.Sprintf("%s: %s", s.Name, s.Detail), nil)
		}
	}
	return nil
}
