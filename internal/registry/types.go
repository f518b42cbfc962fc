package registry

// Status is the lifecycle of a backend project.
type Status string

const (
	StatusMonitoring Status = "monitoring"
	StatusStopped    Status = "stopped"
)

// Mode is the notification mode of a backend project.
type Mode string

const (
	ModeSilent      Mode = "silent"
	ModeInteractive Mode = "interactive"
)

// Project is one backend project as last read by Refresh.
type Project struct {
	UUID          string   `json:"uuid" yaml:"uuid"`
	Name          string   `json:"name" yaml:"name"`
	Status        Status   `json:"status" yaml:"status"`
	Mode          Mode     `json:"mode" yaml:"mode"`
	Path          string   `json:"path" yaml:"path"`
	OutputTargets []string `json:"output_targets" yaml:"output_targets"` // index 0 is the primary output
	WatchTargets  []string `json:"watch_targets" yaml:"watch_targets"`
}

// PrimaryOutput returns the first output target, or "".
func (p Project) PrimaryOutput() string {
	if len(p.OutputTargets) == 0 {
		return ""
	}
	return p.OutputTargets[0]
}

// Stats counts monitoring projects by mode.
type Stats struct {
	Monitoring int `json:"monitoring"`
	Silent     int `json:"silent"`
}

// Backend commands.
const (
	CmdListProjects         = "list_projects"
	CmdStartSentry          = "start_sentry"
	CmdStopSentry           = "stop_sentry"
	CmdAddProject           = "add_project"
	CmdDeleteProject        = "delete_project"
	CmdEditProject          = "edit_project"
	CmdManualUpdate         = "manual_update"
	CmdListIgnoreCandidates = "list_ignore_candidates"
	CmdListIgnorePatterns   = "list_ignore_patterns"
	CmdUpdateIgnorePatterns = "update_ignore_patterns"
	CmdAddTarget            = "add_target"
	CmdRemoveTarget         = "remove_target"
)

// Editable project fields accepted by EditProject.
const (
	FieldName       = "name"
	FieldPath       = "path"
	FieldOutputFile = "output_file"
)

var editableFields = map[string]bool{
	FieldName:       true,
	FieldPath:       true,
	FieldOutputFile: true,
}
