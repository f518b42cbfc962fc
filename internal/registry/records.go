package registry

import (
	"encoding/json"

	"github.com/gurisko/sentryctl/internal/bridge"
)

const (
	backendRunning = "running"
	backendMuting  = "muting"
)

// parseProjects converts a list_projects result into Projects. Elements that
// are not objects or lack a uuid or name are skipped.
func parseProjects(res bridge.Result) []Project {
	items := res.List()
	projects := make([]Project, 0, len(items))
	for _, item := range items {
		if p, ok := parseProject(item); ok {
			projects = append(projects, p)
		}
	}
	return projects
}

func parseProject(raw json.RawMessage) (Project, bool) {
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
		return Project{}, false
	}

	uuid := field(rec, "uuid")
	name := field(rec, "name")
	if uuid == "" || name == "" {
		return Project{}, false
	}

	// status and mode are derived independently from the same backend field
	status := field(rec, "status")
	p := Project{
		UUID:          uuid,
		Name:          name,
		Status:        StatusStopped,
		Mode:          ModeInteractive,
		Path:          field(rec, "path"),
		OutputTargets: stringList(rec["output_file"]),
		WatchTargets:  stringList(rec["target_files"]),
	}
	if status == backendRunning {
		p.Status = StatusMonitoring
	}
	if status == backendMuting {
		p.Mode = ModeSilent
	}
	return p, true
}

func field(rec map[string]json.RawMessage, key string) string {
	s, _ := bridge.Stringify(rec[key])
	return s
}

func stringList(raw json.RawMessage) []string {
	return bridge.JSONResult(raw).Strings()
}
