package octopus

import (
	"encoding/json"
	"strings"
)

// Kind names a space-level collection endpoint.
type Kind string

const (
	KindProjects            Kind = "projects"
	KindEnvironments        Kind = "environments"
	KindTenants             Kind = "tenants"
	KindChannels            Kind = "channels"
	KindRunbooks            Kind = "runbooks"
	KindMachines            Kind = "machines"
	KindAccounts            Kind = "accounts"
	KindCertificates        Kind = "certificates"
	KindFeeds               Kind = "feeds"
	KindLifecycles          Kind = "lifecycles"
	KindWorkerPools         Kind = "workerpools"
	KindMachinePolicies     Kind = "machinepolicies"
	KindTagSets             Kind = "tagsets"
	KindProjectGroups       Kind = "projectgroups"
	KindLibraryVariableSets Kind = "libraryvariablesets"
)

// AllKinds lists every collection a general query may draw on.
var AllKinds = []Kind{
	KindProjects, KindEnvironments, KindTenants, KindChannels, KindRunbooks, KindMachines,
	KindAccounts, KindCertificates, KindFeeds, KindLifecycles, KindWorkerPools,
	KindMachinePolicies, KindTagSets, KindProjectGroups, KindLibraryVariableSets,
}

var kindLabels = map[Kind]string{
	KindProjects:            "project",
	KindEnvironments:        "environment",
	KindTenants:             "tenant",
	KindChannels:            "channel",
	KindRunbooks:            "runbook",
	KindMachines:            "machine",
	KindAccounts:            "account",
	KindCertificates:        "certificate",
	KindFeeds:               "feed",
	KindLifecycles:          "lifecycle",
	KindWorkerPools:         "worker pool",
	KindMachinePolicies:     "machine policy",
	KindTagSets:             "tag set",
	KindProjectGroups:       "project group",
	KindLibraryVariableSets: "library variable set",
}

// Label is the singular, human readable name of the resource type.
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return strings.TrimSuffix(string(k), "s")
}

// Resource is any platform record. ID and Name are decoded for matching; the full
// payload is kept so it can be passed to the model unchanged.
type Resource struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var head struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	r.ID = head.ID
	r.Name = head.Name
	r.Raw = append(r.Raw[:0], data...)
	return nil
}

func (r Resource) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	return json.Marshal(map[string]string{"Id": r.ID, "Name": r.Name})
}

// EntityID and EntityName let resources feed the name resolver.
func (r Resource) EntityID() string   { return r.ID }
func (r Resource) EntityName() string { return r.Name }

// Field returns a top level string field from the raw payload.
func (r Resource) Field(name string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &fields); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(fields[name], &value); err != nil {
		return ""
	}
	return value
}

type Space struct {
	ID        string `json:"Id"`
	Name      string `json:"Name"`
	IsDefault bool   `json:"IsDefault"`
}

func (s Space) EntityID() string   { return s.ID }
func (s Space) EntityName() string { return s.Name }

type Project struct {
	ID                  string `json:"Id"`
	Name                string `json:"Name"`
	SpaceID             string `json:"SpaceId"`
	Description         string `json:"Description"`
	VariableSetID       string `json:"VariableSetId"`
	DeploymentProcessID string `json:"DeploymentProcessId"`
	ProjectGroupID      string `json:"ProjectGroupId"`
	LifecycleID         string `json:"LifecycleId"`
}

func (p Project) EntityID() string   { return p.ID }
func (p Project) EntityName() string { return p.Name }

type Channel struct {
	ID        string `json:"Id"`
	Name      string `json:"Name"`
	ProjectID string `json:"ProjectId"`
	IsDefault bool   `json:"IsDefault"`
}

type Release struct {
	ID           string `json:"Id"`
	Version      string `json:"Version"`
	ProjectID    string `json:"ProjectId"`
	ChannelID    string `json:"ChannelId"`
	ReleaseNotes string `json:"ReleaseNotes"`
	Assembled    string `json:"Assembled"`
}

type Deployment struct {
	ID            string `json:"Id"`
	Name          string `json:"Name"`
	ReleaseID     string `json:"ReleaseId"`
	ProjectID     string `json:"ProjectId"`
	EnvironmentID string `json:"EnvironmentId"`
	TenantID      string `json:"TenantId"`
	ChannelID     string `json:"ChannelId"`
	TaskID        string `json:"TaskId"`
	Created       string `json:"Created"`
	DeployedBy    string `json:"DeployedBy"`
}

type Task struct {
	ID                  string `json:"Id"`
	Name                string `json:"Name"`
	Description         string `json:"Description"`
	State               string `json:"State"`
	Duration            string `json:"Duration"`
	ErrorMessage        string `json:"ErrorMessage"`
	IsCompleted         bool   `json:"IsCompleted"`
	HasWarningsOrErrors bool   `json:"HasWarningsOrErrors"`
}

// LogElement is a single line of task output.
type LogElement struct {
	Category    string `json:"Category"`
	MessageText string `json:"MessageText"`
	OccurredAt  string `json:"OccurredAt"`
}

// ActivityLog is one node of the task activity tree.
type ActivityLog struct {
	Name        string        `json:"Name"`
	Status      string        `json:"Status"`
	LogElements []LogElement  `json:"LogElements"`
	Children    []ActivityLog `json:"Children"`
}

type TaskDetails struct {
	Task         Task          `json:"Task"`
	ActivityLogs []ActivityLog `json:"ActivityLogs"`
}

type Variable struct {
	ID          string              `json:"Id"`
	Name        string              `json:"Name"`
	Value       *string             `json:"Value"`
	Type        string              `json:"Type"`
	IsSensitive bool                `json:"IsSensitive"`
	Scope       map[string][]string `json:"Scope"`
}

// VariableSet holds variables with the names of the scopes they reference.
type VariableSet struct {
	ID          string                `json:"Id"`
	OwnerID     string                `json:"OwnerId"`
	Variables   []Variable            `json:"Variables"`
	ScopeValues map[string][]Resource `json:"ScopeValues"`
}

// ScopeNames returns a lookup from scope id to display name.
func (v VariableSet) ScopeNames() map[string]string {
	names := make(map[string]string)
	for _, values := range v.ScopeValues {
		for _, value := range values {
			names[value.ID] = value.Name
		}
	}
	return names
}

type PackageReference struct {
	Name      string `json:"Name"`
	PackageID string `json:"PackageId"`
	FeedID    string `json:"FeedId"`
}

type DeploymentAction struct {
	Name                 string             `json:"Name"`
	ActionType           string             `json:"ActionType"`
	IsDisabled           bool               `json:"IsDisabled"`
	Environments         []string           `json:"Environments"`
	ExcludedEnvironments []string           `json:"ExcludedEnvironments"`
	Channels             []string           `json:"Channels"`
	TenantTags           []string           `json:"TenantTags"`
	WorkerPoolID         string             `json:"WorkerPoolId"`
	Packages             []PackageReference `json:"Packages"`
	Properties           map[string]any     `json:"Properties"`
}

type DeploymentStep struct {
	Name               string             `json:"Name"`
	Condition          string             `json:"Condition"`
	StartTrigger       string             `json:"StartTrigger"`
	PackageRequirement string             `json:"PackageRequirement"`
	Actions            []DeploymentAction `json:"Actions"`
}

type DeploymentProcess struct {
	ID        string           `json:"Id"`
	ProjectID string           `json:"ProjectId"`
	Steps     []DeploymentStep `json:"Steps"`
}

// DashboardItem is one cell of the deployment dashboard.
type DashboardItem struct {
	ProjectID           string `json:"ProjectId"`
	EnvironmentID       string `json:"EnvironmentId"`
	TenantID            string `json:"TenantId"`
	ReleaseID           string `json:"ReleaseId"`
	ReleaseVersion      string `json:"ReleaseVersion"`
	DeploymentID        string `json:"DeploymentId"`
	TaskID              string `json:"TaskId"`
	State               string `json:"State"`
	Created             string `json:"Created"`
	CompletedTime       string `json:"CompletedTime"`
	HasWarningsOrErrors bool   `json:"HasWarningsOrErrors"`
	IsCurrent           bool   `json:"IsCurrent"`
}

type Dashboard struct {
	Projects     []Resource      `json:"Projects"`
	Environments []Resource      `json:"Environments"`
	Tenants      []Resource      `json:"Tenants"`
	Items        []DashboardItem `json:"Items"`
}

// RunbookRun is one execution of a runbook in an environment.
type RunbookRun struct {
	RunbookSnapshotName string `json:"RunbookSnapshotName"`
	TenantID            string `json:"TenantId"`
	TaskID              string `json:"TaskId"`
	State               string `json:"State"`
	Created             string `json:"Created"`
	CompletedTime       string `json:"CompletedTime"`
	HasWarningsOrErrors bool   `json:"HasWarningsOrErrors"`
}

type RunbookDashboard struct {
	Environments []Resource              `json:"Environments"`
	RunbookRuns  map[string][]RunbookRun `json:"RunbookRuns"`
}

type User struct {
	ID           string `json:"Id"`
	Username     string `json:"Username"`
	DisplayName  string `json:"DisplayName"`
	EmailAddress string `json:"EmailAddress"`
	IsService    bool   `json:"IsService"`
}
