package agent

import (
	"strings"

	"github.com/rcourtman/octopilot/internal/ai/tools"
	"github.com/rcourtman/octopilot/internal/defaults"
)

// Tool names. The descriptions below are what the model routes on, so changing one
// changes which queries reach a tool.
const (
	ToolGeneralQuery           = "answer_general_query"
	ToolStepFeatures           = "answer_step_features"
	ToolProjectVariables       = "answer_project_variables"
	ToolProjectVariablesUsage  = "answer_project_variables_usage"
	ToolReleasesAndDeployments = "answer_releases_and_deployments"
	ToolLogs                   = "answer_logs"
	ToolMachines               = "answer_machines"
	ToolCertificates           = "answer_certificates"
	ToolDashboard              = "get_dashboard"
	ToolRunbookDashboard       = "get_runbook_dashboard"
	ToolOctolintUnusedProjects = "octolint_unused_projects"
	ToolSetDefault             = "set_default_value"
	ToolGetDefault             = "get_default_value"
	ToolRemoveDefaults         = "remove_default_value"
	ToolLogout                 = "logout"
	ToolCleanUpAllRecords      = "clean_up_all_records"
	ToolHelp                   = "provide_help"
	ToolHowTo                  = "how_to"
)

var (
	spaceProperty        = tools.StringProperty("The name of the space")
	projectsProperty     = tools.StringListProperty("The names of the projects")
	environmentsProperty = tools.StringListProperty("The names of the environments")
	tenantsProperty      = tools.StringListProperty("The names of the tenants")
)

func generalQuerySchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{
		"space":                 spaceProperty,
		"projects":              projectsProperty,
		"runbooks":              tools.StringListProperty("The names of the runbooks"),
		"targets":               tools.StringListProperty("The names of the deployment targets or machines"),
		"tenants":               tenantsProperty,
		"environments":          environmentsProperty,
		"channels":              tools.StringListProperty("The names of the channels"),
		"accounts":              tools.StringListProperty("The names of the accounts"),
		"certificates":          tools.StringListProperty("The names of the certificates"),
		"feeds":                 tools.StringListProperty("The names of the feeds"),
		"lifecycles":            tools.StringListProperty("The names of the lifecycles"),
		"worker_pools":          tools.StringListProperty("The names of the worker pools"),
		"machine_policies":      tools.StringListProperty("The names of the machine policies"),
		"tag_sets":              tools.StringListProperty("The names of the tag sets"),
		"project_groups":        tools.StringListProperty("The names of the project groups"),
		"library_variable_sets": tools.StringListProperty("The names of the library variable sets"),
		"releases":              tools.StringListProperty("The release versions"),
		"steps":                 tools.StringListProperty("The names of the deployment steps"),
		"variables":             tools.StringListProperty("The names of the variables"),
		"dates":                 tools.StringListProperty("Dates mentioned in the query"),
	})
}

func projectSchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{
		"space":    spaceProperty,
		"projects": projectsProperty,
	})
}

func variablesSchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{
		"space":     spaceProperty,
		"projects":  projectsProperty,
		"variables": tools.StringListProperty("The names of the variables"),
	})
}

func releasesSchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{
		"space":        spaceProperty,
		"projects":     projectsProperty,
		"environments": environmentsProperty,
		"tenants":      tenantsProperty,
		"dates":        tools.StringListProperty("Two dates bounding the deployments, such as 2024-01-01 and 2024-01-31"),
	})
}

func logsSchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{
		"space":        spaceProperty,
		"projects":     projectsProperty,
		"environments": environmentsProperty,
		"tenants":      tenantsProperty,
		"release":      tools.StringProperty("The release version"),
	})
}

func spaceSchema() tools.InputSchema {
	return tools.ObjectSchema(map[string]tools.PropertySchema{"space": spaceProperty})
}

// defaultNameProperty lists the valid names in the description rather than an enum so
// an unknown name reaches the handler and gets a readable answer.
func defaultNameProperty() tools.PropertySchema {
	names := make([]string, 0, len(defaults.Names))
	for _, name := range defaults.Names {
		names = append(names, `"`+string(name)+`"`)
	}
	return tools.StringProperty("The name of the default value, one of " + strings.Join(names, ", "))
}

func (a *Agent) buildCatalog() (*tools.Catalog[*Request], error) {
	catalog := tools.NewCatalog[*Request]()
	registered := []tools.RegisteredTool[*Request]{
		{
			Definition: tools.Tool{
				Name: ToolGeneralQuery,
				Description: "Answers a general query about Octopus resources such as projects, environments, tenants, " +
					"runbooks, targets, feeds, accounts, lifecycles and worker pools. " +
					"Example prompts: What are the projects in the space \"Default\"? List the environments of the space \"Default\".",
				InputSchema: generalQuerySchema(),
			},
			Handler: a.answerGeneralQuery,
		},
		{
			Definition: tools.Tool{
				Name: ToolStepFeatures,
				Description: "Answers questions about the steps and features of a project's deployment process. " +
					"Example prompts: What steps does the project \"Web\" have? Does the project \"Web\" use a script step?",
				InputSchema: projectSchema(),
			},
			Handler: a.answerStepFeatures,
		},
		{
			Definition: tools.Tool{
				Name: ToolProjectVariables,
				Description: "Answers questions about the variables defined by a project. " +
					"Example prompts: What are the variables of the project \"Web\"? What is the value of the variable \"Database.Name\"?",
				InputSchema: variablesSchema(),
			},
			Handler: a.answerProjectVariables,
		},
		{
			Definition: tools.Tool{
				Name: ToolProjectVariablesUsage,
				Description: "Answers questions about where project variables are used by the deployment process. " +
					"Example prompts: Which steps in the project \"Web\" use the variable \"Database.Name\"?",
				InputSchema: variablesSchema(),
			},
			Handler: a.answerProjectVariablesUsage,
		},
		{
			Definition: tools.Tool{
				Name: ToolReleasesAndDeployments,
				Description: "Answers questions about releases and deployments of a project, optionally filtered by environment, " +
					"tenant and a date range. Example prompts: What was the last release deployed to \"Production\"? " +
					"Which deployments of \"Web\" happened between 2024-01-01 and 2024-01-10?",
				InputSchema: releasesSchema(),
			},
			Handler: a.answerReleasesAndDeployments,
		},
		{
			Definition: tools.Tool{
				Name: ToolLogs,
				Description: "Answers questions about the logs of a deployment, such as why it failed. " +
					"Example prompts: Why did the last deployment of \"Web\" to \"Production\" fail? Print the logs of release 1.0.1.",
				InputSchema: logsSchema(),
			},
			Handler: a.answerLogs,
		},
		{
			Definition: tools.Tool{
				Name:        ToolMachines,
				Description: "Answers questions about deployment targets, also called machines. Example prompts: Which targets are in the environment \"Production\"? Is the target \"web-01\" healthy?",
				InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
					"space":        spaceProperty,
					"machines":     tools.StringListProperty("The names of the deployment targets"),
					"environments": environmentsProperty,
				}),
			},
			Handler: a.answerMachines,
		},
		{
			Definition: tools.Tool{
				Name:        ToolCertificates,
				Description: "Answers questions about certificates. Example prompts: When does the certificate \"Wildcard\" expire? List the certificates.",
				InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
					"space":        spaceProperty,
					"certificates": tools.StringListProperty("The names of the certificates"),
				}),
			},
			Handler: a.answerCertificates,
		},
		{
			Definition: tools.Tool{
				Name:        ToolDashboard,
				Description: "Displays the deployment dashboard of a space. Example prompts: Show the dashboard. Show the dashboard for the space \"Default\".",
				InputSchema: spaceSchema(),
			},
			Handler: a.getDashboard,
		},
		{
			Definition: tools.Tool{
				Name:        ToolRunbookDashboard,
				Description: "Displays the dashboard of a runbook. Example prompts: Show the runbook dashboard for runbook \"Backup\" in project \"Web\".",
				InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
					"space":   spaceProperty,
					"project": tools.StringProperty("The name of the project"),
					"runbook": tools.StringProperty("The name of the runbook"),
				}),
			},
			Handler: a.getRunbookDashboard,
		},
		{
			Definition: tools.Tool{
				Name:        ToolOctolintUnusedProjects,
				Description: "Checks for unused projects in a space. Example prompts: Check for unused projects in the space \"MySpace\". Find unused projects.",
				InputSchema: spaceSchema(),
			},
			Handler: a.octolintUnusedProjects,
		},
		{
			Definition: tools.Tool{
				Name:        ToolSetDefault,
				Description: "Saves a default value for the space, project, environment, tenant or channel used when a query does not name one. Example prompts: Set the default project to \"Web\".",
				InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
					"default_name":  defaultNameProperty(),
					"default_value": tools.StringProperty("The default value"),
				}, "default_name", "default_value"),
			},
			Handler: a.setDefaultValue,
		},
		{
			Definition: tools.Tool{
				Name:        ToolGetDefault,
				Description: "Returns a saved default value. Example prompts: What is the default project?",
				InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
					"default_name": defaultNameProperty(),
				}, "default_name"),
			},
			Handler: a.getDefaultValue,
		},
		{
			Definition: tools.Tool{
				Name:        ToolRemoveDefaults,
				Description: "Removes all saved default values. Example prompts: Remove my default values. Clear the defaults.",
				InputSchema: tools.ObjectSchema(nil),
			},
			Handler: a.removeDefaultValues,
		},
		{
			Definition: tools.Tool{
				Name:        ToolLogout,
				Description: "Signs the user out and forgets their Octopus server and API key. Example prompts: Log out. Sign out.",
				InputSchema: tools.ObjectSchema(nil),
			},
			Handler: a.logout,
		},
		{
			Definition: tools.Tool{
				Name:        ToolCleanUpAllRecords,
				Description: "Deletes every stored user record. Only administrators may do this. Example prompts: Clean up all records.",
				InputSchema: tools.ObjectSchema(nil),
			},
			Handler: a.cleanUpAllRecords,
		},
		{
			Definition: tools.Tool{
				Name:        ToolHelp,
				Description: "Explains what the assistant can do. Example prompts: Help. What can you do?",
				InputSchema: tools.ObjectSchema(nil),
			},
			Handler: a.provideHelp,
		},
	}
	for _, tool := range registered {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	catalog.SetFallback(a.howToTool(a.howTo))
	catalog.SetInvalid(tools.RegisteredTool[*Request]{
		Definition: tools.Tool{Name: ToolGeneralQuery, InputSchema: generalQuerySchema()},
		Handler:    a.answerGeneralQuery,
	})
	return catalog, nil
}

func (a *Agent) howToTool(handler tools.Handler[*Request]) tools.RegisteredTool[*Request] {
	return tools.RegisteredTool[*Request]{
		Definition: tools.Tool{
			Name: ToolHowTo,
			Description: "Answers questions about how to do something in Octopus using the documentation. " +
				"Example prompts: How do I create a runbook? How do I configure a tenant?",
			InputSchema: tools.ObjectSchema(map[string]tools.PropertySchema{
				"keywords": tools.StringListProperty("Keywords to search the documentation for"),
			}),
		},
		Handler: handler,
	}
}
