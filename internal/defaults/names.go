// Package defaults stores per-user default values and applies them when a query
// leaves an argument out.
package defaults

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	internalerrors "github.com/rcourtman/octopilot/internal/errors"
)

// Name is a case-folded default key.
type Name string

const (
	Space       Name = "space"
	Project     Name = "project"
	Environment Name = "environment"
	Tenant      Name = "tenant"
	Channel     Name = "channel"
)

// Names lists the defaults a user may set.
var Names = []Name{Channel, Environment, Project, Space, Tenant}

// Wildcard is the list filter value that matches everything.
const Wildcard = "<all>"

// ParseName folds raw and checks it is a known default.
func ParseName(raw string) (Name, error) {
	name := Name(cases.Fold().String(strings.TrimSpace(raw)))
	for _, known := range Names {
		if name == known {
			return name, nil
		}
	}
	return "", internalerrors.NewInvalidArgument("parse_default_name",
		fmt.Sprintf(`The default name %q is not valid. Use one of "channel", "environment", "project", "space", or "tenant".`, strings.TrimSpace(raw)))
}
