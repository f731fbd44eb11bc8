package modules

import (
	"github.com/iota-uz/assignment-engine/modules/assignment"
	"github.com/iota-uz/assignment-engine/pkg/application"
)

// Assignment is exported so the entrypoint can manage the relay lifecycle
// after registration.
var Assignment = assignment.NewModule()

var BuiltInModules = []application.Module{
	Assignment,
}

func Load(app application.Application, externalModules ...application.Module) error {
	modules := make([]application.Module, 0, len(BuiltInModules)+len(externalModules))
	modules = append(modules, BuiltInModules...)
	modules = append(modules, externalModules...)
	return application.Load(app, modules...)
}
