package commands

import (
	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/pkg/credvault"
)

// Options carries the global flags into each command constructor.
type Options struct {
	ConfigFile string
	User       string
	Logger     *logging.Logger
}

// Service builds the service described by the configured file. Each command
// invocation constructs its own; the CLI is one-shot by nature.
func (o *Options) Service() (*credvault.Service, error) {
	return credvault.NewFromConfigFile(o.ConfigFile)
}
