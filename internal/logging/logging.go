// Package logging configures commonlog for graft and hands out named loggers.
package logging

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/graft/manifest"
)

const root = "graft"

// Configure applies the [log] section of graft.toml. An empty file logs
// to stderr.
func Configure(cfg manifest.Log) {
	var path *string
	if cfg.File != "" {
		path = &cfg.File
	}
	commonlog.Configure(cfg.Verbosity, path)
}

// Logger returns the logger for a graft subsystem, e.g. "engine".
func Logger(name string) commonlog.Logger {
	return commonlog.GetLogger(root + "." + name)
}
