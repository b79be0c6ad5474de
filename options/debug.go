package options

import (
	"log/slog"

	"github.com/fogfish/opts"
)

// Debug controls diagnostic behavior: log verbosity and plan dumps. The
// zero value disables everything beyond info-level logging.
type Debug struct {
	logLevel   slog.Level
	saveGraphs bool
	graphDir   string
	namePrefix string
}

var (
	// LogLevel sets the slog level the runtime logs at.
	LogLevel = opts.ForName[Debug, slog.Level]("logLevel")
	// SaveGraphs enables writing compiled plans as JSON files.
	SaveGraphs = opts.ForName[Debug, bool]("saveGraphs")
	// GraphDir sets the directory plan dumps are written to.
	GraphDir = opts.ForName[Debug, string]("graphDir")
	// NamePrefix prefixes dump file names, handy when several modules share
	// a dump directory.
	NamePrefix = opts.ForName[Debug, string]("namePrefix")
)

// NewDebug builds debug options. Defaults: info logging, no dumps, dumps
// rooted in the working directory when enabled without a directory.
func NewDebug(options ...opts.Option[Debug]) (Debug, error) {
	d := Debug{
		logLevel: slog.LevelInfo,
		graphDir: ".",
	}
	if err := opts.Apply(&d, options); err != nil {
		return Debug{}, err
	}
	return d, nil
}

func (d Debug) LogLevel() slog.Level { return d.logLevel }
func (d Debug) SaveGraphs() bool     { return d.saveGraphs }
func (d Debug) GraphDir() string     { return d.graphDir }
func (d Debug) NamePrefix() string   { return d.namePrefix }
