package config

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X seedrelay/internal/config.version=1.2.3 \
//	    -X seedrelay/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X seedrelay/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Default values are used during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// BuildInfo holds build-time metadata injected via ldflags. These values are
// NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NewBuildInfo constructs a BuildInfo from the linker-injected global
// variables. It is called once during initialization to populate the
// Config.Build field.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
