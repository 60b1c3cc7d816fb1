package config

// Linker-injected build metadata, set at compile time:
//
//	go build -ldflags "-X github.com/Beez1/bounceinsights/internal/config.version=1.2.3 \
//	    -X github.com/Beez1/bounceinsights/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X github.com/Beez1/bounceinsights/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
