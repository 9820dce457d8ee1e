package version

// Set at build time with -ldflags "-X iceflux/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Built   = "unknown"
)

type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
}

func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Built: Built}
}

// UserAgent is sent to the media server on every status request.
func UserAgent() string {
	return "iceflux/" + Version
}
