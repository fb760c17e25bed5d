package buildinfo

import "runtime"

// Set at build time with -ldflags "-X".
var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
	GoVersion  string `json:"go_version,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/8b-is/feedgate",
		Service:    "feedgate",
		Version:    Version,
		CommitHash: CommitHash,
		GoVersion:  runtime.Version(),
	}
}

// UserAgent is sent by the CLI client.
func UserAgent() string {
	return "feedgate-cli/" + Version
}
