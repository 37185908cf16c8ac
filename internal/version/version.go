package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

const serviceName = "wawtransit"

// Info is the static metadata served by the version endpoint.
type Info struct {
	Version string `json:"version"`
}

var (
	once sync.Once
	info Info
)

// Get resolves the build version once per process lifetime.
func Get() Info {
	once.Do(func() {
		info = Info{Version: resolve()}
	})
	return info
}

// UserAgent identifies this service on outbound requests to the transit
// agency's endpoints.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", serviceName, Get().Version)
}

func resolve() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, setting := range bi.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			return setting.Value[:8]
		}
	}
	return "dev"
}
