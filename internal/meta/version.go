package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Info describes the build context info for a substrate binary. Most of it
// is filled in by the Go linker, see the vars below.
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Branch    string `json:"branch"`
	BuildTime string `json:"buildTime"`
	Platform  string `json:"platform"`
	GoVersion string `json:"goVersion"`
	GoTag     string `json:"goTag,omitempty"`
}

// These will be filled in using the linker -X flag, e.g.
//
//	go build -ldflags "-X github.com/jrwilson/substrate/internal/meta.Version=1.2.0"
var (
	Version string

	// Build is the Git sha
	Build string

	Branch string

	// BuildTimeUTC is formatted year/month/day hour:min:sec
	BuildTimeUTC string

	// GoTag is the Go build tags, see https://golang.org/pkg/go/build/#hdr-Build_Constraints
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   orUnknown(Version),
		Build:     orUnknown(Build),
		Branch:    orUnknown(Branch),
		BuildTime: orUnknown(BuildTimeUTC),
		GoTag:     GoTag,
		Platform:  platform,
	}
}

func (i Info) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "substrate %s (%s", i.Version, i.Build)
	if i.Branch != "unknown" {
		fmt.Fprintf(&b, " on %s", i.Branch)
	}
	fmt.Fprintf(&b, ")\nbuilt %s with %s for %s", i.BuildTime, i.GoVersion, i.Platform)

	if i.GoTag != "" {
		fmt.Fprintf(&b, " tags %s", i.GoTag)
	}

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}
