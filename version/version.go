package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X".
var (
	NAME     = "pullwatch"
	VERSION  = "unknown"
	REVISION = "HEAD"
	BUILTAT  = "now"
)

// String is the multi-line banner printed by `pullwatch version`.
func String() string {
	version := ""
	version += fmt.Sprintf("Name:        %s\n", NAME)
	version += fmt.Sprintf("Version:     %s\n", VERSION)
	version += fmt.Sprintf("Git hash:    %s\n", REVISION)
	version += fmt.Sprintf("Built:       %s\n", BUILTAT)
	version += fmt.Sprintf("Golang:      %s\n", runtime.Version())
	version += fmt.Sprintf("OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return version
}
