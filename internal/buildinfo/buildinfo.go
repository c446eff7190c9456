// Package buildinfo exposes version data injected at link time:
//
//	go build -ldflags "-X .../internal/buildinfo.BuildVersion=v1.2.3 ..."
package buildinfo

import (
	"fmt"
	"io"
)

var (
	BuildVersion string = "N/A"
	BuildDate    string = "N/A"
	BuildCommit  string = "N/A"
)

// PrintBuildData writes the build stamp to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", BuildVersion)
	fmt.Fprintf(w, "Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "Build commit: %s\n", BuildCommit)
}
