package council

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X github.com/axiomesh/council.CurrentVersion=...".
var (
	CurrentVersion = "0.0.1"
	CurrentBranch  = "main"
	CurrentCommit  = ""
	BuildDate      = ""

	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)
