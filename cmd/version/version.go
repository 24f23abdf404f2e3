// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Overridden via ldflags.
var (
	Version    = "unknown-version"
	GitCommit  = "unknown-commit"
	BuildTime  = "unknown-buildtime"
	APIVersion = "v1"
)

// commit falls back to the VCS revision stamped by the Go toolchain.
func commit() string {
	if !strings.HasPrefix(GitCommit, "unknown") {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return GitCommit
}

func BuildInfo() string {
	var builder strings.Builder
	_, _ = fmt.Fprintln(&builder, "ReelSense:\t", Version)
	_, _ = fmt.Fprintln(&builder, "API version:\t", APIVersion)
	_, _ = fmt.Fprintln(&builder, "Go version:\t", runtime.Version())
	_, _ = fmt.Fprintln(&builder, "Git commit:\t", commit())
	_, _ = fmt.Fprintln(&builder, "Built:\t\t", BuildTime)
	_, _ = fmt.Fprintf(&builder, "OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return builder.String()
}
