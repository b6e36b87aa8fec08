// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package version reports information about the running binary.
package version

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// Info describes a build of the program.
type Info struct {
	Name      string
	Version   string
	Commit    string
	Modified  bool
	GoVersion string
}

// String returns a multi-line, human-readable representation of i.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", i.Name, i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&sb, " (%s", i.Commit)
		if i.Modified {
			sb.WriteString(", modified")
		}
		sb.WriteString(")")
	}
	fmt.Fprintf(&sb, "\nbuilt with %s\n", i.GoVersion)
	return sb.String()
}

// Version returns build information for the running binary.
func Version() Info {
	info := Info{
		Name:      CmdName(),
		Version:   "devel",
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// CmdName returns the base name of the running executable.
func CmdName() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return strings.TrimSuffix(filepath.Base(exe), ".exe")
}
