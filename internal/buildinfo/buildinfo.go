// Package buildinfo exposes version stamps set with -ldflags -X.
package buildinfo

import "runtime/debug"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info returns the stamps, filling an empty commit from the VCS data the Go
// toolchain embeds.
func Info() map[string]string {
    commit := Commit
    if commit == "" {
        commit = vcsRevision()
    }
    return map[string]string{
        "version": Version,
        "commit":  commit,
        "builtAt": BuiltAt,
    }
}

// String is the one-line form printed by the CLI.
func String() string {
    i := Info()
    s := i["version"]
    if i["commit"] != "" {
        s += " (" + i["commit"] + ")"
    }
    return s
}

func vcsRevision() string {
    bi, ok := debug.ReadBuildInfo()
    if !ok {
        return ""
    }
    for _, s := range bi.Settings {
        if s.Key == "vcs.revision" {
            if len(s.Value) > 12 {
                return s.Value[:12]
            }
            return s.Value
        }
    }
    return ""
}
