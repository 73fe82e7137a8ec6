package cli

import (
	"fmt"
)

// VersionCmd shows version and upgrade information
type VersionCmd struct{}

// VersionOutput represents the JSON output of version
type VersionOutput struct {
	Type        string `json:"type"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	GoInstall   string `json:"go_install"`
	ReleasesURL string `json:"releases_url"`
}

const (
	goInstallCmd = "go install github.com/vburojevic/calltap/cmd/calltap@latest"
	releasesURL  = "https://github.com/vburojevic/calltap/releases"
)

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.jsonOutput() {
		return writeJSON(globals, VersionOutput{
			Type:        "version",
			Version:     Version,
			Commit:      Commit,
			GoInstall:   goInstallCmd,
			ReleasesURL: releasesURL,
		})
	}

	fmt.Fprintf(globals.Stdout, "calltap %s (%s)\n", Version, Commit)
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade via Go:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "For release notes, see:")
	fmt.Fprintf(globals.Stdout, "  %s\n", releasesURL)
	return nil
}
