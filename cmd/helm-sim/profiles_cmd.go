package main

import (
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/config"
)

// runProfilesCmd implements `helm-sim profiles`: lists the settings
// profiles found in a directory.
func runProfilesCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("profiles", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir        string
		jsonOutput bool
	)
	cmd.StringVar(&dir, "profile-dir", ".", "Directory holding settings profiles")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	profiles, err := config.LoadAllProfiles(dir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	if jsonOutput {
		list := make([]*config.Profile, 0, len(names))
		for _, name := range names {
			list = append(list, profiles[name])
		}
		if err := writeJSON(stdout, list); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return 0
	}

	if len(names) == 0 {
		_, _ = fmt.Fprintf(stdout, "No profiles in %s\n", dir)
		return 0
	}
	for _, name := range names {
		p := profiles[name]
		s := p.Settings
		_, _ = fmt.Fprintf(stdout, "  %s%-12s%s %s/%s cap %s\n", ColorGreen, name, ColorReset, s.Stress, s.Autonomy, s.BudgetCap)
		if p.Description != "" {
			_, _ = fmt.Fprintf(stdout, "  %-12s %s%s%s\n", "", ColorGray, p.Description, ColorReset)
		}
	}
	return 0
}
