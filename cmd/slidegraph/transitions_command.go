package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chicogong/slidegraph/pkg/transitions"
)

var directionSuffixes = []string{"left", "right", "up", "down", "tl", "tr", "bl", "br"}

// displayName spells an engine effect for people: "slideleft" becomes
// "Slide Left".
func displayName(effect string) string {
	name := effect
	for _, suffix := range directionSuffixes {
		if base, ok := strings.CutSuffix(effect, suffix); ok && len(base) > 1 {
			if suffix == "left" || suffix == "right" || suffix == "up" || suffix == "down" {
				name = base + " " + suffix
			} else {
				name = base + " " + strings.ToUpper(suffix)
			}
			break
		}
	}
	return cases.Title(language.English, cases.NoLower).String(name)
}

func newTransitionsCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "transitions",
		Short:       "List the transition effects edges may name",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Name    string `json:"name"`
				Display string `json:"display"`
				Effect  string `json:"effect"`
				Alias   bool   `json:"alias,omitempty"`
			}

			var entries []entry
			for _, name := range transitions.Names() {
				entries = append(entries, entry{Name: name, Display: displayName(name), Effect: name})
			}
			for alias, target := range transitions.Aliases() {
				entries = append(entries, entry{Name: alias, Display: displayName(target), Effect: target, Alias: true})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

			if jsonOut {
				return writeJSON(cmd, entries)
			}

			rows := make([][]string, len(entries))
			for i, e := range entries {
				effect := e.Effect
				if e.Alias {
					effect = "alias of " + e.Effect
				}
				rows[i] = []string{e.Name, e.Display, effect}
			}
			return writeRows(cmd.OutOrStdout(), []string{"Name", "Display", "Effect"}, rows, nil)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the catalogue as JSON")
	return cmd
}
