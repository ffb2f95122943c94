// Package main is a lint tool for correlation and suppression rule
// files. It loads the files with the same code the pipeline uses, so a
// clean run here means a clean startup there.
package main

import (
	"flag"
	"fmt"
	"os"

	"vigil-siem/internal/config"
	"vigil-siem/internal/correlation"
)

var version = "dev"

func main() {
	var (
		rulesPath       string
		suppressionPath string
		showVersion     bool
	)
	flag.StringVar(&rulesPath, "rules", "", "Correlation rules YAML file")
	flag.StringVar(&suppressionPath, "suppression", "", "Suppression rules YAML file")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("vigil-rules %s\n", version)
		os.Exit(0)
	}

	if rulesPath == "" && suppressionPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vigil-rules -rules <file> [-suppression <file>]")
		os.Exit(2)
	}

	failed := false

	if rulesPath != "" {
		rcs, err := config.LoadRuleFile(rulesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", rulesPath, err)
			failed = true
		} else {
			rules, err := correlation.RulesFromConfig(rcs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", rulesPath, err)
				failed = true
			} else {
				enabled := 0
				kinds := map[correlation.RuleKind]int{}
				for _, r := range rules {
					if r.Enabled {
						enabled++
					}
					kinds[r.Kind]++
				}
				fmt.Printf("%s: %d rules (%d enabled)\n", rulesPath, len(rules), enabled)
				for kind, n := range kinds {
					fmt.Printf("  %-12s %d\n", kind, n)
				}
			}
		}
	}

	if suppressionPath != "" {
		rules, err := config.LoadSuppressionFile(suppressionPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", suppressionPath, err)
			failed = true
		} else {
			enabled := 0
			for _, r := range rules {
				if r.Enabled {
					enabled++
				}
			}
			fmt.Printf("%s: %d suppression rules (%d enabled)\n", suppressionPath, len(rules), enabled)
		}
	}

	if failed {
		os.Exit(1)
	}
}
