package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/compliance"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ruleEntry is one rule as printed by the rules command.
type ruleEntry struct {
	analyzer.Rule `yaml:",inline"`
	Deduction     int                 `json:"deduction" yaml:"deduction"`
	References    map[string][]string `json:"references,omitempty" yaml:"references,omitempty"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the detection rules",
	Long: `List every detection rule with its severity, score weight, guideline and
framework references. --framework keeps only rules mapped to that framework.`,
	Example: `  seca-markup rules
  seca-markup rules --framework owasp-top10 --format json
  seca-markup rules --list-frameworks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		framework, _ := cmd.Flags().GetString("framework")
		listFrameworks, _ := cmd.Flags().GetBool("list-frameworks")

		if listFrameworks {
			return printFrameworks(cmd.OutOrStdout(), format)
		}
		return runRules(cmd.OutOrStdout(), format, framework)
	},
}

func init() {
	rulesCmd.Flags().String("format", defaultRulesFormat, "output format (table, json, yaml)")
	rulesCmd.Flags().String("framework", "", "only rules mapped to this framework (cwe, owasp-top10, asvs)")
	rulesCmd.Flags().Bool("list-frameworks", false, "list the supported compliance frameworks")
}

func runRules(out io.Writer, format, framework string) error {
	framework = strings.ToLower(strings.TrimSpace(framework))
	if framework != "" && !compliance.IsSupported(framework) {
		return fmt.Errorf("unknown framework %q (supported: %s)", framework, strings.Join(frameworkIDs(), ", "))
	}

	entries := collectRules(framework)
	switch strings.ToLower(format) {
	case "table", "":
		printRulesTable(out, entries, framework)
		return nil
	case "json":
		return writeIndentedJSON(out, entries)
	case "yaml", "yml":
		return yaml.NewEncoder(out).Encode(entries)
	default:
		return &UnsupportedFormatError{Format: format, Supported: []string{"table", "json", "yaml"}}
	}
}

func collectRules(framework string) []ruleEntry {
	var entries []ruleEntry
	for _, rule := range analyzer.Rules() {
		var refs map[string][]string
		if m := compliance.GetMappingForRule(rule.ID); m != nil && len(m.Frameworks) > 0 {
			refs = m.Frameworks
		}
		if framework != "" {
			if len(refs[framework]) == 0 {
				continue
			}
		}
		entries = append(entries, ruleEntry{Rule: rule, Deduction: rule.Deduction(), References: refs})
	}
	return entries
}

func printRulesTable(out io.Writer, entries []ruleEntry, framework string) {
	refColumn := compliance.FrameworkCWE
	if framework != "" {
		refColumn = framework
	}

	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tSEVERITY\tWEIGHT\tFAMILY\t%s\n", strings.ToUpper(refColumn))
	for _, e := range entries {
		weight := fmt.Sprintf("%d", e.Deduction)
		if e.PerMatch {
			weight += "/match"
		}
		refs := strings.Join(e.References[refColumn], ", ")
		if refs == "" {
			refs = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, formatSeverityWithColor(e.Severity), weight, e.Family, refs)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%d rules\n", len(entries))
}

func printFrameworks(out io.Writer, format string) error {
	frameworks := compliance.SupportedFrameworks()
	switch strings.ToLower(format) {
	case "json":
		return writeIndentedJSON(out, frameworks)
	case "yaml", "yml":
		return yaml.NewEncoder(out).Encode(frameworks)
	}

	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVERSION\tRULES")
	for _, f := range frameworks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", f.ID, f.Name, f.Version, len(compliance.GetRulesForFramework(f.ID)))
	}
	return tw.Flush()
}

func frameworkIDs() []string {
	var ids []string
	for _, f := range compliance.SupportedFrameworks() {
		ids = append(ids, f.ID)
	}
	return ids
}

func writeIndentedJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
