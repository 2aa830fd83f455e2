// Package main implements the gofhir-typegraph CLI tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gofhir/typegraph"
	"github.com/gofhir/typegraph/pkg/config"
	"github.com/gofhir/typegraph/pkg/logger"
	"github.com/gofhir/typegraph/pkg/model"
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gofhir-typegraph",
		Short:         "Compile FHIR releases into type graphs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error, none)")
	root.PersistentFlags().String("release", "", "Primary FHIR release (STU3, R4, R4B, R5)")
	root.PersistentFlags().String("source", "", "Release source: directory, .tgz package or name#version")
	root.PersistentFlags().String("output", string(OutputText), "Output format (text, json)")

	root.AddCommand(compileCmd())
	root.AddCommand(depsCmd())
	root.AddCommand(classesCmd())
	root.AddCommand(valueSetsCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if release, _ := cmd.Flags().GetString("release"); release != "" {
		cfg.Release = release
		cfg.DefaultRelease = release
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.Source = source
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func outputFormat(cmd *cobra.Command) (OutputFormat, error) {
	out, _ := cmd.Flags().GetString("output")
	switch OutputFormat(strings.ToLower(out)) {
	case OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", out)
}

// run builds a generator from cfg and compiles every configured release.
func run(cmd *cobra.Command, cfg *config.Config) ([]*typegraph.Result, error) {
	l, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	logger.SetDefault(l)

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, typegraph.WithLogger(l.Zerolog()))

	gen, err := typegraph.New(opts...)
	if err != nil {
		return nil, err
	}
	return gen.Run(cmd.Context())
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the configured releases and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			results, err := run(cmd, cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == OutputJSON {
				var out []summaryOutput
				for _, res := range results {
					out = append(out, newSummaryOutput(res))
				}
				return writeJSON(w, out)
			}
			showIssues, _ := cmd.Flags().GetBool("issues")
			for _, res := range results {
				fmt.Fprintln(w, res.Summary())
				if !showIssues {
					continue
				}
				for _, i := range res.Graph.Issues {
					fmt.Fprintf(w, "  %s\n", i)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("issues", false, "List the non-fatal findings of each release")
	return cmd
}

// summaryOutput is the JSON form of a release summary.
type summaryOutput struct {
	Release     string         `json:"release"`
	FHIRVersion string         `json:"fhirVersion"`
	Module      string         `json:"module"`
	Fragments   int            `json:"fragments"`
	Classes     int            `json:"classes"`
	Kinds       map[string]int `json:"kinds"`
	Profiles    int            `json:"profiles"`
	Writable    int            `json:"writable"`
	ValueSets   int            `json:"valueSets"`
	CodeSystems int            `json:"codeSystems"`
	Warnings    int            `json:"warnings"`
	Issues      []issueOutput  `json:"issues,omitempty"`
	Duration    string         `json:"duration"`
}

type issueOutput struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	ID          string `json:"id"`
	Fragment    string `json:"fragment"`
	Path        string `json:"path,omitempty"`
	Diagnostics string `json:"diagnostics"`
}

func newSummaryOutput(res *typegraph.Result) summaryOutput {
	s := res.Summary()
	kinds := make(map[string]int, len(s.Kinds))
	for k, n := range s.Kinds {
		kinds[k.String()] = n
	}
	out := summaryOutput{
		Release:     s.Release.String(),
		FHIRVersion: s.FHIRVersion,
		Module:      s.ModulePath,
		Fragments:   s.Fragments,
		Classes:     s.Classes,
		Kinds:       kinds,
		Profiles:    s.Profiles,
		Writable:    s.Writable,
		ValueSets:   s.ValueSets,
		CodeSystems: s.CodeSystems,
		Warnings:    s.Warnings,
		Duration:    res.Duration.String(),
	}
	for _, i := range res.Graph.Issues {
		out.Issues = append(out.Issues, issueOutput{
			Severity:    string(i.Severity),
			Code:        string(i.Code),
			ID:          string(i.ID),
			Fragment:    i.Fragment,
			Path:        i.Path,
			Diagnostics: i.Diagnostics,
		})
	}
	return out
}

func depsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Write the dependency manifest of every release as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Emit.Dependencies = true
			results, err := run(cmd, cfg)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				w := cmd.OutOrStdout()
				for i, res := range results {
					if i > 0 {
						fmt.Fprintln(w, "---")
					}
					if err := res.Manifest.Encode(w); err != nil {
						return err
					}
				}
				return nil
			}

			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}
			for _, res := range results {
				path := filepath.Join(out, "dependencies-"+strings.ToLower(res.Target.Release.String())+".yaml")
				if err := res.Manifest.WriteFile(path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().String("out", "", "Directory receiving one dependencies-<release>.yaml per release")
	return cmd
}

func classesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the compiled classes, optionally of one kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			var kinds []model.ClassKind
			if name, _ := cmd.Flags().GetString("kind"); name != "" {
				k, ok := model.ParseKindName(strings.ToLower(name))
				if !ok {
					return fmt.Errorf("unknown class kind %q", name)
				}
				kinds = append(kinds, k)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			results, err := run(cmd, cfg)
			if err != nil {
				return err
			}

			out := make(map[string][]classOutput)
			w := cmd.OutOrStdout()
			for _, res := range results {
				classes := res.Graph.Classes
				if len(kinds) > 0 {
					classes = res.Graph.ClassesOfKind(kinds...)
				}
				release := res.Target.Release.String()
				for _, c := range classes {
					if format == OutputText {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", release, c.Name, c.Kind, c.Superclass)
						continue
					}
					out[release] = append(out[release], classOutput{
						Name:       c.Name,
						Kind:       c.Kind.String(),
						Superclass: c.Superclass,
						Abstract:   c.Abstract,
						Properties: len(c.Properties),
					})
				}
			}
			if format == OutputJSON {
				return writeJSON(w, out)
			}
			return nil
		},
	}
	cmd.Flags().String("kind", "", "Class kind (resource, complex-type, primitive-type, logical, other)")
	return cmd
}

type classOutput struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Superclass string `json:"superclass,omitempty"`
	Abstract   bool   `json:"abstract,omitempty"`
	Properties int    `json:"properties"`
}

func valueSetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "valuesets",
		Short: "List the compiled code systems and value sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			results, err := run(cmd, cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, res := range results {
				release := res.Target.Release.String()
				for _, cs := range res.Graph.CodeSystems {
					fmt.Fprintf(w, "%s\tCodeSystem\t%s\t%d codes\n", release, cs.URL, len(cs.Codes))
				}
				for _, vs := range res.Graph.ValueSets {
					state := "complete"
					if !vs.Complete {
						state = "partial"
					}
					fmt.Fprintf(w, "%s\tValueSet\t%s\t%d codes\t%s\n", release, vs.URL, len(vs.Codes), state)
				}
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version and supported releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "gofhir-typegraph %s\n", typegraph.Version)
			for _, r := range typegraph.Releases() {
				fmt.Fprintf(w, "  %-5s %s\n", r, r.CorePackage())
			}
			return nil
		},
	}
}
