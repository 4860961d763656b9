package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/geox/judge/internal/api"
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/problem"
)

type runFlags struct {
	ssotPath              string
	evidencePath          string
	projectID             string
	groupID               string
	spatialUnitID         string
	sensorIDs             []string
	scale                 string
	start                 string
	end                   string
	patchPath             string
	profile               string
	includeReferenceViews bool
	includeLBCandidates   bool
	output                string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Judge one evidence window",
	Long: `Run the judge pipeline once over a window of evidence read from a fact
fixture file and print the run output.

Window bounds accept epoch milliseconds, "now", "now-<duration>" (e.g. now-6h,
now-1d) or human-readable dates ("yesterday 08:00", "2024-05-01 12:00").`,
	Example: `  judge run --evidence facts.yaml --group g1 --scale group --start now-1h --end now
  judge run --evidence facts.yaml --sensor s1 --sensor s2 --scale sensor --start 1700000000000 --end 1700003600000 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun(cmd.Context(), cmd.OutOrStdout(), runOpts, time.Now())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.ssotPath, "ssot", "config/judge/default.json", "Path to the SSOT JSON document")
	f.StringVar(&runOpts.evidencePath, "evidence", "", "Path to the YAML/JSON fact fixture file")
	f.StringVar(&runOpts.projectID, "project", "", "Project id of the subject")
	f.StringVar(&runOpts.groupID, "group", "", "Group id anchor")
	f.StringVar(&runOpts.spatialUnitID, "spatial-unit", "", "Spatial unit id anchor")
	f.StringSliceVar(&runOpts.sensorIDs, "sensor", nil, "Sensor id anchor (repeatable)")
	f.StringVar(&runOpts.scale, "scale", "", "Scale label of the subject (e.g. group, sensor)")
	f.StringVar(&runOpts.start, "start", "now-1h", "Window start")
	f.StringVar(&runOpts.end, "end", "now", "Window end")
	f.StringVar(&runOpts.patchPath, "patch", "", "Path to an inline replace-only config patch (JSON)")
	f.StringVar(&runOpts.profile, "profile", judge.DefaultProfile, "Config profile label recorded in run_meta")
	f.BoolVar(&runOpts.includeReferenceViews, "include-reference-views", false, "Include reference views in the output")
	f.BoolVar(&runOpts.includeLBCandidates, "include-lb-candidates", false, "Include learning-backlog candidates in the output")
	f.StringVarP(&runOpts.output, "output", "o", "text", "Output format: text or json")

	_ = runCmd.MarkFlagRequired("evidence")
	_ = runCmd.MarkFlagRequired("scale")
}

func executeRun(ctx context.Context, w io.Writer, opts runFlags, now time.Time) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unsupported output format %q (want text or json)", opts.output)
	}
	in, err := buildRunInput(opts, now)
	if err != nil {
		return err
	}

	gov := governance.NewGovernor(governance.NewFileStore(opts.ssotPath))
	pipeline := judge.NewPipeline(gov, evidence.NewFileReader(opts.evidencePath))

	res, err := pipeline.Run(ctx, in)
	if err != nil {
		var rejected *governance.PatchRejectedError
		if errors.As(err, &rejected) {
			_ = writeJSON(w, api.PatchRejection{OK: false, SSOTHash: rejected.SSOTHash, Errors: rejected.Errors})
		}
		return err
	}

	if opts.output == "json" {
		return writeJSON(w, res.Output)
	}
	_, err = io.WriteString(w, renderRun(res.Output, terminalWidth(w)))
	return err
}

func buildRunInput(opts runFlags, now time.Time) (judge.RunInput, error) {
	start, err := api.ParseTimestampMs(opts.start, "start", now)
	if err != nil {
		return judge.RunInput{}, err
	}
	end, err := api.ParseTimestampMs(opts.end, "end", now)
	if err != nil {
		return judge.RunInput{}, err
	}

	in := judge.RunInput{
		SubjectRef: problem.SubjectRef{
			ProjectID:     opts.projectID,
			GroupID:       opts.groupID,
			SpatialUnitID: opts.spatialUnitID,
			SensorIDs:     opts.sensorIDs,
		},
		Scale:  opts.scale,
		Window: problem.Window{StartTs: start, EndTs: end},
		Options: judge.RunOptions{
			IncludeReferenceViews: opts.includeReferenceViews,
			IncludeLBCandidates:   opts.includeLBCandidates,
			ConfigProfile:         opts.profile,
		},
	}

	if opts.patchPath != "" {
		patch, err := readJSONFile(opts.patchPath)
		if err != nil {
			return judge.RunInput{}, err
		}
		in.Options.ConfigPatch = patch
	}
	return in, in.Validate()
}

func readJSONFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse %q as JSON: %w", path, err)
	}
	return v, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
