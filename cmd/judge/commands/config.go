package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/geox/judge/internal/api"
	"github.com/geox/judge/internal/governance"
)

var (
	configSSOTPath   string
	configOutput     string
	configPatchFile  string
	configPatchApply bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and patch the judge SSOT document",
}

var configManifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the editable-field manifest of the SSOT",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeManifest(cmd.Context(), cmd.OutOrStdout(), configSSOTPath, configOutput)
	},
}

var configHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print the content hash of the SSOT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ssot, err := governance.LoadSSOT(configSSOTPath)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), ssot.Hash)
		return err
	},
}

var configPatchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Validate a replace-only patch against the SSOT, optionally committing it",
	Long: `Validate a patch file against the current SSOT manifest and print the
resulting effective hash. The file holds either a bare patch
({patch_version, base, ops}) or a full request envelope ({base, patch}).
With --commit the effective document is written back to --ssot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executePatch(cmd.Context(), cmd.OutOrStdout(), configSSOTPath, configPatchFile, configPatchApply)
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configSSOTPath, "ssot", "config/judge/default.json", "Path to the SSOT JSON document")

	configManifestCmd.Flags().StringVarP(&configOutput, "output", "o", "json", "Output format: json or yaml")

	configPatchCmd.Flags().StringVar(&configPatchFile, "file", "", "Path to the patch JSON file")
	configPatchCmd.Flags().BoolVar(&configPatchApply, "commit", false, "Write the patched document back to --ssot")
	_ = configPatchCmd.MarkFlagRequired("file")

	configCmd.AddCommand(configManifestCmd, configHashCmd, configPatchCmd)
}

func executeManifest(ctx context.Context, w io.Writer, ssotPath, output string) error {
	gov := governance.NewGovernor(governance.NewFileStore(ssotPath))
	manifest, err := gov.Manifest(ctx)
	if err != nil {
		return err
	}

	switch output {
	case "json":
		return writeJSON(w, manifest)
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q (want json or yaml)", output)
}

func executePatch(ctx context.Context, w io.Writer, ssotPath, patchPath string, commit bool) error {
	raw, err := readJSONFile(patchPath)
	if err != nil {
		return err
	}

	gov := governance.NewGovernor(governance.NewFileStore(ssotPath))
	result, err := gov.SubmitPatch(ctx, patchEnvelope(raw, commit))
	if err != nil {
		var rejected *governance.PatchRejectedError
		if errors.As(err, &rejected) {
			errs := rejected.Errors
			if errs == nil {
				errs = []governance.PatchError{}
			}
			_ = writeJSON(w, api.PatchRejection{OK: false, SSOTHash: rejected.SSOTHash, Errors: errs})
		}
		return err
	}
	return writeJSON(w, result)
}

// patchEnvelope wraps a bare patch into a request envelope. An existing
// envelope keeps its base; dryRun always follows commit.
func patchEnvelope(raw any, commit bool) any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if _, isEnvelope := obj["patch"]; isEnvelope {
		out := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			out[k] = v
		}
		out["dryRun"] = !commit
		return out
	}
	return map[string]any{
		"base":   map[string]any{"ssot_hash": governance.PatchBaseHash(raw)},
		"patch":  raw,
		"dryRun": !commit,
	}
}
