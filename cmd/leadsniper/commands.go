package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/leadsniper/internal/model"
	"github.com/yangwenmai/leadsniper/internal/quality"
)

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process <file.json>",
	Short: "Process one lead or a batch of leads from a JSON file",
	Long: `Process one lead or a batch of leads from a JSON file and print the result.

The file holds either a single lead object or an array of lead objects.

Examples:
  leadsniper process lead.json
  leadsniper process leads.json --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, isBatch, err := readLeads(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if !isBatch {
			res, err := a.svc.Submit(ctx, batch[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		res, err := a.svc.SubmitBatch(ctx, batch, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate <file.json>",
	Short: "Score lead quality without running the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, isBatch, err := readLeads(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		v := quality.New(cfg.IntentKeywords)
		if !isBatch {
			return printJSON(cmd.OutOrStdout(), v.Validate(batch[0]))
		}
		reports := make([]model.ValidationReport, 0, len(batch))
		for _, l := range batch {
			reports = append(reports, v.Validate(l))
		}
		return printJSON(cmd.OutOrStdout(), reports)
	},
}

func init() {
	processCmd.Flags().Int("limit", 0, "process at most this many leads of a batch (0 = all)")
}

// readLeads loads a lead object or an array of leads from path.
func readLeads(path string) ([]model.RawLead, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, fmt.Errorf("%s is empty", path)
	}

	if data[0] == '[' {
		var batch []model.RawLead
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, false, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(batch) == 0 {
			return nil, false, fmt.Errorf("%s contains no leads", path)
		}
		return batch, true, nil
	}

	var lead model.RawLead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return []model.RawLead{lead}, false, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
