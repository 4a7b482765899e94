package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/causelist"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"github.com/JustJay7/tribunal-registry/internal/registry"
	"github.com/spf13/cobra"
)

var errInvalidRows = errors.New("no valid rows in input")

func newImportCmd() *cobra.Command {
	var file, store, policy string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a cause list JSON array into a store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			name, err := database.ParseStoreName(store)
			if err != nil {
				return err
			}
			if policy == "" {
				policy = e.cfg.DuplicateHearingPolicy
			}
			hp, err := importer.ParseHearingPolicy(policy)
			if err != nil {
				return err
			}

			body, err := readInput(file)
			if err != nil {
				return err
			}

			v := importer.NewValidator(e.cfg.DefaultPlaceOfFiling, e.cfg.MaxImportBatch)
			records, invalid, err := v.ValidatePayload(body)
			if err != nil {
				return err
			}
			for _, ve := range invalid {
				e.log.Warn("Row rejected", "index", ve.Index, "errors", strings.Join(ve.Errors, "; "))
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: %d rejected", errInvalidRows, len(invalid))
			}

			db, err := e.stores.Get(name)
			if err != nil {
				return err
			}
			summary, err := importer.NewPipeline(db, e.log,
				importer.WithHearingPolicy(hp),
				importer.WithStoreName(name),
			).ImportBatch(cmd.Context(), records, importer.Skipped(len(invalid)))
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "batch %s: imported %d, skipped %d, failed %d\n",
					summary.BatchID, summary.Imported, len(invalid), len(summary.Failed))
				for _, f := range summary.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  row %d %s: %s\n", f.Row, f.CaseNo, f.Reason)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "Cause list JSON file, - for stdin")
	cmd.Flags().StringVar(&store, "store", "staging", "Target store: staging or main")
	cmd.Flags().StringVar(&policy, "policy", "", "Duplicate hearing policy: reject, skip or update (default from DUPLICATE_HEARING_POLICY)")
	return cmd
}

func newPromoteCmd() *cobra.Command {
	var caseNos []string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Copy staged cases into the main store",
		Long:  "Copies the given cases, or every staged case flagged is_detail_present, with their hearings into the main store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			svc := registry.NewService(e.stores, cache.NewCache(e.cfg.CacheSize, e.cfg.CacheTTL), e.log)
			summary, err := svc.Promote(cmd.Context(), caseNos)
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "promoted %d of %d\n", summary.Promoted, summary.Requested)
				for _, f := range summary.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", f.CaseNo, f.Reason)
				}
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&caseNos, "case", nil, "Case number to promote, repeatable")
	return cmd
}

func newCauseListCmd() *cobra.Command {
	var date, format, out, store string

	cmd := &cobra.Command{
		Use:   "causelist",
		Short: "Export the cause list of a hearing date",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			name, err := database.ParseStoreName(store)
			if err != nil {
				return err
			}

			svc := registry.NewService(e.stores, cache.NewCache(e.cfg.CacheSize, e.cfg.CacheTTL), e.log)
			list, err := causelist.Build(cmd.Context(), svc, name, date, e.cfg.RegistryName)
			if err != nil {
				return err
			}

			var data []byte
			switch strings.ToLower(format) {
			case "json":
				data, err = json.MarshalIndent(list, "", "  ")
			case "xlsx":
				buf, werr := causelist.WriteExcel(list)
				if werr != nil {
					return werr
				}
				data = buf.Bytes()
			case "html":
				data, err = causelist.RenderHTML(list)
			case "pdf":
				r := causelist.NewRenderer(e.cfg, e.log)
				defer r.Close()
				data, err = r.RenderPDF(cmd.Context(), list)
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			e.log.Info("Cause list written", "file", out, "entries", len(list.Entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Hearing date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, xlsx, html or pdf")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&store, "store", "main", "Store to read: staging or main")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema of both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			e.log.Info("Database migrations completed successfully",
				"staging", e.cfg.StagingDatabasePath,
				"main", e.cfg.MainDatabasePath,
			)
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
