package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"courtavail/internal/model"
	"courtavail/internal/records"
	"courtavail/internal/report"
)

type parsedRecords struct {
	Records     []model.EventRecord `json:"records"`
	Diagnostics []model.Diagnostic  `json:"diagnostics,omitempty"`
}

func newParseCmd(configPath *string) *cobra.Command {
	var (
		from        string
		days        int
		showRecords bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Build a report from raw event lines (one per line, stdin when no file is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			raw, err := readLines(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if showRecords {
				recs, diags := records.Parse(raw)
				recs, normDiags := records.NormalizeDates(recs, a.loc)
				return enc.Encode(parsedRecords{Records: recs, Diagnostics: append(diags, normDiags...)})
			}

			var dates []time.Time
			switch {
			case from != "":
				start, err := time.ParseInLocation(time.DateOnly, from, a.loc)
				if err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
				dates = report.Horizon(start, days)
			default:
				// Without --from, report every date the input mentions.
				recs, _ := records.Parse(raw)
				recs, _ = records.NormalizeDates(recs, a.loc)
				dates = report.DatesOf(recs)
			}

			return enc.Encode(a.builder.BuildFromText(dates, raw))
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First date of the report (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 7, "Number of dates when --from is set")
	cmd.Flags().BoolVar(&showRecords, "records", false, "Print the parsed records instead of a report")
	return cmd
}

// readLines returns the non-empty lines of the named files, or of stdin
// when names is empty or "-".
func readLines(stdin io.Reader, names []string) ([]string, error) {
	if len(names) == 0 {
		names = []string{"-"}
	}

	var out []string
	for _, name := range names {
		r := stdin
		if name != "-" {
			f, err := os.Open(name)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				out = append(out, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return out, nil
}
