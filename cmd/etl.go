package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
	"github.com/stroysmeta/normcat-cli/internal/store"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run and inspect catalog ETL jobs",
}

var etlRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL pipeline",
	Long: `Run the full extract-transform-load pipeline.

By default all enabled sources are collected. Use --source to restrict
the run to specific collectors (comma-separated).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "etl.run"))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "etl run: migrate")
		}

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}

		names := parseSourceFlag(cmd)
		log.Info("starting etl run", zap.Strings("sources", names))

		job, err := orch.Run(ctx, names)
		if err != nil {
			return eris.Wrap(err, "etl run")
		}

		printJob(job)
		if job.Status == model.JobFailed {
			return eris.Errorf("job %s failed", job.ID)
		}
		return nil
	},
}

var etlJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent ETL jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "etl jobs")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tLOADED\tSKIPPED\tINVALID\tERRORS")
		for i := range jobs {
			j := &jobs[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				j.ID, j.Status,
				j.StartTime.Format(time.RFC3339),
				j.Duration(time.Now()).Round(time.Second),
				j.RecordsLoaded, j.RecordsSkipped, j.RecordsInvalid, len(j.Errors),
			)
		}
		return w.Flush()
	},
}

var etlStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate ETL statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orch, err := buildOrchestrator(st)
		if err != nil {
			return err
		}

		stats, err := orch.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "etl stats")
		}

		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return eris.Wrap(err, "etl stats: marshal")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	etlRunCmd.Flags().String("source", "", "comma-separated collector names (e.g., fer,tssc)")
	etlJobsCmd.Flags().String("status", "", "filter by job status")
	etlJobsCmd.Flags().Int("limit", 20, "maximum jobs to list")
	etlCmd.AddCommand(etlRunCmd)
	etlCmd.AddCommand(etlJobsCmd)
	etlCmd.AddCommand(etlStatsCmd)
	rootCmd.AddCommand(etlCmd)
}

func parseSourceFlag(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("source")
	if raw == "" {
		return nil
	}
	names := strings.Split(raw, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names
}

func printJob(j *model.ETLJob) {
	fmt.Printf("Job %s: %s\n", j.ID, j.Status)
	fmt.Printf("  sources:   %s\n", strings.Join(j.Sources, ", "))
	fmt.Printf("  extracted: %d\n", j.RecordsExtracted)
	fmt.Printf("  valid:     %d\n", j.RecordsValid)
	fmt.Printf("  invalid:   %d\n", j.RecordsInvalid)
	fmt.Printf("  merged:    %d\n", j.RecordsMerged)
	fmt.Printf("  loaded:    %d\n", j.RecordsLoaded)
	fmt.Printf("  skipped:   %d\n", j.RecordsSkipped)
	fmt.Printf("  duration:  %s\n", j.Duration(time.Now()).Round(time.Millisecond))
	for _, e := range j.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}
