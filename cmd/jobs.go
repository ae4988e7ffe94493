package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/store"
)

var (
	jobsOrg    string
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List import jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Store.ListJobs(cmd.Context(), jobsOrg, store.JobFilter{
			Status: model.JobStatus(jobsStatus),
			Limit:  jobsLimit,
		})
		if err != nil {
			return err
		}

		for _, j := range jobs {
			candidates := 0
			if j.Result != nil {
				candidates = len(j.Result.Candidates)
			}
			fmt.Printf("%s  %-12s  %-11s  sources=%d  candidates=%d  %s\n",
				j.ID, j.Status, j.Mode, len(j.Sources), candidates,
				j.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Print one job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		j, err := env.Store.GetJob(cmd.Context(), args[0], jobsOrg)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	},
}

func init() {
	jobsCmd.PersistentFlags().StringVar(&jobsOrg, "org", "default", "organization ID")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "max jobs to list")
	jobsCmd.AddCommand(jobsGetCmd)
	rootCmd.AddCommand(jobsCmd)
}
