package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBuildCmd создаёт группу команд для управления builds.
func NewBuildCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Manage builds",
	}

	cmd.AddCommand(
		newBuildListCmd(clientFn, outputFn),
		newBuildStartCmd(clientFn, outputFn),
		newBuildShowCmd(clientFn, outputFn),
		newBuildCancelCmd(clientFn, outputFn),
		newBuildJobsCmd(clientFn, outputFn),
		newBuildArtifactsCmd(clientFn, outputFn),
	)

	return cmd
}

func newBuildListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipelineID string
	var status string
	var branch string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			builds, err := client.ListBuilds(ListBuildsOpts{
				PipelineID: pipelineID,
				Status:     status,
				Branch:     branch,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE_ID", "NUMBER", "BRANCH", "STATUS", "TRIGGER", "CREATED"}
			rows := make([][]string, len(builds))
			for i, b := range builds {
				rows[i] = []string{b.ID, b.PipelineID, strconv.Itoa(b.Number), b.Branch, b.Status, b.Trigger, b.CreatedAt}
			}

			out.Print(headers, rows, builds)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().StringVar(&branch, "branch", "", "Filter by branch")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newBuildStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var branch string
	var commit string
	var revision int
	var env []string

	cmd := &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start a new build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := TriggerBuildRequest{
				Branch: branch,
				Commit: commit,
			}

			if cmd.Flags().Changed("revision") {
				req.Revision = &revision
			}

			if len(env) > 0 {
				req.Env = make(map[string]string)
				for _, kv := range env {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid env format %q, expected KEY=VALUE", kv)
					}
					req.Env[parts[0]] = parts[1]
				}
			}

			build, err := client.TriggerBuild(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Build started: %s", build.ID))
			out.Print(
				[]string{"ID", "PIPELINE_ID", "NUMBER", "BRANCH", "STATUS", "CREATED"},
				[][]string{{build.ID, build.PipelineID, strconv.Itoa(build.Number), build.Branch, build.Status, build.CreatedAt}},
				build,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "Branch to build (required)")
	cmd.Flags().StringVar(&commit, "commit", "", "Commit SHA (HEAD of branch if not specified)")
	cmd.Flags().IntVar(&revision, "revision", 0, "Config revision (latest if not specified)")
	cmd.Flags().StringSliceVar(&env, "env", nil, "Environment overrides as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("branch")

	return cmd
}

func newBuildShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show build details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			build, err := client.GetBuild(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "PIPELINE_ID", "NUMBER", "BRANCH", "STATUS", "ERROR", "CREATED"},
				[][]string{{build.ID, build.PipelineID, strconv.Itoa(build.Number), build.Branch, build.Status, build.Error, build.CreatedAt}},
				build,
			)
			return nil
		},
	}
}

func newBuildCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			build, err := client.CancelBuild(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Build cancelled: %s", build.ID))
			return nil
		},
	}
}

func newBuildJobsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs BUILD_ID",
		Short: "List jobs in a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListBuildJobs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "TESTS", "ERROR"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.ID, j.Name, j.Status, formatTests(j.Tests), j.Error}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}
}

func newBuildArtifactsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts BUILD_ID",
		Short: "List artifacts of a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			artifacts, err := client.ListBuildArtifacts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "JOB_ID", "KIND", "PATH", "SIZE"}
			rows := make([][]string, len(artifacts))
			for i, a := range artifacts {
				rows[i] = []string{a.ID, a.JobID, a.Kind, a.Path, strconv.FormatInt(a.SizeBytes, 10)}
			}

			out.Print(headers, rows, artifacts)
			return nil
		},
	}
}

// NewJobCmd создаёт группу команд для просмотра jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect jobs",
	}

	cmd.AddCommand(
		newJobShowCmd(clientFn, outputFn),
		newJobLogCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STATUS", "EXIT", "ERROR"}
			rows := make([][]string, len(job.Steps))
			for i, s := range job.Steps {
				rows[i] = []string{s.Name, s.Status, strconv.Itoa(s.ExitCode), s.Error}
			}

			out.Success(fmt.Sprintf("Job %s (%s): %s", job.Name, job.ID, job.Status))
			out.Print(headers, rows, job)
			return nil
		},
	}
}

func newJobLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "log ID",
		Short: "Print the full job log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			log, err := client.GetJobLog(args[0])
			if err != nil {
				return err
			}

			out.Raw(log)
			return nil
		},
	}
}

// NewArtifactCmd создаёт группу команд для артефактов.
func NewArtifactCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Download artifacts",
	}

	cmd.AddCommand(newArtifactDownloadCmd(clientFn, outputFn))

	return cmd
}

func newArtifactDownloadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := client.DownloadArtifact(args[0])
			if err != nil {
				return err
			}

			if outFile == "" {
				out.Raw(data)
				return nil
			}

			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

			out.Success(fmt.Sprintf("Artifact saved to %s (%d bytes)", outFile, len(data)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file (stdout if not specified)")

	return cmd
}

func formatTests(t *TestSummary) string {
	if t == nil {
		return ""
	}
	passed := t.Total - t.Failures - t.Errors - t.Skipped
	return fmt.Sprintf("%d/%d passed", passed, t.Total)
}
