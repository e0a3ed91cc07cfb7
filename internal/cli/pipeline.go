package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineUpdateCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
		newPipelineConfigCmd(clientFn, outputFn),
		newPipelineValidateCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "REPO", "ACTIVE", "CREATED"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				rows[i] = []string{p.ID, p.Name, p.RepoURL, strconv.FormatBool(p.IsActive), p.CreatedAt}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var repoURL string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.CreatePipeline(name, repoURL)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", pipeline.ID))
			out.Print(
				[]string{"ID", "NAME", "REPO", "ACTIVE", "CREATED"},
				[][]string{{pipeline.ID, pipeline.Name, pipeline.RepoURL, strconv.FormatBool(pipeline.IsActive), pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Pipeline name (required)")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "Repository URL (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("repo-url")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "REPO", "ACTIVE", "CREATED"},
				[][]string{{pipeline.ID, pipeline.Name, pipeline.RepoURL, strconv.FormatBool(pipeline.IsActive), pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}
}

func newPipelineUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var repoURL string
	var active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdatePipelineRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("repo-url") {
				req.RepoURL = &repoURL
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			pipeline, err := client.UpdatePipeline(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Pipeline updated")
			out.Print(
				[]string{"ID", "NAME", "REPO", "ACTIVE", "CREATED"},
				[][]string{{pipeline.ID, pipeline.Name, pipeline.RepoURL, strconv.FormatBool(pipeline.IsActive), pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New pipeline name")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "New repository URL")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline deleted: %s", args[0]))
			return nil
		},
	}
}

// newPipelineConfigCmd — подгруппа для работы с ревизиями конфигурации.
func newPipelineConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pipeline config revisions",
	}

	cmd.AddCommand(
		newConfigListCmd(clientFn, outputFn),
		newConfigPushCmd(clientFn, outputFn),
		newConfigShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newConfigListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list PIPELINE_ID",
		Short: "List config revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			revisions, err := client.ListConfigRevisions(args[0])
			if err != nil {
				return err
			}

			headers := []string{"PIPELINE_ID", "REVISION", "CREATED"}
			rows := make([][]string, len(revisions))
			for i, v := range revisions {
				rows[i] = []string{v.PipelineID, strconv.Itoa(v.Revision), v.CreatedAt}
			}

			out.Print(headers, rows, revisions)
			return nil
		},
	}
}

func newConfigPushCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "push PIPELINE_ID",
		Short: "Upload a new config revision from YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}

			revision, err := client.UploadConfig(args[0], data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Revision %d uploaded for pipeline %s", revision.Revision, revision.PipelineID))
			out.Print(
				[]string{"PIPELINE_ID", "REVISION", "CREATED"},
				[][]string{{revision.PipelineID, strconv.Itoa(revision.Revision), revision.CreatedAt}},
				revision,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "file", "", "Path to config YAML file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show PIPELINE_ID REVISION",
		Short: "Show a config revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			revNum, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid revision number: %s", args[1])
			}

			revision, err := client.GetConfigRevision(args[0], revNum)
			if err != nil {
				return err
			}

			// Спецификация иерархическая — показываем в JSON
			out.JSON(revision)
			return nil
		},
	}
}

func newPipelineValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config YAML file without uploading",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}

			result, err := client.ValidateConfig(data)
			if err != nil {
				return err
			}

			if !result.Valid {
				out.Error(fmt.Sprintf("Config is invalid: %s", result.Error))
				os.Exit(1)
			}

			out.Success(fmt.Sprintf("Config is valid: %d jobs", result.Jobs))
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "file", "", "Path to config YAML file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
