package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tplr-ai/templar-ops/internal/r2"
	"github.com/tplr-ai/templar-ops/internal/storage"
)

func newArtifactsCmd() *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Work with the R2 gradient and dataset stores",
	}

	var (
		version string
		window  int64
	)
	gradientsCmd := &cobra.Command{
		Use:   "gradients",
		Short: "List gradients stored for a version and window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := r2.FromLookup(r2.OSLookup)
			if err != nil {
				return err
			}
			client, err := storage.NewClient(cmd.Context(), set.Gradients, r2.GroupGradients, r2.AccessRead)
			if err != nil {
				return err
			}

			store := storage.NewGradientStore(client, set.Gradients.BucketName)
			refs, err := store.ListWindow(cmd.Context(), version, window)
			if err != nil {
				return err
			}

			fmt.Printf("%d gradient(s) for version %s window %d\n", len(refs), version, window)
			for _, ref := range refs {
				fmt.Printf("    uid %d\n", ref.UID)
			}
			return nil
		},
	}
	gradientsCmd.Flags().StringVar(&version, "version", "", "templar release version")
	gradientsCmd.Flags().Int64Var(&window, "window", 0, "training window")
	//nolint:errcheck // Flag is defined just above
	_ = gradientsCmd.MarkFlagRequired("version")

	var (
		dest     string
		parallel int
	)
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Fetch all dataset shards into a local directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := r2.FromLookup(r2.OSLookup)
			if err != nil {
				return err
			}
			client, err := storage.NewClient(cmd.Context(), set.Dataset, r2.GroupDataset, r2.AccessRead)
			if err != nil {
				return err
			}

			store := storage.NewDatasetStore(client, set.Dataset.BucketName).WithParallelism(parallel)
			shards, err := store.ListShards(cmd.Context())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(shards))
			for _, s := range shards {
				keys = append(keys, s.Key)
			}
			if err := store.FetchShards(cmd.Context(), keys, dest); err != nil {
				return err
			}
			fmt.Printf("fetched %d shard(s) into %s\n", len(keys), dest)
			return nil
		},
	}
	datasetCmd.Flags().StringVar(&dest, "dest", "data", "destination directory")
	datasetCmd.Flags().IntVar(&parallel, "parallel", 8, "concurrent downloads")

	artifactsCmd.AddCommand(gradientsCmd, datasetCmd)
	return artifactsCmd
}
