package cmd

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/pkg/pool"
	"github.com/habedi/dogs/pkg/validation"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// catalogueCmd reads the dog catalogue through a running server.
func catalogueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Browse the dog catalogue",
	}
	cmd.AddCommand(
		breedsCmd(),
		warmCmd(),
	)
	return cmd
}

func breedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breeds",
		Short: "List every breed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			list, err := client.NewProxyClient(cfg.Client.ServerURL, cfg.Client.Timeout).Breeds(cmd.Context())
			if err != nil {
				return err
			}
			if len(list.Breeds) == 0 {
				cmd.Println("No breeds found in the catalogue.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Row ID", "Breed"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			table.SetRowLine(false)
			for i, b := range list.Breeds {
				table.Append([]string{fmt.Sprintf("%d", i+1), b.Name})
			}
			table.Render()

			log.Info().Msgf("Listed %d breeds.", len(list.Breeds))
			return nil
		},
	}
}

// warmCmd fills the server's image cache for every breed.
func warmCmd() *cobra.Command {
	var numWorkers, count int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch images for every breed so the server caches them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateWorkerCount(numWorkers); err != nil {
				return err
			}
			if err := validation.ValidateImageCount(count); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			proxy := client.NewProxyClient(cfg.Client.ServerURL, cfg.Client.Timeout)
			list, err := proxy.Breeds(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(list.Breeds))
			for _, b := range list.Breeds {
				names = append(names, b.Name)
			}

			bar := progressbar.NewOptions(len(names),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Warming image cache..."),
				progressbar.OptionSetWidth(20),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionClearOnFinish(),
			)

			var images atomic.Int64
			errs := pool.RunWithProgress(cmd.Context(), names, numWorkers, func(ctx context.Context, breed string) error {
				res, err := proxy.BreedImages(ctx, breed, count)
				if err != nil {
					log.Warn().Err(err).Str("breed", breed).Msg("Failed to prefetch images")
					return fmt.Errorf("%s: %w", breed, err)
				}
				images.Add(int64(len(res.Images)))
				return nil
			}, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			cmd.Printf("Warmed %d breeds (%d images), %d failed.\n", len(names)-len(errs), images.Load(), len(errs))
			if len(errs) == len(names) && len(names) > 0 {
				return fmt.Errorf("every breed failed, first error: %w", errs[0])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&numWorkers, "workers", "w", 5, "Number of concurrent requests")
	cmd.Flags().IntVarP(&count, "count", "n", validation.DefaultImageCount, "Images to fetch per breed")
	return cmd
}
