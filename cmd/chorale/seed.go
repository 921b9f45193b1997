package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chorale/internal/corpus"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file.json]",
	Short: "Seed the verse corpus from a JSON file",
	Long: `Drops and rebuilds the verse corpus collection from a seed file.
Each verse and each surah summary becomes one searchable point.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		surahs, err := corpus.LoadSeedFile(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.corpus.Seed(ctx, surahs)
		if err != nil {
			logger.Error("corpus seed failed", zap.String("file", args[0]), zap.Error(err))
			return err
		}
		logger.Info("corpus seeded", zap.Int("points", n), zap.Int("surahs", len(surahs)))
		fmt.Printf("seeded %d points from %d surahs\n", n, len(surahs))
		return nil
	},
}
