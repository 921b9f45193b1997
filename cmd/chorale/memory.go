package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chorale/internal/memory"
)

var (
	memoryTags  []string
	memoryTag   string
	memoryLimit int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit the voice's persistent memory",
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember [text]",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := app.memory.Remember(ctx, strings.Join(args, " "), memoryTags, "cli", "")
		if err != nil {
			return err
		}
		fmt.Printf("remembered %s\n", id)
		return nil
	},
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Recall memories by similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.memory.Recall(ctx, strings.Join(args, " "), memoryLimit)
		if err != nil {
			return err
		}
		fmt.Println(memory.FormatEntries(entries))
		return nil
	},
}

var memorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Recall memories narrowed by a tag",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.memory.Search(ctx, strings.Join(args, " "), memoryTag, memoryLimit)
		if err != nil {
			return err
		}
		fmt.Println(memory.FormatEntries(entries))
		return nil
	},
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget [query]",
	Short: "Delete the single closest memory to the query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		entry, err := app.memory.Forget(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Println("nothing to forget")
			return nil
		}
		fmt.Printf("forgot %s: %s\n", entry.ID, entry.Content)
		return nil
	},
}

var memoryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many memories are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.memory.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d memories\n", n)
		return nil
	},
}

func init() {
	memoryRememberCmd.Flags().StringSliceVar(&memoryTags, "tags", nil, "Tags to attach to the memory")
	memoryRecallCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 5, "Maximum results")
	memorySearchCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 5, "Maximum results")
	memorySearchCmd.Flags().StringVar(&memoryTag, "tag", "", "Only match memories carrying this tag")

	memoryCmd.AddCommand(memoryRememberCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryForgetCmd)
	memoryCmd.AddCommand(memoryCountCmd)
}
