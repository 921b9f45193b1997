package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chorale/internal/ledger"
)

var (
	judgeExchange   string
	judgeIntent     string
	judgePolarity   string
	judgeStance     string
	judgeTargetTime string
	witnessLimit    int
)

var witnessCmd = &cobra.Command{
	Use:   "witness",
	Short: "Work with the witness ledger",
	Long: `The witness ledger is the append-only record of exchanges. The
pipeline inscribes an algorithmic drift verdict for every exchange;
these commands let a human operator inscribe their own verdicts and
read the trail back.`,
}

var witnessJudgeCmd = &cobra.Command{
	Use:   "judge [user-text] [response-text]",
	Short: "Inscribe a human verdict for an exchange",
	Long: `Appends a human witness entry. The algorithmic entry for the
same exchange is never modified; both verdicts stand in the trail.

Example:
  chorale witness judge "what is the tide" "the tide is the moon's pull" \
    --polarity coherent --stance "answered the actual question"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		polarity := ledger.Polarity(judgePolarity)
		switch polarity {
		case ledger.PolarityCoherent, ledger.PolarityGap, ledger.PolarityUnclassified:
		default:
			return fmt.Errorf("invalid polarity %q (use coherent, gap or unclassified)", judgePolarity)
		}

		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		entry, err := app.ledger.InscribeHuman(ctx, judgeExchange, judgeTarget(judgeTargetTime, time.Now()), args[0], args[1], polarity, judgeStance, judgeIntent)
		if err != nil {
			return err
		}
		fmt.Printf("inscribed %s: exchange=%s polarity=%s\n", entry.ID, entry.ExchangeID, coloredPolarity(entry.Polarity))
		return nil
	},
}

var witnessSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the ledger's semantic index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		entries := app.ledger.Search(ctx, strings.Join(args, " "), witnessLimit)
		if len(entries) == 0 {
			fmt.Println("no matching entries")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s %s [%s/%s] %s\n", e.ID, coloredPolarity(e.Polarity), e.Witness.Discipline, e.Intent, e.WitnessTime)
			fmt.Printf("  user: %s\n", e.Horn.User)
			fmt.Printf("  resp: %s\n", e.Horn.Response)
		}
		return nil
	},
}

var witnessStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the ledger trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		stats := app.ledger.Stats()
		fmt.Printf("total:        %d\n", stats.Total)
		fmt.Printf("coherent:     %s\n", color.GreenString("%d", stats.Coherent))
		fmt.Printf("gap:          %s\n", color.RedString("%d", stats.Gap))
		fmt.Printf("unclassified: %s\n", color.YellowString("%d", stats.Unclassified))
		for discipline, n := range stats.ByDiscipline {
			fmt.Printf("  %s: %d\n", discipline, n)
		}
		return nil
	},
}

// judgeTarget resolves the target time for a human verdict: the
// operator's flag when given, otherwise the moment of judgment.
func judgeTarget(flagValue string, now time.Time) string {
	if flagValue != "" {
		return flagValue
	}
	return now.UTC().Format(time.RFC3339)
}

func init() {
	witnessJudgeCmd.Flags().StringVar(&judgeExchange, "exchange", "", "Exchange ID (a fresh one is minted when empty)")
	witnessJudgeCmd.Flags().StringVar(&judgeIntent, "intent", "", "Intent label to record")
	witnessJudgeCmd.Flags().StringVar(&judgePolarity, "polarity", "", "Verdict: coherent, gap or unclassified (required)")
	witnessJudgeCmd.Flags().StringVar(&judgeStance, "stance", "", "Free-form reasoning behind the verdict")
	witnessJudgeCmd.Flags().StringVar(&judgeTargetTime, "target-time", "", "RFC3339 time of the judged exchange (default: now)")
	_ = witnessJudgeCmd.MarkFlagRequired("polarity")

	witnessSearchCmd.Flags().IntVarP(&witnessLimit, "limit", "n", 5, "Maximum results")

	witnessCmd.AddCommand(witnessJudgeCmd)
	witnessCmd.AddCommand(witnessSearchCmd)
	witnessCmd.AddCommand(witnessStatsCmd)
}
