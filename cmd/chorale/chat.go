package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chorale/internal/ledger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	Long: `Reads messages from stdin and runs each one through the full
pipeline. The footer under each response shows the classified intent
and the witness verdict for the exchange.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	pipe, err := app.buildPipeline()
	if err != nil {
		return err
	}

	threadID := uuid.NewString()[:8]

	banner := color.New(color.FgMagenta, color.Bold)
	prompt := color.New(color.FgCyan, color.Bold)
	errOut := color.New(color.FgRed)
	meta := color.New(color.Faint)

	banner.Println("chorale — speak, or 'exit' to leave")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		res, err := pipe.Run(ctx, threadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("exchange failed", zap.String("thread", threadID), zap.Error(err))
			errOut.Printf("error: %v\n", err)
			continue
		}
		logger.Debug("exchange complete",
			zap.String("thread", threadID),
			zap.String("exchange", res.ExchangeID),
			zap.String("intent", string(res.Intent)))

		fmt.Println()
		fmt.Println(res.FinalText)
		meta.Printf("[intent=%s exchange=%s%s]\n\n", res.Intent, res.ExchangeID, witnessFooter(res.Witness))
	}
	return scanner.Err()
}

// witnessFooter renders the verdict portion of the response footer.
func witnessFooter(entry *ledger.Entry) string {
	if entry == nil {
		return ""
	}
	out := " " + coloredPolarity(entry.Polarity)
	if drift, ok := entry.Evidence["drift"].(float64); ok {
		out += fmt.Sprintf(" drift=%.4f", drift)
	}
	return out
}

func coloredPolarity(p ledger.Polarity) string {
	switch p {
	case ledger.PolarityCoherent:
		return color.GreenString(string(p))
	case ledger.PolarityGap:
		return color.RedString(string(p))
	default:
		return color.YellowString(string(p))
	}
}
