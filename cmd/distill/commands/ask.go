package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/distill/internal/app"
	"github.com/florianilch/distill/internal/completion"
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question and print the answer",
		ArgsUsage: "<question>",
		Description: "The question is taken from the arguments, or from standard input when none are given.\n" +
			"On a terminal the answer is redrawn while it streams.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "system",
				Aliases: []string{"s"},
				Usage:   "system prompt sent before the question",
			},
			&cli.BoolFlag{
				Name:  "no-stream",
				Usage: "request the whole answer at once",
			},
		},
		Action: askAction,
	}
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question, err := readQuestion(cmd)
	if err != nil {
		return err
	}

	// Logs go to stderr so the answer can be piped.
	cfg, flush, err := setup(ctx, cmd, cmd.Root().ErrWriter)
	if err != nil {
		return err
	}
	defer flush()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	var messages []completion.Message
	if system := cmd.String("system"); system != "" {
		messages = append(messages, completion.Message{Role: "system", Content: system})
	}
	messages = append(messages, completion.Message{Role: "user", Content: question})

	out := cmd.Root().Writer
	view := newLiveView(out)

	var onPartial completion.PartialFunc
	if view != nil && !cmd.Bool("no-stream") {
		onPartial = func(_ context.Context, partial string) error {
			return view.Draw(partial)
		}
	}

	answer, err := application.Ask(ctx, messages, onPartial)
	if view != nil {
		view.Clear()
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	_, err = fmt.Fprintln(out, answer)
	return err
}

// readQuestion joins the arguments, or reads stdin when there are none and
// it is not a terminal.
func readQuestion(cmd *cli.Command) (string, error) {
	if cmd.Args().Present() {
		return strings.Join(cmd.Args().Slice(), " "), nil
	}

	in := cmd.Root().Reader
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("a question is required")
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	question := strings.TrimSpace(string(b))
	if question == "" {
		return "", errors.New("a question is required")
	}
	return question, nil
}
