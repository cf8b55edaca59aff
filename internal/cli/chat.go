package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chartcode/internal/chat"
	"github.com/ppiankov/chartcode/internal/ui"
)

var sessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Chat opens an interactive session over the stored documents. Follow-up
requests reuse the previous document set and cached extraction:

  > codes for doc 1, 2, and 3
  > export to csv
  > vitals for those

Commands: /reset clears the session, /quit exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single request",
	Example: `  chartcode ask "codes for doc 1, 2, and 3"
  chartcode ask "fhir for document 2"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := a.chat.Handle(ctx, resolveSessionID(), strings.Join(args, " "))
		fmt.Println(ui.Markdown(out))
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Run a script of requests in one session",
	Long: `Replay reads one request per line and answers them in order within a
single session. Blank lines and lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		utterances, err := chat.ReadScriptFile(args[0])
		if err != nil {
			return err
		}
		if len(utterances) == 0 {
			return eris.Errorf("no requests in %s", args[0])
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sid := resolveSessionID()
		fmt.Fprintf(os.Stderr, "Replaying %d requests (session %s)\n\n", len(utterances), sid)
		for _, ex := range a.chat.Replay(ctx, sid, utterances) {
			fmt.Println(ui.RenderPrompt("> " + ex.Utterance))
			fmt.Println(ui.Markdown(ex.Response))
			fmt.Println()
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, askCmd, replayCmd} {
		c.Flags().StringVar(&sessionID, "session", "", "session ID (default: random)")
		rootCmd.AddCommand(c)
	}
}

func resolveSessionID() string {
	if sessionID != "" {
		return sessionID
	}
	return uuid.NewString()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sid := resolveSessionID()
	provider := "none"
	if a.provider != nil {
		provider = a.provider.Name()
	}
	fmt.Fprintln(os.Stderr, ui.Banner("chartcode "+Version, fmt.Sprintf("session %s | llm %s", sid, provider)))
	fmt.Fprintln(os.Stderr, ui.RenderMuted("Type /reset to start over, /quit to exit."))

	return repl(ctx, os.Stdin, os.Stdout, a.chat, sid)
}

// repl reads requests from in until EOF, /quit or cancellation
func repl(ctx context.Context, in io.Reader, out io.Writer, svc *chat.Service, sid string) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		if ui.IsInputTerminal() {
			fmt.Fprint(out, ui.RenderPrompt("> "))
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-errs:
				return eris.Wrap(err, "read input")
			default:
				return nil
			}
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			svc.Reset(sid)
			fmt.Fprintln(out, ui.RenderPass("Session reset."))
			continue
		}

		fmt.Fprintln(out, ui.Markdown(svc.Handle(ctx, sid, line)))
		fmt.Fprintln(out)
	}
}
