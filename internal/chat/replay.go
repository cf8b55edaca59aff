package chat

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Exchange is one utterance and its response
type Exchange struct {
	Utterance string
	Response  string
}

// ReadScript reads utterances, one per line. Blank lines and lines starting
// with # are skipped
func ReadScript(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scan script")
	}
	return lines, nil
}

// ReadScriptFile reads a script from disk
func ReadScriptFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open script")
	}
	defer func() { _ = file.Close() }()

	return ReadScript(file)
}

// Replay runs utterances in order within one session. It stops early when
// ctx is cancelled
func (s *Service) Replay(ctx context.Context, sessionID string, utterances []string) []Exchange {
	out := make([]Exchange, 0, len(utterances))
	for _, u := range utterances {
		if ctx.Err() != nil {
			break
		}
		out = append(out, Exchange{Utterance: u, Response: s.Handle(ctx, sessionID, u)})
	}
	return out
}
