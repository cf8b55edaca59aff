package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// Markdown renders md for the terminal. Without color support, or if the
// renderer fails, md is returned unchanged so output stays pipeable
func Markdown(md string) string {
	if !ShouldUseColor() {
		return md
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(Width()),
	)
	if err != nil {
		zap.L().Debug("markdown renderer unavailable", zap.Error(err))
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		zap.L().Debug("markdown render failed", zap.Error(err))
		return md
	}
	return strings.TrimRight(out, "\n")
}
