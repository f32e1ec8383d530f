package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"lowir/internal/driver"
	"lowir/internal/ui"
)

type lowerOutcome struct {
	result *driver.Result
	err    error
}

func runLowerWithUI(ctx context.Context, title, path string, opts driver.Options) (*driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		opts.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Lower(ctx, path, opts)
		outcomeCh <- lowerOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
