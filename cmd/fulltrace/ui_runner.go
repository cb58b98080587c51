package main

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"fulltrace/internal/pipeline"
	"fulltrace/internal/ui"
)

type runOutcome struct {
	result pipeline.Result
	err    error
}

func runPipelineWithUI(ctx context.Context, title string, req *pipeline.Request) (pipeline.Result, error) {
	if req == nil {
		return pipeline.Result{}, errors.New("missing pipeline request")
	}
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Run(ctx, &reqCopy)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Inputs, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// UI мог выйти раньше пайплайна: дочитываем события, чтобы он не встал
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
