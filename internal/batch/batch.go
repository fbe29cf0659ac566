// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package batch runs tool calls read as JSON lines and writes the matching
// tool messages in input order.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	apperrors "fsroots/internal/errors"
	"fsroots/internal/tools"
)

// DefaultWorkers is the number of calls executed concurrently when the
// caller does not choose.
const DefaultWorkers = 4

const maxLineSize = 16 * 1024 * 1024

// Summary counts the calls processed by a run.
type Summary struct {
	Calls  int
	Failed int
}

// Runner executes tool calls against a registry.
type Runner struct {
	registry *tools.Registry
	workers  int
	logger   zerolog.Logger
}

// NewRunner creates a runner; workers below one fall back to DefaultWorkers.
func NewRunner(registry *tools.Registry, workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Runner{registry: registry, workers: workers, logger: logger}
}

type job struct {
	line int
	call openai.ToolCall
	err  error
}

// Run reads one openai.ToolCall per line from in, executes the calls with a
// bounded worker pool and writes one tool message per call to out, in input
// order. Blank lines are skipped. Undecodable lines produce an error message
// instead of aborting the run.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	jobs, err := readJobs(in)
	if err != nil {
		return Summary{}, err
	}
	r.logger.Debug().Int("calls", len(jobs)).Int("workers", r.workers).Msg("Running batch")

	results := make([]*tools.ToolResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.execute(gctx, jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Calls: len(jobs)}
	encoder := json.NewEncoder(out)
	for i, result := range results {
		if result.Error != nil {
			summary.Failed++
		}
		if err := encoder.Encode(toolMessage(jobs[i], result)); err != nil {
			return summary, fmt.Errorf("writing result for line %d: %w", jobs[i].line, err)
		}
	}
	return summary, nil
}

func (r *Runner) execute(ctx context.Context, j job) *tools.ToolResult {
	if j.err != nil {
		err := apperrors.Wrap(apperrors.CodeInvalidArguments, fmt.Sprintf("line %d: invalid tool call", j.line), j.err)
		r.logger.Warn().Int("line", j.line).Err(j.err).Msg("Skipping undecodable tool call")
		return &tools.ToolResult{Function: j.call.Function.Name, Result: tools.RenderError(err), Error: err}
	}

	start := time.Now()
	result := r.registry.ExecuteOpenAIToolCall(ctx, j.call)
	r.logger.Debug().
		Int("line", j.line).
		Str("call_id", j.call.ID).
		Str("tool", j.call.Function.Name).
		Dur("duration", time.Since(start)).
		Bool("failed", result.Error != nil).
		Msg("Batch call executed")
	return result
}

func readJobs(in io.Reader) ([]job, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var jobs []job
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		j := job{line: line}
		if err := json.Unmarshal([]byte(text), &j.call); err != nil {
			j.err = err
		}
		jobs = append(jobs, j)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	return jobs, nil
}

func toolMessage(j job, result *tools.ToolResult) openai.ChatCompletionMessage {
	name := j.call.Function.Name
	if name == "" {
		name = "unknown_tool"
	}
	id := j.call.ID
	if id == "" {
		id = fmt.Sprintf("line-%d", j.line)
	}
	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    result.Result,
		Name:       name,
		ToolCallID: id,
	}
}
