package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/mentord/internal/pipeline"
	"github.com/fyrsmithlabs/mentord/internal/problem"
)

var (
	solveSource string
	solveTrace  bool
)

var solveCmd = &cobra.Command{
	Use:   "solve <problem>",
	Short: "Solve one problem interactively",
	Long: `Solve one problem, pausing on the terminal whenever the pipeline
is not confident enough to continue.

At a pause the accepted correction fields are listed; answer with
"field: value" to resume, or an empty line to abandon the run.

Examples:
  mentord solve "solve x^2 - 5x + 6 = 0"
  mentord solve --source image "s0lve 2x + 1 = 7"
  mentord solve --trace "differentiate x^3 + 2x"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&solveSource, "source", "text", "input source: text, image or audio")
	solveCmd.Flags().BoolVar(&solveTrace, "trace", false, "print the decision trace after the run")
}

func runSolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input := strings.Join(args, " ")
	res, err := a.orch.Start(ctx, problem.SourceKind(solveSource), input)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for res.State == pipeline.StatePaused {
		printPause(res.Pause)

		corr, ok := readCorrection(reader, res.Pause.Fields)
		if !ok {
			res, err = a.orch.Abandon(ctx, res.RunID)
			if err != nil {
				return err
			}
			break
		}

		res, err = a.orch.Resume(ctx, res.RunID, corr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "correction rejected: %v\n", err)
			continue
		}
	}

	switch res.State {
	case pipeline.StateDone:
		if res.Explanation != nil {
			fmt.Println(res.Explanation.Markdown())
		} else if res.Candidate != nil {
			fmt.Printf("Answer: %s\n", res.Candidate.Answer)
		}
	case pipeline.StateAbandoned:
		fmt.Fprintln(os.Stderr, "run abandoned")
	}

	if solveTrace {
		summary, err := a.orch.TraceSummary(ctx, res.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "\nTrace:")
		fmt.Fprintln(os.Stderr, summary)
	}
	return nil
}

// printPause renders a pause request on stderr.
func printPause(p *pipeline.PauseRequest) {
	fmt.Fprintf(os.Stderr, "\n-- paused at %s (%s) --\n", p.Stage, p.State)
	fmt.Fprintf(os.Stderr, "reason: %s\n", p.Reason)
	if p.Output != "" {
		fmt.Fprintf(os.Stderr, "current output: %s\n", p.Output)
	}
	fmt.Fprintf(os.Stderr, "confidence %.2f, threshold %.2f\n", p.Confidence, p.Threshold)
	fmt.Fprintf(os.Stderr, "corrections accepted: %s\n", strings.Join(p.Fields, ", "))
}

// readCorrection reads one "field: value" line from the terminal. An
// empty line (or EOF) means the user gives up on the run.
func readCorrection(reader *bufio.Reader, fields []string) (pipeline.Correction, bool) {
	fmt.Fprint(os.Stderr, "> ")
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return pipeline.Correction{}, false
	}

	if field, value, found := strings.Cut(line, ":"); found {
		f := strings.TrimSpace(field)
		for _, allowed := range fields {
			if f == allowed {
				return pipeline.Correction{Field: f, Value: strings.TrimSpace(value)}, true
			}
		}
	}

	// A bare value targets the first accepted field, so a colon inside
	// the problem text itself does not get mistaken for a field name.
	if len(fields) == 0 {
		return pipeline.Correction{}, false
	}
	return pipeline.Correction{Field: fields[0], Value: line}, true
}
