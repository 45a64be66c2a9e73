package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/render"
)

// Console plays one quiz round over a line based terminal.
type Console struct {
	service *app.QuizService
	in      io.Reader
	out     io.Writer
	player  string
}

func NewConsole(service *app.QuizService, in io.Reader, out io.Writer, player string) *Console {
	return &Console{service: service, in: in, out: out, player: player}
}

// Play runs a round at difficulty until it finishes or ctx is cancelled.
// Answers are chosen by typing their number.
func (c *Console) Play(ctx context.Context, difficulty domain.Difficulty) error {
	events, cancel, err := c.service.Subscribe(ctx, c.player)
	if err != nil {
		return err
	}
	defer cancel()
	defer c.service.Close(c.player)

	started := make(chan error, 1)
	go func() {
		_, err := c.service.Start(ctx, c.player, difficulty)
		started <- err
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		current  domain.QuestionShown
		awaiting bool
	)
	for {
		// Input is only read while a question waits for its answer.
		var input <-chan string
		if awaiting {
			input = lines
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-input:
			if !ok {
				lines = nil
				continue
			}
			if c.answer(current, line) {
				awaiting = false
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case domain.LoadingChanged:
				if e.Loading {
					fmt.Fprintln(c.out, "Loading questions...")
				}
			case domain.QuestionShown:
				current = e
				awaiting = true
				c.printQuestion(e)
			case domain.TimerTicked:
				if e.TimeRemaining%10 == 0 || e.TimeRemaining <= 5 {
					fmt.Fprintf(c.out, "  %ds left\n", e.TimeRemaining)
				}
			case domain.ScoreChanged:
				if e.Correct {
					fmt.Fprintf(c.out, "Correct! Score: %d\n", e.Score)
				} else {
					fmt.Fprintf(c.out, "Wrong. Score: %d\n", e.Score)
				}
			case domain.SessionFinished:
				c.printSummary(e)
				return nil
			case domain.SessionFailed:
				fmt.Fprintln(c.out, e.Message)
				return <-started
			}
		}
	}
}

// answer submits the numbered choice and reports whether it was accepted.
func (c *Console) answer(q domain.QuestionShown, line string) bool {
	if line == "" {
		return false
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(q.Answers) {
		fmt.Fprintf(c.out, "Enter a number between 1 and %d\n", len(q.Answers))
		return false
	}
	_ = c.service.Dispatch(c.player, render.SelectionChanged{PresentationID: q.PresentationID, Answer: q.Answers[n-1]})
	_ = c.service.Dispatch(c.player, render.Submitted{PresentationID: q.PresentationID})
	return true
}

func (c *Console) printQuestion(q domain.QuestionShown) {
	fmt.Fprintf(c.out, "\nQuestion %d/%d", q.Index+1, q.Total)
	if q.Category != "" {
		fmt.Fprintf(c.out, " [%s]", q.Category)
	}
	fmt.Fprintf(c.out, "\n%s\n", q.Question)
	for i, a := range q.Answers {
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, a)
	}
}

func (c *Console) printSummary(e domain.SessionFinished) {
	if e.TimedOut {
		fmt.Fprintln(c.out, "\nTime's up!")
	}
	fmt.Fprintf(c.out, "\nYou scored %d in %ds (%s)\n", e.Record.Score, e.Record.TimeSpent, e.Record.Difficulty)
	if len(e.History) > 0 {
		fmt.Fprintln(c.out, "\nRecent games")
		_ = PrintHistory(c.out, e.History)
	}
}

// PrintHistory writes records as a table, newest first.
func PrintHistory(w io.Writer, records []domain.HistoryRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No games played yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tTIME\tDIFFICULTY\tTIME SPENT\tSCORE")
	for i, r := range records {
		local := r.Timestamp.Local()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%ds\t%d/%d\n",
			i+1,
			local.Format("2006-01-02"),
			local.Format("15:04:05"),
			r.Difficulty,
			r.TimeSpent,
			r.Score,
			domain.QuestionsPerSession,
		)
	}
	return tw.Flush()
}
