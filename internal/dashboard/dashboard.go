package dashboard

import (
	"errors"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"parallel-ytdl/internal/model"
)

// Dashboard runs the live view in its own goroutine. It satisfies
// pool.Observer; events may be sent from any worker.
type Dashboard struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// Start launches the program on out, reading keys from in.
func Start(in io.Reader, out io.Writer, cancel func()) *Dashboard {
	d := &Dashboard{
		program: tea.NewProgram(NewModel(cancel),
			tea.WithInput(in),
			tea.WithOutput(out),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		if _, err := d.program.Run(); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "tty") {
				err = errors.New("dashboard requires an interactive terminal (TTY)")
			}
			d.err = err
		}
	}()
	return d
}

func (d *Dashboard) Plan(workers, jobs int) {
	d.program.Send(planMsg{workers: workers, jobs: jobs})
}

func (d *Dashboard) Observe(e model.Event) {
	d.program.Send(eventMsg(e))
}

// Stop renders the final frame and waits for the program to exit.
func (d *Dashboard) Stop() error {
	d.program.Send(doneMsg{})
	<-d.done
	if errors.Is(d.err, tea.ErrProgramKilled) {
		return nil
	}
	return d.err
}
