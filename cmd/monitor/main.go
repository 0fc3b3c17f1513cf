package main

import (
	"bytes"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"enterprise_sim/internal/domain"
)

type embeddedSimulator struct {
	cmd *exec.Cmd
	out bytes.Buffer
}

func main() {
	addr := flag.String("addr", "http://localhost:8092", "simulator base URL")
	interval := flag.Duration("interval", time.Second, "refresh interval")
	embedded := flag.Bool("embedded", false, "start the simulator in the same monitor process lifecycle")
	simulatorBinary := flag.String("simulator-bin", "", "path to simulator binary (optional in embedded mode)")
	dbPath := flag.String("db", "data/embedded.db", "sqlite journal path for the embedded simulator")
	flag.Parse()

	c := newClient(*addr)

	if *embedded {
		proc, err := startEmbeddedSimulator(*addr, *simulatorBinary, *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start embedded simulator: %v\n", err)
			os.Exit(1)
		}
		defer proc.Stop()
	}

	if err := c.waitHealth(30 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "simulator health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()

	agentsTable := tview.NewTable().SetBorders(false)
	agentsTable.SetTitle("Workforce").SetBorder(true)

	tasksTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	tasksTable.SetTitle("Tasks (Del delete pending)").SetBorder(true)

	newText := func(title string) *tview.TextView {
		v := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
		v.SetTitle(title).SetBorder(true)
		return v
	}
	outcomesView := newText("Outcomes")
	logsView := newText("Event Log")
	predictionsView := newText("Predictive Insights (d dismiss newest)")
	analysisView := newText("System Analysis")
	metricsView := newText("Metrics")

	outcomeInput := tview.NewInputField().
		SetLabel("Outcome (title | constraints): ")
	outcomeInput.SetBorder(true).SetTitle("Enter = decompose")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | F2 start/pause, F3 reset, F5 refresh, F10 quit, Ctrl+L input, Ctrl+T tasks",
		c.baseURL,
	))

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(agentsTable, 0, 2, false).
		AddItem(tasksTable, 0, 3, false).
		AddItem(outcomesView, 0, 1, false)
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(metricsView, 4, 0, false).
		AddItem(analysisView, 5, 0, false).
		AddItem(predictionsView, 0, 1, false).
		AddItem(logsView, 0, 3, false)
	mainLayout := tview.NewFlex().
		AddItem(left, 0, 3, false).
		AddItem(right, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(outcomeInput, 3, 0, true).
		AddItem(statusView, 3, 0, false)

	var (
		mu         sync.Mutex
		lastSnap   domain.Snapshot
		selectedID string
	)

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refresh := func() {
		snap, err := c.snapshot()
		if err != nil {
			setStatusAsync("[red]snapshot failed:[-] " + tview.Escape(err.Error()))
			return
		}
		mu.Lock()
		lastSnap = snap
		selected := selectedID
		mu.Unlock()
		app.QueueUpdateDraw(func() {
			renderAgentsTable(agentsTable, snap.Agents)
			renderTasksTable(tasksTable, snap.Tasks, snap.Agents, selected)
			outcomesView.SetText(renderOutcomes(snap.Outcomes))
			logsView.SetText(renderLogs(snap.Logs))
			predictionsView.SetText(renderPredictions(snap.Predictions))
			analysisView.SetText(tview.Escape(snap.SystemAnalysis))
			metricsView.SetText(renderMetrics(snap))
		})
	}

	// run executes a call off the UI goroutine, then refreshes.
	run := func(pending string, call func() (string, error)) {
		setStatusUI(pending)
		go func() {
			msg, err := call()
			if err != nil {
				setStatusAsync("[red]" + tview.Escape(err.Error()) + "[-]")
			} else {
				setStatusAsync(msg)
			}
			refresh()
		}()
	}

	outcomeInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		title, description := parseOutcomeInput(outcomeInput.GetText())
		if title == "" {
			setStatusUI("Outcome title is required")
			return
		}
		outcomeInput.SetText("")
		run("Decomposing outcome...", func() (string, error) {
			res, err := c.createOutcome(title, description)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Outcome %q created with %d tasks", res.Outcome.Title, len(res.Tasks)), nil
		})
	})

	tasksTable.SetSelectionChangedFunc(func(row, _ int) {
		mu.Lock()
		defer mu.Unlock()
		if row <= 0 || row > len(lastSnap.Tasks) {
			return
		}
		selectedID = lastSnap.Tasks[row-1].ID
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF2:
			run("Toggling simulation...", func() (string, error) {
				on, err := c.toggle()
				if err != nil {
					return "", err
				}
				if on {
					return "Simulation running", nil
				}
				return "Simulation paused", nil
			})
			return nil
		case tcell.KeyF3:
			run("Resetting...", func() (string, error) {
				return "System reset", c.reset()
			})
			return nil
		case tcell.KeyF5:
			go refresh()
			setStatusUI("Manual refresh")
			return nil
		case tcell.KeyCtrlL:
			app.SetFocus(outcomeInput)
			return nil
		case tcell.KeyCtrlT:
			app.SetFocus(tasksTable)
			return nil
		}
		if app.GetFocus() == outcomeInput {
			if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyTAB {
				app.SetFocus(tasksTable)
				return nil
			}
			return event
		}
		switch {
		case event.Key() == tcell.KeyDelete:
			mu.Lock()
			id := selectedID
			mu.Unlock()
			if id == "" {
				return nil
			}
			run("Deleting task...", func() (string, error) {
				return "Task deleted", c.deleteTask(id)
			})
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'd':
			mu.Lock()
			var id string
			if len(lastSnap.Predictions) > 0 {
				id = lastSnap.Predictions[0].ID
			}
			mu.Unlock()
			if id == "" {
				return nil
			}
			run("Dismissing insight...", func() (string, error) {
				return "Insight dismissed", c.dismissPrediction(id)
			})
			return nil
		case event.Key() == tcell.KeyTAB:
			app.SetFocus(outcomeInput)
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		refresh()
		for range ticker.C {
			refresh()
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(outcomeInput).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func startEmbeddedSimulator(addr, simulatorBinary, dbPath string) (*embeddedSimulator, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		return nil, fmt.Errorf("addr must include explicit port, got %q", addr)
	}
	args := []string{"--addr", ":" + port, "--db", dbPath}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(simulatorBinary) != "" {
		cmd = exec.Command(simulatorBinary, args...)
	} else {
		self, err := os.Executable()
		if err == nil {
			sibling := filepath.Join(filepath.Dir(self), "simulator")
			if fileExists(sibling) {
				cmd = exec.Command(sibling, args...)
			}
		}
		if cmd == nil {
			cmd = exec.Command("go", append([]string{"run", "./cmd/simulator"}, args...)...)
			cwd, _ := os.Getwd()
			cmd.Dir = cwd
		}
	}

	proc := &embeddedSimulator{cmd: cmd}
	cmd.Stdout = &proc.out
	cmd.Stderr = &proc.out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start simulator process: %w", err)
	}
	return proc, nil
}

func (e *embeddedSimulator) Stop() {
	if e == nil || e.cmd == nil || e.cmd.Process == nil {
		return
	}
	_ = e.cmd.Process.Kill()
	_, _ = e.cmd.Process.Wait()
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
