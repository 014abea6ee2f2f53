// Package dashboard is the terminal view of a monitoring session: live metrics,
// the devices feeding them and the tail of the log.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

const (
	readingsBuffer  = 64
	refreshInterval = 250 * time.Millisecond
	commandTimeout  = 3 * time.Second
)

// PowerTarget accepts ERG targets; *telemetry.Controller implements it.
type PowerTarget interface {
	SetTargetPower(ctx context.Context, watts int16) error
}

type Dashboard struct {
	logger  *log.Logger
	app     *tview.Application
	model   *Model
	monitor *telemetry.Monitor
	trainer PowerTarget

	metricsTable *tview.Table
	sourcesTable *tview.Table
	controlsText *tview.TextView
	logView      *tview.TextView
	root         *tview.Flex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dirty   chan struct{}
	running atomic.Bool
	drawing atomic.Bool
}

type Args struct {
	Logger  *log.Logger
	App     *tview.Application
	Monitor *telemetry.Monitor
	// Trainer is optional; without it the power keys do nothing.
	Trainer PowerTarget
	// LogLines feeds the log pane, usually from a logging.LineWriter.
	LogLines <-chan string
}

func New(args Args) *Dashboard {
	if args.Logger == nil {
		panic("Dashboard: logger cannot be nil")
	}
	if args.App == nil {
		panic("Dashboard: app cannot be nil")
	}
	if args.Monitor == nil {
		panic("Dashboard: monitor cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		logger:  args.Logger,
		app:     args.App,
		model:   NewModel(),
		monitor: args.Monitor,
		trainer: args.Trainer,
		ctx:     ctx,
		cancel:  cancel,
		dirty:   make(chan struct{}, 1),
	}
	d.initWidgets()
	d.setupKeyboardHandlers()
	d.render()
	d.listen(args.LogLines)
	return d
}

func (d *Dashboard) Model() *Model {
	return d.model
}

func (d *Dashboard) initWidgets() {
	// No SetChangedFunc with app.Draw(): it hangs when the app is stopped while
	// log lines still arrive. Redraws go through the refresh loop instead.
	d.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(false)
	d.logView.SetBorder(true).SetTitle(" Logs ")

	d.metricsTable = tview.NewTable().SetBorders(false)
	d.metricsTable.SetBorder(true).SetTitle(" Metrics ")

	d.sourcesTable = tview.NewTable().SetBorders(false)
	d.sourcesTable.SetBorder(true).SetTitle(" Devices ")

	d.controlsText = tview.NewTextView().SetDynamicColors(true)
	d.controlsText.SetBorder(true).SetTitle(" Controls ")

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.metricsTable, 0, 3, true).
		AddItem(d.sourcesTable, 0, 1, false).
		AddItem(d.controlsText, 4, 0, false)

	d.root = tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(d.logView, 0, 1, false)
}

func (d *Dashboard) setupKeyboardHandlers() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Key() == tcell.KeyRune && event.Rune() == 'q':
			d.Stop()
			return nil
		case event.Key() == tcell.KeyUp, event.Key() == tcell.KeyRune && event.Rune() == '+':
			d.stepTargetPower(DefaultPowerStepWatts)
			return nil
		case event.Key() == tcell.KeyDown, event.Key() == tcell.KeyRune && event.Rune() == '-':
			d.stepTargetPower(-DefaultPowerStepWatts)
			return nil
		}
		return event
	})
}

func (d *Dashboard) stepTargetPower(delta int) {
	if d.trainer == nil {
		return
	}
	watts := d.model.StepTargetPower(delta)
	go_func_utils.SafeGoWait(d.logger, &d.wg, func() {
		ctx, cancel := context.WithTimeout(d.ctx, commandTimeout)
		defer cancel()
		if err := d.trainer.SetTargetPower(ctx, watts); err != nil {
			d.logger.Printf("Dashboard: set target power %d W failed: %v", watts, err)
			return
		}
		d.logger.Printf("Dashboard: target power %d W", watts)
	})
	d.markDirty()
}

func (d *Dashboard) listen(logLines <-chan string) {
	readings := make(chan telemetry.Reading, readingsBuffer)
	unlisten := d.monitor.ListenToReadings(readings)
	go_func_utils.SafeGoWait(d.logger, &d.wg, func() {
		defer unlisten()
		for {
			select {
			case <-d.ctx.Done():
				return
			case r := <-readings:
				d.model.Apply(r)
				d.markDirty()
			}
		}
	})

	if logLines != nil {
		go_func_utils.SafeGoWait(d.logger, &d.wg, func() {
			for {
				select {
				case <-d.ctx.Done():
					return
				case line, ok := <-logLines:
					if !ok {
						return
					}
					d.model.AppendLog(strings.TrimRight(line, "\n"))
					d.markDirty()
				}
			}
		})
	}

	// Coalesces bursts of notifications into one redraw per interval.
	go_func_utils.SafeGoWait(d.logger, &d.wg, func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if d.running.Load() {
					d.redraw()
				}
			}
		}
	})
}

func (d *Dashboard) markDirty() {
	select {
	case d.dirty <- struct{}{}:
	default:
	}
}

// redraw queues a render when the model changed. QueueUpdateDraw blocks until the
// event loop runs it, which never happens once the app has stopped, so it is
// called off the refresh loop with at most one in flight.
func (d *Dashboard) redraw() {
	select {
	case <-d.dirty:
	default:
		return
	}
	if !d.drawing.CompareAndSwap(false, true) {
		d.markDirty()
		return
	}
	go_func_utils.SafeGo(d.logger, func() {
		defer d.drawing.Store(false)
		d.app.QueueUpdateDraw(d.render)
	})
}

// render copies the model into the widgets. It runs on the UI goroutine.
func (d *Dashboard) render() {
	d.metricsTable.Clear()
	rows := d.model.MetricRows()
	if len(rows) == 0 {
		d.metricsTable.SetCell(0, 0, tview.NewTableCell("Waiting for data...").SetTextColor(tcell.ColorGray))
	}
	for i, row := range rows {
		d.metricsTable.SetCell(i, 0, tview.NewTableCell(row.Label).SetTextColor(tcell.ColorGray))
		d.metricsTable.SetCell(i, 1, tview.NewTableCell(row.Value).SetTextColor(tcell.ColorYellow).SetExpansion(1))
	}

	d.sourcesTable.Clear()
	for i, src := range d.model.Sources() {
		d.sourcesTable.SetCell(i, 0, tview.NewTableCell(src.Address))
		d.sourcesTable.SetCell(i, 1, tview.NewTableCell(string(src.LastKind)).SetTextColor(tcell.ColorGray))
		d.sourcesTable.SetCell(i, 2, tview.NewTableCell(fmt.Sprintf("%d", src.Readings)).SetAlign(tview.AlignRight))
	}

	if d.trainer == nil {
		d.controlsText.SetText(" [gray]No trainer control[white]\n [yellow]q[white] Quit")
	} else {
		d.controlsText.SetText(fmt.Sprintf(" Target Power: [yellow]%d[white] W\n [yellow]+/-[white] Adjust  |  [yellow]q[white] Quit", d.model.TargetPower()))
	}

	_, _, _, height := d.logView.GetInnerRect()
	if height <= 0 {
		height = maxLogLines
	}
	d.logView.SetText(strings.Join(d.model.LogTail(height), "\n"))
}

// Run shows the dashboard and blocks until it is stopped.
func (d *Dashboard) Run() error {
	d.app.SetRoot(d.root, true)
	d.app.SetFocus(d.metricsTable)
	d.running.Store(true)
	defer d.running.Store(false)
	d.markDirty()
	return d.app.Run()
}

// Stop ends Run and the background listeners. Safe to call more than once.
func (d *Dashboard) Stop() {
	d.cancel()
	d.app.Stop()
}

// Shutdown stops the dashboard and waits for its goroutines.
func (d *Dashboard) Shutdown() {
	d.logger.Println("Dashboard: Shutting down")
	d.Stop()
	d.wg.Wait()
	d.logger.Println("Dashboard: Shutdown complete")
}
