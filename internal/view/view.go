// Package view renders a virtualized collection as a scrolling terminal list.
//
// The list keeps a viewport over the collection, reports the viewport's
// tracked ranges after every movement, and redraws when the collection
// delivers items. Collection notifications arrive on the fetch goroutine;
// they are forwarded to the UI loop as tcell interrupt events so that all
// drawing happens on the goroutine running Run.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/vlist/internal/collection"
	"github.com/dshills/vlist/internal/event"
	"github.com/dshills/vlist/internal/interval"
	"github.com/dshills/vlist/internal/viewport"
)

// Placeholder is drawn for rows whose window has not been loaded.
const Placeholder = "…"

// Interrupt payloads posted from collection handlers.
type (
	redrawSignal struct{}
	quitSignal   struct{}
	countSignal  struct{ count int }
	failSignal   struct{ err error }
	resetSignal  struct{}
)

// Styles controls how rows are drawn.
type Styles struct {
	Normal      tcell.Style
	Cursor      tcell.Style
	Selected    tcell.Style
	Placeholder tcell.Style
	Status      tcell.Style
}

// DefaultStyles returns the default row styles.
func DefaultStyles() Styles {
	return Styles{
		Normal:      tcell.StyleDefault,
		Cursor:      tcell.StyleDefault.Reverse(true),
		Selected:    tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true),
		Placeholder: tcell.StyleDefault.Dim(true),
		Status:      tcell.StyleDefault.Reverse(true),
	}
}

// Option configures a List.
type Option func(*options)

type options struct {
	prefetch int
	margin   int
	styles   Styles
	logger   *slog.Logger
}

// WithPrefetch sets the number of rows tracked beyond each screen edge.
func WithPrefetch(n int) Option {
	return func(o *options) {
		o.prefetch = n
	}
}

// WithMargin keeps the cursor n rows away from the screen edges.
func WithMargin(n int) Option {
	return func(o *options) {
		o.margin = n
	}
}

// WithStyles replaces the default styles.
func WithStyles(s Styles) Option {
	return func(o *options) {
		o.styles = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// List is a terminal list over a collection.
type List[T any] struct {
	screen tcell.Screen
	coll   *collection.Collection[T]
	vp     *viewport.Viewport
	format func(T) string
	styles Styles
	logger *slog.Logger

	// Row where a range selection started, or -1
	anchor int

	// Last fetch error, shown in the status line until the next reset
	lastErr error

	subs []*event.Subscription
}

// New creates a list drawing coll onto screen. The screen must already be
// initialized; the list never finalizes it. format renders one item.
func New[T any](screen tcell.Screen, coll *collection.Collection[T], format func(T) string, opts ...Option) (*List[T], error) {
	o := options{
		prefetch: 50,
		styles:   DefaultStyles(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := &List[T]{
		screen: screen,
		coll:   coll,
		vp:     viewport.New(1, o.prefetch),
		format: format,
		styles: o.styles,
		logger: o.logger,
		anchor: -1,
	}
	l.vp.SetMargin(o.margin)
	if n, ok := coll.Count(); ok {
		l.vp.SetTotal(n)
	}

	if err := l.subscribe(); err != nil {
		l.Close()
		return nil, err
	}
	l.layout()
	return l, nil
}

// subscribe forwards collection notifications to the UI loop.
func (l *List[T]) subscribe() error {
	post := func(data any) {
		// A full queue drops the signal; the next one redraws everything.
		_ = l.screen.PostEvent(tcell.NewEventInterrupt(data))
	}

	sub, err := l.coll.OnItemReplaced(func(index int, _ T) {
		if l.vp.IsVisible(index) {
			post(redrawSignal{})
		}
	})
	if err != nil {
		return err
	}
	l.subs = append(l.subs, sub)

	if sub, err = l.coll.OnCountChanged(func(n int) { post(countSignal{count: n}) }); err != nil {
		return err
	}
	l.subs = append(l.subs, sub)

	if sub, err = l.coll.OnFetchFailed(func(err error) { post(failSignal{err: err}) }); err != nil {
		return err
	}
	l.subs = append(l.subs, sub)

	if sub, err = l.coll.OnReset(func() { post(resetSignal{}) }); err != nil {
		return err
	}
	l.subs = append(l.subs, sub)

	if sub, err = l.coll.OnSelectionChanged(func([]interval.Interval) { post(redrawSignal{}) }); err != nil {
		return err
	}
	l.subs = append(l.subs, sub)
	return nil
}

// Close removes the list's collection subscriptions.
func (l *List[T]) Close() {
	for _, sub := range l.subs {
		_ = l.coll.Unsubscribe(sub)
	}
	l.subs = nil
}

// Viewport returns the list's viewport.
func (l *List[T]) Viewport() *viewport.Viewport {
	return l.vp
}

// SetPrefetch changes the prefetch margin and reports the new tracked
// ranges. It is safe to call from any goroutine.
func (l *List[T]) SetPrefetch(n int) {
	l.vp.SetPrefetch(n)
	l.track()
}

// Run draws the list and processes terminal events until the user quits
// or ctx is cancelled. It returns nil when the user quits.
func (l *List[T]) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.screen.PostEvent(tcell.NewEventInterrupt(quitSignal{}))
	})
	defer stop()

	l.track()
	l.Draw()
	for {
		ev := l.screen.PollEvent()
		if ev == nil {
			return ctx.Err()
		}
		if l.HandleEvent(ev) {
			return ctx.Err()
		}
	}
}

// HandleEvent applies one terminal or interrupt event and redraws. It
// returns true when the list should stop.
func (l *List[T]) HandleEvent(ev tcell.Event) (quit bool) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		l.screen.Sync()
		l.layout()
	case *tcell.EventKey:
		if l.handleKey(e) {
			return true
		}
	case *tcell.EventInterrupt:
		switch data := e.Data().(type) {
		case quitSignal:
			return true
		case countSignal:
			l.vp.SetTotal(data.count)
			l.track()
		case failSignal:
			l.lastErr = data.err
		case resetSignal:
			l.lastErr = nil
		}
	}
	l.Draw()
	return false
}

func (l *List[T]) handleKey(ev *tcell.EventKey) (quit bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		l.vp.MoveCursor(-1)
	case tcell.KeyDown:
		l.vp.MoveCursor(1)
	case tcell.KeyPgUp:
		l.vp.PageUp()
	case tcell.KeyPgDn:
		l.vp.PageDown()
	case tcell.KeyHome:
		l.vp.Home()
	case tcell.KeyEnd:
		l.vp.End()
	case tcell.KeyEscape:
		l.anchor = -1
		return false
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return l.handleRune(ev.Rune())
	default:
		return false
	}
	l.track()
	return false
}

func (l *List[T]) handleRune(r rune) (quit bool) {
	switch r {
	case 'q':
		return true
	case 'j':
		l.vp.MoveCursor(1)
		l.track()
	case 'k':
		l.vp.MoveCursor(-1)
		l.track()
	case ' ':
		if _, err := l.coll.Toggle(l.vp.Cursor()); err != nil {
			l.logger.Warn("toggle selection failed", "row", l.vp.Cursor(), "error", err)
		}
	case 'v':
		l.rangeSelect()
	case 'c':
		l.coll.ClearSelection()
		l.anchor = -1
	case 'r':
		if err := l.coll.Reset(); err != nil {
			l.logger.Warn("reset failed", "error", err)
		}
	}
	return false
}

// rangeSelect sets the anchor on the first press and selects from the
// anchor to the cursor on the second.
func (l *List[T]) rangeSelect() {
	cursor := l.vp.Cursor()
	if l.anchor < 0 {
		l.anchor = cursor
		return
	}
	iv := interval.Interval{First: min(l.anchor, cursor), Last: max(l.anchor, cursor)}
	l.anchor = -1
	if err := l.coll.Select(iv); err != nil {
		l.logger.Warn("range selection failed", "range", iv.String(), "error", err)
	}
}

// layout sizes the viewport to the screen, leaving one row for the status
// line.
func (l *List[T]) layout() {
	_, h := l.screen.Size()
	l.vp.Resize(h - 1)
	l.track()
}

// track reports the viewport's tracked ranges to the collection.
func (l *List[T]) track() {
	if err := l.coll.ReportTrackedRanges(l.vp.TrackedRanges()); err != nil {
		l.logger.Debug("report tracked ranges failed", "error", err)
	}
}

// Draw renders the visible rows and the status line.
func (l *List[T]) Draw() {
	w, h := l.screen.Size()
	l.screen.Clear()

	top := l.vp.Top()
	cursor := l.vp.Cursor()
	total := l.vp.Total()
	for y := 0; y < h-1; y++ {
		row := top + y
		if total != viewport.TotalUnknown && row >= total {
			break
		}
		l.drawRow(y, w, row, row == cursor)
	}
	l.drawStatus(h-1, w)
	l.screen.Show()
}

func (l *List[T]) drawRow(y, w, row int, isCursor bool) {
	selected := l.coll.IsSelected(row)

	style := l.styles.Normal
	text := Placeholder
	if item, ok := l.coll.Item(row); ok {
		text = l.format(item)
		if selected {
			style = l.styles.Selected
		}
	} else {
		style = l.styles.Placeholder
	}

	mark := "  "
	switch {
	case selected && row == l.anchor:
		mark = "*>"
	case selected:
		mark = "* "
	case row == l.anchor:
		mark = " >"
	}
	line := fmt.Sprintf("%s%6d  %s", mark, row, text)

	if isCursor {
		style = l.styles.Cursor
		// Extend the cursor bar to the full width.
		if pad := w - uniseg.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
	}
	drawText(l.screen, 0, y, w, line, style)
}

func (l *List[T]) drawStatus(y, w int) {
	total := "?"
	if n := l.vp.Total(); n != viewport.TotalUnknown {
		total = fmt.Sprint(n)
	}
	status := fmt.Sprintf(" %d/%s  selected %d", l.vp.Cursor()+1, total, l.coll.SelectedCount())
	if l.anchor >= 0 {
		status += fmt.Sprintf("  range from %d", l.anchor)
	}
	if l.lastErr != nil {
		status += "  error: " + l.lastErr.Error()
	}
	if pad := w - uniseg.StringWidth(status); pad > 0 {
		status += strings.Repeat(" ", pad)
	}
	drawText(l.screen, 0, y, w, status, l.styles.Status)
}

// drawText writes s at (x, y) one grapheme cluster at a time, stopping at
// the right edge.
func drawText(screen tcell.Screen, x, y, w int, s string, style tcell.Style) {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		width := g.Width()
		if x+width > w {
			return
		}
		runes := g.Runes()
		screen.SetContent(x, y, runes[0], runes[1:], style)
		x += max(width, 1)
	}
}
