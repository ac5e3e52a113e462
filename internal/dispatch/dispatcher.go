// Package dispatch turns user actions into editor transitions and repository
// mutations, one at a time, and pushes the resulting view to presenters.
//
// Concurrency model: a single goroutine owns the repository, the editor and the
// theme preference. Callers hand it messages through Send, so the note
// collection only ever has one operation in flight.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/editor"
	"github.com/starford/keepnotes/internal/models"
	"github.com/starford/keepnotes/internal/notes"
	"github.com/starford/keepnotes/internal/theme"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("dispatch: closed")

// View is what presenters render: the visible notes for the active query.
type View struct {
	Query  string          `json:"query"`
	Notes  []models.Note   `json:"notes"`
	Total  int             `json:"total"`
	Theme  theme.Mode      `json:"theme"`
	Editor editor.Snapshot `json:"editor"`
}

// Presenter renders views. Present is called on the dispatcher goroutine and
// must not block.
type Presenter interface {
	Present(View)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(View)

// Present implements Presenter.
func (f PresenterFunc) Present(v View) { f(v) }

// Result is returned for every message.
type Result struct {
	Note     *models.Note
	Notes    []models.Note
	Total    int
	Editor   editor.Snapshot
	Theme    theme.Mode
	Revision string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPresenter adds a presenter.
func WithPresenter(p Presenter) Option {
	return func(d *Dispatcher) {
		d.presenters = append(d.presenters, p)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

type request struct {
	ctx  context.Context
	msg  Msg
	resp chan response
}

type response struct {
	res Result
	err error
}

// Dispatcher serializes messages against one repository.
type Dispatcher struct {
	repo       *notes.Repository
	editor     *editor.State
	theme      *theme.Preference
	presenters []Presenter
	logger     *slog.Logger

	query string

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New starts a dispatcher. Call Init to perform the initial load.
func New(repo *notes.Repository, pref *theme.Preference, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:    repo,
		theme:   pref,
		logger:  slog.Default(),
		reqCh:   make(chan request),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.editor = editor.New(repo, d.logger)

	go d.run()
	return d
}

// Init loads notes and theme from the store. A failed load is reported but
// leaves the dispatcher running on the cache it has.
func (d *Dispatcher) Init(ctx context.Context) error {
	_, err := d.Send(ctx, Reload{})
	return err
}

// Send submits msg and waits for its result. Once accepted a message runs to
// completion even if ctx is cancelled; the caller just stops waiting.
func (d *Dispatcher) Send(ctx context.Context, msg Msg) (Result, error) {
	if d.closed.Load() {
		return Result{}, ErrClosed
	}
	req := request{ctx: context.WithoutCancel(ctx), msg: msg, resp: make(chan response, 1)}
	select {
	case d.reqCh <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-d.stopped:
		return Result{}, ErrClosed
	}
	select {
	case r := <-req.resp:
		return r.res, r.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops the loop after the message in flight, if any.
func (d *Dispatcher) Close() {
	if d.closed.CompareAndSwap(false, true) {
		close(d.stopCh)
	}
	<-d.stopped
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.stopCh:
			return
		case req := <-d.reqCh:
			res, err := d.handle(req.ctx, req.msg)
			if err != nil {
				d.logger.Debug("dispatch: message failed",
					slog.String("msg", req.msg.name()),
					slog.String("error", err.Error()))
			}
			res.Editor = d.editor.Snapshot()
			res.Theme = d.theme.Current()
			res.Revision = d.repo.Revision()
			res.Total = d.repo.Len()
			req.resp <- response{res: res, err: err}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg Msg) (Result, error) {
	switch m := msg.(type) {
	case NewNote:
		d.editor.NewNote()
		return Result{}, nil
	case OpenNote:
		d.editor.Open(m.ID)
		return Result{}, nil
	case SetTitle:
		return Result{}, d.editor.SetTitle(m.Title)
	case SetContent:
		return Result{}, d.editor.SetContent(m.Content)
	case SetColor:
		return Result{}, d.editor.SetColor(m.Color)
	case Save:
		n, err := d.editor.Save(ctx)
		d.afterMutation(err)
		if err != nil {
			return Result{}, err
		}
		return Result{Note: &n}, nil
	case Cancel:
		d.editor.Cancel()
		return Result{}, nil
	case DeleteCurrent:
		err := d.editor.Delete(ctx, m.Confirm)
		d.afterMutation(err)
		return Result{}, err
	case EditorStatus:
		return Result{}, nil

	case Search:
		d.query = m.Query
		visible := d.present()
		return Result{Notes: visible}, nil
	case ListNotes:
		return Result{Notes: d.repo.List()}, nil
	case GetNote:
		n, ok := d.repo.Get(m.ID)
		if !ok {
			return Result{}, fmt.Errorf("dispatch: get %d: %w", m.ID, apperr.ErrNotFound)
		}
		return Result{Note: &n}, nil
	case Reload:
		_, nerr := d.repo.Load(ctx)
		_, terr := d.theme.Load(ctx)
		// An unreadable theme keeps the current one and must not hide the notes.
		d.afterMutation(nerr)
		return Result{Notes: d.repo.Search(d.query)}, errors.Join(nerr, terr)
	case CreateNote:
		n, err := d.repo.Create(ctx, m.Title, m.Content, m.Color)
		d.afterMutation(err)
		if err != nil {
			return Result{}, err
		}
		return Result{Note: &n}, nil
	case UpdateNote:
		n, err := d.repo.Update(ctx, m.ID, m.Title, m.Content, m.Color)
		d.afterMutation(err)
		if err != nil {
			return Result{}, err
		}
		return Result{Note: &n}, nil
	case DeleteNote:
		err := d.repo.Delete(ctx, m.ID)
		d.afterMutation(err)
		return Result{}, err

	case SetTheme:
		err := d.theme.Set(ctx, m.Mode)
		d.afterMutation(err)
		return Result{}, err
	case ToggleTheme:
		_, err := d.theme.Toggle(ctx)
		d.afterMutation(err)
		return Result{}, err

	default:
		return Result{}, fmt.Errorf("dispatch: unknown message %T", msg)
	}
}

// afterMutation re-renders unless the store failed, in which case presenters
// keep showing the previous state. NotFound still re-renders because the failed
// operation refreshed the cache from the store.
func (d *Dispatcher) afterMutation(err error) {
	if err == nil || (!apperr.IsStorage(err) && errors.Is(err, apperr.ErrNotFound)) {
		d.present()
	}
}

func (d *Dispatcher) present() []models.Note {
	visible := d.repo.Search(d.query)
	if len(d.presenters) == 0 {
		return visible
	}
	v := View{
		Query:  d.query,
		Notes:  visible,
		Total:  d.repo.Len(),
		Theme:  d.theme.Current(),
		Editor: d.editor.Snapshot(),
	}
	for _, p := range d.presenters {
		p.Present(v)
	}
	return visible
}
