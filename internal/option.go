package internal

import (
	"io"

	"github.com/starford/keepnotes/internal/dispatch"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	presenters []dispatch.Presenter
	logOutput  io.Writer
	version    string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithPresenter registers a presenter that receives every view.
func WithPresenter(p dispatch.Presenter) Option {
	return func(a *application) {
		a.presenters = append(a.presenters, p)
	}
}

// WithLogOutput redirects structured logs.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(defaultLog io.Writer, opts []Option) (*application, error) {
	app := &application{logOutput: defaultLog, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	return app, nil
}
