package oserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/Seann-Moser/oauth2core/oauth/oerror"
	"github.com/Seann-Moser/oauth2core/utils"
)

type options struct {
	cfg      Config
	logger   *slog.Logger
	tokens   TokenGenerator
	handlers map[string]ResponseTypeHandler
	now      func() time.Time
}

type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) {
		cfg.applyDefaults()
		o.cfg = cfg
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTokenGenerator replaces the random generator used for codes and tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *options) { o.tokens = g }
}

// WithResponseTypeHandler registers or replaces the handler for a response_type.
func WithResponseTypeHandler(responseType string, h ResponseTypeHandler) Option {
	return func(o *options) {
		if o.handlers == nil {
			o.handlers = make(map[string]ResponseTypeHandler)
		}
		o.handlers[responseType] = h
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o *options) generateToken(ctx context.Context) (string, error) {
	if o.tokens != nil {
		return o.tokens.GenerateToken(ctx)
	}
	return utils.GenerateToken(o.cfg.TokenLength)
}

// callbackError maps a host callback failure and logs the ones the client will
// only see as server_error.
func (o *options) callbackError(op string, err error) *oerror.Error {
	oe := oerror.From(err)
	switch oe.Code {
	case oerror.ServerError, oerror.TemporarilyUnavailable:
		o.logger.Error("host callback failed", "op", op, "error", err)
	}
	return oe
}
