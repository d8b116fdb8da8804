package dbprovider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/polyglot/config"
)

const (
	tintAttrCodeBundle   = 6
	tintAttrCodeDuration = 214
	tintAttrCodeQuery    = 2
)

type scopeKey struct{}

// queryScope names the bundle level a statement works on.
type queryScope struct {
	op     string
	bundle string
	locale string
}

func withScope(ctx context.Context, op, bundle string, locale language.Tag) context.Context {
	return context.WithValue(ctx, scopeKey{}, queryScope{op: op, bundle: bundle, locale: locale.String()})
}

func scopeFrom(ctx context.Context) (queryScope, bool) {
	sc, ok := ctx.Value(scopeKey{}).(queryScope)
	return sc, ok
}

// messageLogger reports message table statements. Failures are always
// logged, slow statements at warn level and every statement when cfg asks
// for query tracing.
type messageLogger struct {
	log           *util.LogEntry
	traceQueries  bool
	slowThreshold time.Duration
}

func queryLogger(ctx context.Context, cfg config.ConfigurationDatabase) glogger.Interface {
	l := &messageLogger{
		log:           util.Log(ctx),
		slowThreshold: config.DefaultSlowQueryThreshold,
	}
	if cfg != nil {
		l.traceQueries = cfg.CanDatabaseTraceQueries()
		l.slowThreshold = cfg.GetDatabaseSlowQueryLogThreshold()
	}
	return l
}

func (l *messageLogger) LogMode(_ glogger.LogLevel) glogger.Interface {
	return l
}

func (l *messageLogger) Info(ctx context.Context, msg string, data ...any) {
	l.log.WithContext(ctx).Info(msg, data...)
}

func (l *messageLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.log.WithContext(ctx).Warn(msg, data...)
}

func (l *messageLogger) Error(ctx context.Context, msg string, data ...any) {
	l.log.WithContext(ctx).Error(msg, data...)
}

func (l *messageLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	log := l.log.WithContext(ctx)

	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	switch {
	case failed:
	case slow && log.Enabled(ctx, slog.LevelWarn):
	case l.traceQueries && log.Enabled(ctx, slog.LevelInfo):
	default:
		return
	}

	sql, rows := fc()
	attrs := []any{
		tint.Attr(tintAttrCodeDuration, slog.String("duration", elapsed.String())),
		tint.Attr(tintAttrCodeQuery, slog.String("query", sql)),
		slog.Int64("rows", rows),
	}
	if sc, ok := scopeFrom(ctx); ok {
		attrs = append(attrs,
			slog.String("op", sc.op),
			tint.Attr(tintAttrCodeBundle, slog.String("bundle", sc.bundle)),
			slog.String("locale", sc.locale),
		)
	}
	log = log.With(attrs...)
	defer log.Release()

	switch {
	case failed:
		log.WithError(err).Error("message query failed")
	case slow:
		log.WithField("threshold", l.slowThreshold.String()).Warn("message query is slow")
	default:
		log.Info("message query executed")
	}
}
