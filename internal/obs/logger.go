// Package obs provides the structured logger threaded through this
// module via context.Context, adapted from the pack's logrus-based
// logger to this domain's fields (platform, conversation, batch token)
// instead of a multi-tenant request id.
package obs

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

type formatter struct{}

func (formatter) Format(e *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(e.Level.String())
	ts := e.Time.Format("2006-01-02 15:04:05.000")

	caller := ""
	if v, ok := e.Data["caller"]; ok {
		caller = fmt.Sprintf("%v", v)
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var fields strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&fields, "%s=%v ", k, e.Data[k])
	}

	msg := e.Message
	if caller != "" {
		msg = caller + " | " + msg
	}
	return []byte(fmt.Sprintf("%-5s [%s] %s %s\n", level, ts, strings.TrimSpace(fields.String()), msg)), nil
}

func init() {
	logrus.SetFormatter(formatter{})
}

// FromContext retrieves the logger attached to ctx, or a fresh
// default-configured one if none was attached yet.
func FromContext(ctx context.Context) *logrus.Entry {
	if v := ctx.Value(ctxKey{}); v != nil {
		if e, ok := v.(*logrus.Entry); ok {
			return e
		}
	}
	l := logrus.New()
	l.SetFormatter(formatter{})
	l.SetLevel(logrus.GetLevel())
	return logrus.NewEntry(l)
}

// WithField attaches a single field, returning a derived context.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).WithField(key, value))
}

// WithFields attaches several fields at once.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).WithFields(fields))
}

// SetLevel adjusts the package default level used by freshly created
// loggers (i.e. contexts with none attached yet).
func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

func addCaller(e *logrus.Entry, skip int) *logrus.Entry {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return e
	}
	fn := "?"
	if f := runtime.FuncForPC(pc); f != nil {
		parts := strings.Split(path.Base(f.Name()), ".")
		fn = parts[len(parts)-1]
	}
	return e.WithField("caller", fmt.Sprintf("%s:%d[%s]", path.Base(file), line, fn))
}

func Debug(ctx context.Context, args ...interface{}) { addCaller(FromContext(ctx), 2).Debug(args...) }
func Info(ctx context.Context, args ...interface{})  { addCaller(FromContext(ctx), 2).Info(args...) }
func Warn(ctx context.Context, args ...interface{})  { addCaller(FromContext(ctx), 2).Warn(args...) }
func Error(ctx context.Context, args ...interface{}) { addCaller(FromContext(ctx), 2).Error(args...) }

func Debugf(ctx context.Context, format string, args ...interface{}) {
	addCaller(FromContext(ctx), 2).Debugf(format, args...)
}
func Infof(ctx context.Context, format string, args ...interface{}) {
	addCaller(FromContext(ctx), 2).Infof(format, args...)
}
func Warnf(ctx context.Context, format string, args ...interface{}) {
	addCaller(FromContext(ctx), 2).Warnf(format, args...)
}
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addCaller(FromContext(ctx), 2).Errorf(format, args...)
}

// ErrorWithFields logs err at error level with additional structured
// fields, matching the pack's ErrorWithFields convenience.
func ErrorWithFields(ctx context.Context, err error, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	addCaller(FromContext(ctx), 2).WithFields(fields).Error("error")
}
