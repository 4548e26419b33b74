// Copyright 2024 The Xtract Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the context-first, leveled logging convention used
// throughout this repository: every call site passes a context.Context so
// that per-unit tags (table, ri, node) attached with WithTags ride along
// into the formatted line. The backend is logrus; callers never import it
// directly.
package log

import (
	"context"
	"fmt"

	"github.com/cockroachdb/logtags"
	"github.com/sirupsen/logrus"
)

var std = logrus.StandardLogger()

func init() {
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// WithTags returns a child context carrying additional structured tags that
// every log call against it will render as a prefix, e.g.
// WithTags(ctx, "table", "T1", "node", "n2") makes subsequent Infof calls
// emit "[table=T1,node=n2] ...".
func WithTags(ctx context.Context, kv ...interface{}) context.Context {
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = logtags.AddTag(ctx, fmt.Sprint(kv[i]), kv[i+1])
	}
	return ctx
}

func prefix(ctx context.Context, format string) string {
	buf := logtags.FromContext(ctx)
	if buf == nil || buf.Len() == 0 {
		return format
	}
	tags := buf.Get()
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.String()
	}
	out := "["
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out + "] " + format
}

// Infof logs at info level.
func Infof(ctx context.Context, format string, args ...interface{}) {
	std.Infof(prefix(ctx, format), args...)
}

// Warningf logs at warn level.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	std.Warnf(prefix(ctx, format), args...)
}

// Errorf logs at error level.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	std.Errorf(prefix(ctx, format), args...)
}

// Fatalf logs at fatal level and terminates the process, matching the
// teacher's log.Fatalf convention for unrecoverable startup errors.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	std.Fatalf(prefix(ctx, format), args...)
}

// SetLevel adjusts the global log verbosity, wired to the CLI's --verbosity
// flag.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}
