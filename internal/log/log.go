// Copyright 2016 Mender Software AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

// Package log is a thin wrapper over logrus, in the style of the
// teacher's github.com/mendersoftware/log package: a single
// process-wide *Logger, package-level helpers, and a "component" field
// attached per caller instead of a full module push/pop stack.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger embeds logrus.Logger so callers can reach the full logrus API
// (SetOutput, SetFormatter, ...) when needed, while the package-level
// helpers below cover the common case.
type Logger struct {
	logrus.Logger
}

// Log is the global logger used by the package-level helpers and by
// WithComponent.
var Log *Logger

func init() {
	Log = New()
}

func New() *Logger {
	l := &Logger{Logger: *logrus.New()}
	l.Out = os.Stderr
	return l
}

func SetLevel(level logrus.Level) {
	Log.Level = level
}

func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithComponent returns an entry tagged with component (e.g. "engine",
// "device", "bench"), the way the teacher's logger tags log lines with
// the active module.
func WithComponent(component string) *logrus.Entry {
	return Log.WithField("component", component)
}

func Debugf(format string, args ...interface{}) { Log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Log.Errorf(format, args...) }
