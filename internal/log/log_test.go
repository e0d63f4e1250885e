// Copyright 2020 Northern.tech AS
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
package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestWithComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(logrus.DebugLevel)
	Log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	WithComponent("engine").Info("opened handle")

	require.Contains(t, buf.String(), `component=engine`)
	require.Contains(t, buf.String(), "opened handle")
}

func TestPackageLevelHelpersReachGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(logrus.DebugLevel)
	Log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	Debugf("d=%d", 1)
	Infof("i=%d", 2)
	Warnf("w=%d", 3)
	Errorf("e=%d", 4)

	out := buf.String()
	for _, want := range []string{"d=1", "i=2", "w=3", "e=4"} {
		require.True(t, strings.Contains(out, want), "missing %q in %q", want, out)
	}
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}

	SetLevel(logrus.WarnLevel)
	Debugf("should not appear")
	Infof("should not appear either")
	Warnf("should appear")

	out := buf.String()
	require.False(t, strings.Contains(out, "should not appear"))
	require.True(t, strings.Contains(out, "should appear"))
}
