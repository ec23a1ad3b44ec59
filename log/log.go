// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the key/value structured logger used throughout the
// runtime. It mirrors the call convention of
// log.Info("message", "key", value, "key2", value2) rather than the
// printf-style convention of the standard library's log package.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the severity of a log record, most severe first.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERRO"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DBUG"
	case LvlTrace:
		return "TRCE"
	default:
		return "????"
	}
}

var lvlColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgRed, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgMagenta),
}

// Logger emits leveled, key/value-annotated records, optionally prefixed
// with static context established by New.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
}

var (
	mu        sync.Mutex
	out       io.Writer = colorable.NewColorableStdout()
	useColor            = isatty.IsTerminal(os.Stdout.Fd())
	minLevel            = LvlInfo
)

// SetOutput redirects all log output. Intended for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that is actually written.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// New returns a Logger whose every record carries ctx as a key/value prefix.
func New(ctx ...interface{}) Logger {
	return &logger{ctx: append([]interface{}{}, ctx...)}
}

func (l *logger) New(ctx ...interface{}) Logger {
	merged := append(append([]interface{}{}, l.ctx...), ctx...)
	return &logger{ctx: merged}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > minLevel {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	tag := lvl.String()
	if useColor {
		if c, ok := lvlColor[lvl]; ok {
			tag = c.Sprint(tag)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[%s] %s", tag, ts, msg)
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", all[i], all[i+1])
	}
	if lvl == LvlCrit {
		fmt.Fprintf(&sb, " stack=%v", stack.Trace().TrimRuntime())
	}
	sb.WriteString("\n")
	io.WriteString(out, sb.String())
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

var root = New()

// Trace logs at the root logger using the package-level convenience API,
// the form used throughout the runtime (log.Info("msg", "k", v)).
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
