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

// Command vpidemo drives a vpi.Runtime against the in-memory reference
// model: it is packaging around the runtime, not part of the core ABI
// surface itself.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/govpi/callback"
	"github.com/probeum/govpi/config"
	"github.com/probeum/govpi/log"
	"github.com/probeum/govpi/value"
	"github.com/probeum/govpi/vpi"
)

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML fixture describing the demo model's scopes and variables",
}

func main() {
	app := cli.NewApp()
	app.Name = "vpidemo"
	app.Usage = "exercise the VPI runtime against an in-memory reference model"
	app.Flags = []cli.Flag{configFileFlag}
	app.Commands = []cli.Command{
		runCommand,
		dumpCommand,
		consoleCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("vpidemo failed", "err", err)
	}
}

func loadRuntime(ctx *cli.Context) (*vpi.Runtime, *config.Fixture, error) {
	path := ctx.GlobalString(configFileFlag.Name)
	if path == "" {
		return nil, nil, fmt.Errorf("vpidemo: -config is required")
	}
	fx, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	m := config.Build(fx, false, os.Args)
	return vpi.New(m, 1024), fx, nil
}

var runCommand = cli.Command{
	Name:  "run",
	Usage: "load a fixture, register a value-change logger on every variable, and advance simulated time",
	Flags: []cli.Flag{configFileFlag, cli.Uint64Flag{Name: "steps", Value: 10}},
	Action: func(ctx *cli.Context) error {
		rt, fx, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		for _, sf := range fx.Scopes {
			scopeHandle := rt.HandleByName(sf.Name, nil)
			if scopeHandle == nil {
				continue
			}
			iter := rt.Iterate(vpi.IterReg, scopeHandle)
			for {
				h := rt.Scan(iter)
				if h == nil {
					break
				}
				rt.RegisterCB(callback.ReasonValueChange, func(cb *callback.Callback, data *value.Value) int32 {
					log.Info("value changed", "reason", cb.Reason.String())
					return 0
				}, nil, value.IntVal, h, 0)
			}
		}
		steps := ctx.Uint64("steps")
		for i := uint64(0); i < steps; i++ {
			rt.DispatchTimed(i)
			rt.DispatchValueChange()
		}
		return nil
	},
}

var dumpCommand = cli.Command{
	Name:  "dump",
	Usage: "render the scope/variable tree as a table",
	Flags: []cli.Flag{configFileFlag},
	Action: func(ctx *cli.Context) error {
		_, fx, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Scope", "Variable", "Bits", "Dims", "Direction"})
		for _, sf := range fx.Scopes {
			for _, vf := range sf.Variables {
				table.Append([]string{
					sf.Name, vf.Name,
					fmt.Sprintf("%d", vf.Bits),
					fmt.Sprintf("%d", vf.Dims),
					vf.Direction,
				})
			}
		}
		table.Render()
		return nil
	},
}

var consoleCommand = cli.Command{
	Name:  "console",
	Usage: "interactive console: navigate scopes, firing interactive-mode callback reasons",
	Flags: []cli.Flag{configFileFlag},
	Action: func(ctx *cli.Context) error {
		rt, fx, err := loadRuntime(ctx)
		if err != nil {
			return err
		}
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		rt.DispatchReason(callback.ReasonEnterInteractive)
		defer rt.DispatchReason(callback.ReasonExitInteractive)

		current := ""
		if len(fx.Scopes) > 0 {
			current = fx.Scopes[0].Name
		}
		for {
			prompt := fmt.Sprintf("vpi(%s)> ", current)
			text, err := line.Prompt(prompt)
			if err != nil {
				return nil // EOF or Ctrl-D/Ctrl-C
			}
			line.AppendHistory(text)
			text = strings.TrimSpace(text)
			switch {
			case text == "quit" || text == "exit":
				return nil
			case strings.HasPrefix(text, "scope "):
				current = strings.TrimSpace(strings.TrimPrefix(text, "scope "))
				rt.DispatchReason(callback.ReasonInteractiveScopeChange)
			case text == "":
				continue
			default:
				h := rt.HandleByName(current+"."+text, nil)
				if h == nil {
					fmt.Println("not found")
					continue
				}
				v, ok := rt.GetValue(h, value.IntVal)
				if !ok {
					fmt.Println("<error>")
					continue
				}
				fmt.Println(v.Integer)
			}
		}
	},
}
