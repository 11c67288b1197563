// Command client is a terminal player for PathWars duels. It connects to a
// server, joins a match by code, and exposes the planning commands through a
// small interactive prompt.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"go.uber.org/zap"

	"github.com/pathwars/duel-backend/internal/client"
	"github.com/pathwars/duel-backend/internal/engine"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <server addr>\n", os.Args[0])
		os.Exit(1)
	}
	addr := os.Args[1]

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Path", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("Wars", pterm.FgLightMagenta.ToStyle()),
	).Render()

	name, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Enter your player name").Show()
	code, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Enter the match code").Show()
	pterm.Println()

	handlers := client.Handlers{
		OnWelcome: func(role string, _ engine.MatchState) {
			pterm.Success.Printfln("Joined as %s. Waiting for the preparation phase.", role)
		},
		OnRejected: func(seq int, kind engine.ErrorKind, msg string) {
			pterm.Warning.Printfln("Command %d rejected (%s): %s", seq, kind, msg)
		},
		OnPhaseChanged: func(phase engine.Phase, round int) {
			pterm.Info.Printfln("Round %d: %s", round, phase)
		},
		OnCheckpoint: func(cp engine.Checkpoint) {
			pterm.Printfln("  [%5.1fs] %s: base %+d hp, %+d gold, killed %d, leaked %d",
				cp.SimTime, cp.PlayerID, cp.BaseHPDelta, cp.MoneyDelta, cp.UnitsKilled, cp.UnitsLeaked)
		},
		OnMatchOver: func(winnerID, reason string) {
			if winnerID == "" {
				pterm.Info.Printfln("Match over: draw (%s)", reason)
			} else {
				pterm.Success.Printfln("Match over: %s wins (%s)", winnerID, reason)
			}
		},
	}

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + addr + "...")
	c, err := client.Dial(addr, code, name, handlers, zap.NewNop())
	if err != nil {
		spinner.Fail()
		pterm.Error.Printfln("connect: %v", err)
		os.Exit(1)
	}
	spinner.Success()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	for {
		select {
		case err := <-runDone:
			if err != nil {
				pterm.Error.Printfln("disconnected: %v", err)
				os.Exit(1)
			}
			return
		default:
		}

		line, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("> ").Show()
		if !dispatch(c, strings.Fields(line)) {
			c.Close()
			return
		}
	}
}

// dispatch runs one prompt command. It returns false when the user quits.
func dispatch(c *client.Client, args []string) bool {
	if len(args) == 0 {
		return true
	}
	var err error
	switch args[0] {
	case "quit", "exit":
		return false
	case "help":
		printHelp()
	case "state":
		printState(c)
	case "ready":
		_, err = c.Ready(true)
	case "unready":
		_, err = c.Ready(false)
	case "tower":
		if len(args) != 4 {
			pterm.Warning.Println("usage: tower <dean|calculus|physics|statistics> <x> <y>")
			break
		}
		x, e1 := strconv.Atoi(args[2])
		y, e2 := strconv.Atoi(args[3])
		if e1 != nil || e2 != nil {
			pterm.Warning.Println("coordinates must be integers")
			break
		}
		_, err = c.PlaceTower(engine.TowerType(args[1]), x, y)
	case "point":
		err = pointCommand(c, args[1:])
	case "merc":
		if len(args) != 3 {
			pterm.Warning.Println("usage: merc <reinforced_student|swift_x|tank_pi> <count>")
			break
		}
		n, e := strconv.Atoi(args[2])
		if e != nil {
			pterm.Warning.Println("count must be an integer")
			break
		}
		_, err = c.SendMercenary(engine.MercenaryType(args[1]), n, opponentID(c))
	case "research":
		if len(args) != 2 {
			pterm.Warning.Println("usage: research <lagrange_interpolation|spline_interpolation|tangent_control>")
			break
		}
		_, err = c.Research(engine.ResearchType(args[1]))
	case "method":
		if len(args) != 2 {
			pterm.Warning.Println("usage: method <linear|lagrange|spline>")
			break
		}
		_, err = c.SetInterpolation(engine.InterpMethod(args[1]))
	default:
		pterm.Warning.Printfln("unknown command %q, try help", args[0])
	}
	if err != nil {
		pterm.Error.Printfln("send: %v", err)
	}
	return true
}

func pointCommand(c *client.Client, args []string) error {
	usage := func() { pterm.Warning.Println("usage: point add <x> <y> | point move <index> <x> <y> | point remove <index>") }
	if len(args) == 0 {
		usage()
		return nil
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			usage()
			return nil
		}
		x, e1 := strconv.ParseFloat(args[1], 64)
		y, e2 := strconv.ParseFloat(args[2], 64)
		if e1 != nil || e2 != nil {
			usage()
			return nil
		}
		_, err := c.ModifyPoint(engine.PointAdd, x, y, 0)
		return err
	case "move":
		if len(args) != 4 {
			usage()
			return nil
		}
		idx, e0 := strconv.Atoi(args[1])
		x, e1 := strconv.ParseFloat(args[2], 64)
		y, e2 := strconv.ParseFloat(args[3], 64)
		if e0 != nil || e1 != nil || e2 != nil {
			usage()
			return nil
		}
		_, err := c.ModifyPoint(engine.PointMove, x, y, idx)
		return err
	case "remove":
		if len(args) != 2 {
			usage()
			return nil
		}
		idx, e := strconv.Atoi(args[1])
		if e != nil {
			usage()
			return nil
		}
		_, err := c.ModifyPoint(engine.PointRemove, 0, 0, idx)
		return err
	default:
		usage()
		return nil
	}
}

func opponentID(c *client.Client) string {
	_, s := c.State()
	return s.Opponent(c.PlayerID())
}

func printState(c *client.Client) {
	if !c.Started() {
		pterm.Info.Println("waiting for the second player")
		return
	}
	version, s := c.State()
	pterm.Info.Printfln("version %d, round %d, phase %s", version, s.Round, s.Phase)
	rows := pterm.TableData{{"Player", "HP", "Gold", "Towers", "Route pts", "Method", "Ready"}}
	for _, id := range s.Order {
		p := s.Players[id]
		rows = append(rows, []string{
			id,
			strconv.Itoa(p.BaseHP),
			strconv.Itoa(p.Money),
			strconv.Itoa(len(p.Towers)),
			strconv.Itoa(len(p.Route.Points)),
			string(p.Route.Method),
			strconv.FormatBool(p.Ready),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printHelp() {
	pterm.Println(`commands:
  tower <type> <x> <y>      place a tower on your field
  point add <x> <y>         add a point to the opponent's route
  point move <i> <x> <y>    move route point i
  point remove <i>          remove route point i
  merc <type> <count>       queue mercenaries into the opponent's wave
  research <type>           buy a research
  method <linear|lagrange|spline>  switch route interpolation
  ready / unready           toggle phase readiness
  state                     print the match table
  quit`)
}
