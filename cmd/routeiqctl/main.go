package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"routeiq/internal/config"
	"routeiq/internal/db"
	"routeiq/internal/dbinit"
	"routeiq/internal/grid"
	"routeiq/internal/routing"
	"routeiq/internal/sim"
	"routeiq/internal/store"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "route":
		routeCmd(os.Args[2:])
	case "incidents":
		incidentsCmd(os.Args[2:])
	case "migrate":
		migrateCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println(`routeiqctl - RouteIQ operator CLI

Usage:
  routeiqctl route <sx> <sy> <gx> <gy> [-blocked "x,y;x,y"] [-width 20] [-height 20] [-json]
  routeiqctl incidents list [-limit 50] [-config config.yaml] [-db postgres://...] [-json]
  routeiqctl migrate [-config config.yaml] [-db postgres://...]

Examples:
  routeiqctl route 0 0 19 19
  routeiqctl route 0 0 4 0 -blocked "2,0;2,1"
  routeiqctl incidents list -limit 10 -db postgres://routeiq@localhost:5432/routeiq`)
}

func routeCmd(args []string) {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	var (
		blocked = fs.String("blocked", "", `blocked cells, e.g. "2,0;2,1"`)
		width   = fs.Int("width", 20, "grid width")
		height  = fs.Int("height", 20, "grid height")
		asJSON  = fs.Bool("json", false, "force JSON output")
	)
	_ = fs.Parse(reorderArgs(args))

	rest := fs.Args()
	if len(rest) != 4 {
		fmt.Println("usage: routeiqctl route <sx> <sy> <gx> <gy> [-blocked \"x,y;...\"]")
		os.Exit(2)
	}
	coords := make([]int, 4)
	for i, s := range rest {
		n, err := strconv.Atoi(s)
		if err != nil {
			fmt.Printf("coordinate %q is not an integer\n", s)
			os.Exit(2)
		}
		coords[i] = n
	}
	cells, err := parseBlocked(*blocked)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	pf := sim.NewPathFinder(*width, *height, cells)
	svc := routing.New(pf, time.Minute, nil)
	res, err := svc.Optimal(context.Background(), routing.Request{
		From: grid.Point{X: coords[0], Y: coords[1]},
		To:   grid.Point{X: coords[2], Y: coords[3]},
	})
	if err != nil {
		log.Fatalf("route: %v", err)
	}

	if *asJSON || !isTerminal() {
		writeJSON(os.Stdout, res)
		return
	}
	printRoute(os.Stdout, res)
}

func incidentsCmd(args []string) {
	if len(args) < 1 || args[0] != "list" {
		usage()
		os.Exit(2)
	}
	fs := flag.NewFlagSet("incidents list", flag.ExitOnError)
	var (
		cfgPath    = fs.String("config", "config.yaml", "path to config file")
		dbOverride = fs.String("db", "", "override database connection URL")
		limit      = fs.Int("limit", store.DefaultLimit, "maximum incidents to list")
		asJSON     = fs.Bool("json", false, "force JSON output")
	)
	_ = fs.Parse(reorderArgs(args[1:]))

	cfg := loadConfig(*cfgPath)
	appURL, err := resolveDBURL(cfg, *dbOverride)
	if err != nil {
		log.Fatalf("db url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, appURL, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	evs, err := store.NewPostgres(pool).List(ctx, store.KindIncident, *limit)
	if err != nil {
		log.Fatalf("list incidents: %v", err)
	}

	if *asJSON || !isTerminal() {
		writeJSON(os.Stdout, evs)
		return
	}
	printIncidents(os.Stdout, evs)
}

func migrateCmd(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	var (
		cfgPath    = fs.String("config", "config.yaml", "path to config file")
		dbOverride = fs.String("db", "", "override database connection URL")
	)
	_ = fs.Parse(reorderArgs(args))

	cfg := loadConfig(*cfgPath)
	appURL, err := resolveDBURL(cfg, *dbOverride)
	if err != nil {
		log.Fatalf("db url: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	applied, err := dbinit.Migrate(ctx, appURL)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(applied) == 0 {
		fmt.Println("ok: schema up to date")
		return
	}
	fmt.Printf("ok: applied %d migration(s)\n", len(applied))
	for _, f := range applied {
		fmt.Printf("  %s\n", f)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil || !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("config: %v", err)
		}
		// No file: defaults plus environment are good enough for the CLI.
	}
	return cfg
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func printRoute(w io.Writer, res routing.Result) {
	fmt.Fprintf(w, "length: %d\n", res.Length)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tX\tY")
	for i, p := range res.Path {
		fmt.Fprintf(tw, "%d\t%d\t%d\n", i, p.X, p.Y)
	}
	_ = tw.Flush()
}

func printIncidents(w io.Writer, evs []store.Event) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "no incidents recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCELL\tSTATE\tRECORDED")
	for _, ev := range evs {
		state := "open"
		if ev.Cleared() {
			state = "cleared"
		}
		fmt.Fprintf(tw, "%s\t(%d,%d)\t%s\t%s\n", ev.ID, ev.X, ev.Y, state, ev.CreatedAt.UTC().Format(time.RFC3339))
	}
	_ = tw.Flush()
}

// parseBlocked reads "x,y;x,y" into a cell set. Empty input yields nil.
func parseBlocked(s string) (map[grid.Point]bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[grid.Point]bool)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		xs, ys, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("blocked cell %q: want x,y", part)
		}
		x, errX := strconv.Atoi(strings.TrimSpace(xs))
		y, errY := strconv.Atoi(strings.TrimSpace(ys))
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("blocked cell %q: coordinates must be integers", part)
		}
		out[grid.Point{X: x, Y: y}] = true
	}
	return out, nil
}

func resolveDBURL(cfg *config.Config, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	return cfg.Database.AppURL()
}

func reorderArgs(args []string) []string {
	var flags []string
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) > 0 && arg != "-" && arg != "--" && arg[0] == '-' && !isNumber(arg) {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && !isBoolFlag(arg) && i+1 < len(args) && (len(args[i+1]) == 0 || args[i+1][0] != '-' || isNumber(args[i+1])) {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, arg)
		}
	}
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		flags = append(flags, "--")
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	return strings.TrimLeft(arg, "-") == "json"
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
