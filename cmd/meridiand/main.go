package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"

	"github.com/meridian-automation/engine/internal/config"
	"github.com/meridian-automation/engine/internal/registry"
)

var (
	// Version is the version number, injected via ldflags with git build.
	Version = "dev"

	// ConfigFileName is the file mkconf writes and run/graph read.
	ConfigFileName = "meridiand.yml"
)

func root() {
	str := `meridiand runs the device graph engine: a declarative config
of sensors, outputs, controls and notifications, wired into a running graph.

Usage:
	meridiand <command>

Commands:
	run
	graph
	mkconf
	version`
	fmt.Println(str)
}

func mkconf() {
	if err := config.Write(ConfigFileName, config.Config{}); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("meridiand version %v\n", Version)
}

// buildGraph loads the config file and runs the builder's four phases
// behind a spinner, so a human operator watching the terminal can see a
// slow startup is making progress.
func buildGraph() (*config.Graph, error) {
	cfg, err := config.Load(ConfigFileName)
	if err != nil {
		return nil, err
	}

	sp, spErr := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " building device graph",
		SuffixAutoColon: true,
		Message:         "loading configuration",
	})
	useSpinner := spErr == nil
	if useSpinner {
		sp.Start()
		sp.Message("wiring devices")
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	g := config.Build(cfg, logger)

	if useSpinner {
		if len(g.Errors) > 0 {
			sp.StopFailMessage(fmt.Sprintf("%d device(s) failed to wire", len(g.Errors)))
			sp.StopFail()
		} else {
			sp.StopMessage("device graph ready")
			sp.Stop()
		}
	}

	for _, e := range g.Errors {
		logWarn(logger, e.Error())
	}
	return g, nil
}

func run() {
	g, err := buildGraph()
	if err != nil {
		log.Fatal(err)
	}
	g.Start()
	defer g.Stop()

	log.Printf("engine running with %d device(s)", g.Registry.Len())
	select {}
}

func graph() {
	g, err := buildGraph()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(registry.DOT(g.Registry))
}

// logWarn writes a severity-colored warning line; the color applies only
// to the prefix so piped output stays greppable.
func logWarn(logger *log.Logger, msg string) {
	prefix := color.New(color.FgYellow).Sprint("WARN: ")
	logger.Print(prefix + msg)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "mkconf":
		mkconf()
	case "run":
		run()
	case "graph":
		graph()
	case "version":
		pversion()
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}
