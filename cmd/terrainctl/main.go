// Command terrainctl validates, previews, bakes and stores terrain graphs.
//
// Usage:
//
//	terrainctl validate <graph>
//	terrainctl preview -graph hills -y 0 -out hills.png
//	terrainctl bake -config terrain.yaml -path 0,0,0:512,0,0 -frames 600
//	terrainctl store put|get|list -config terrain.yaml -db terrain.db [args]
//
// A graph argument is a preset name (flat, hills, caves) or a JSON or YAML
// document path.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/terrain"
	"github.com/gogpu/terrain/config"
	"github.com/gogpu/terrain/internal/wide"
	"github.com/gogpu/terrain/noise"
)

var commands = map[string]func(args []string) error{
	"validate": runValidate,
	"preview":  runPreview,
	"bake":     runBake,
	"store":    runStore,
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("terrainctl: ")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	run, ok := commands[flag.Arg(0)]
	if !ok {
		log.Printf("unknown command %q", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	if err := run(flag.Args()[1:]); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: terrainctl <validate|preview|bake|store> [flags]\n")
	fmt.Fprintf(os.Stderr, "graphs: a preset (%s) or a .json/.yaml file\n", strings.Join(noise.PresetNames(), ", "))
}

// loadConfig reads path, or returns the defaults when path is empty, and
// applies its engine settings.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	level, err := cfg.Engine.Level()
	if err != nil {
		return cfg, err
	}
	terrain.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	b, err := cfg.Engine.Backend()
	if err != nil {
		return cfg, err
	}
	if b != wide.Auto {
		if err := wide.SetDefault(b); err != nil {
			return cfg, err
		}
	}
	terrain.Logger().Info("lanes selected", "backend", wide.Active().String())
	return cfg, nil
}

// loadGraph resolves a preset name or reads a graph document.
func loadGraph(ref string) (noise.Graph, error) {
	if ref == "" {
		return noise.Graph{}, fmt.Errorf("no graph given")
	}
	if g, ok := noise.Preset(ref); ok {
		return g, nil
	}
	return noise.ReadFile(ref)
}
