package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/terrain/noise"
	"github.com/gogpu/terrain/render"
	"github.com/gogpu/terrain/render/preview"
	"github.com/gogpu/terrain/store"
	"github.com/gogpu/terrain/stream"
)

var out = message.NewPrinter(language.English)

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("validate: want exactly one graph")
	}
	g, err := loadGraph(fs.Arg(0))
	if err != nil {
		return err
	}
	plan, err := noise.DefaultPlanCache().Compile(g)
	if err != nil {
		var ce noise.CompileError
		if errors.As(err, &ce) {
			return fmt.Errorf("%s: node %q: %w", fs.Arg(0), ce.Node(), err)
		}
		return err
	}
	out.Printf("%s: ok, %d nodes, %d steps, material %v, fingerprint %s\n",
		fs.Arg(0), len(g.Nodes), plan.Len(), plan.HasMaterial(), plan.Fingerprint())
	return nil
}

func runPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	var (
		graph   = fs.String("graph", "hills", "graph preset or file")
		outPath = fs.String("out", "preview.png", "output PNG")
		y       = fs.Float64("y", 0, "slice height in world units")
		x0      = fs.Int64("x", 0, "first sample x, in samples")
		z0      = fs.Int64("z", 0, "first sample z, in samples")
		size    = fs.Int("size", 256, "samples per side")
		spacing = fs.Float64("spacing", 1, "sample spacing in world units")
		scale   = fs.Int("scale", 2, "pixels per sample")
		smooth  = fs.Bool("smooth", false, "smooth scaling")
	)
	fs.Parse(args)

	g, err := loadGraph(*graph)
	if err != nil {
		return err
	}
	plan, err := noise.DefaultPlanCache().Compile(g)
	if err != nil {
		return err
	}
	img, err := preview.Slice(nil, plan, preview.Horizontal(*x0, *z0, *size, *size, *y, *spacing), preview.Options{})
	if err != nil {
		return err
	}
	rgba := preview.Render(img, preview.Options{
		Width:  *size * *scale,
		Height: *size * *scale,
		Smooth: *smooth,
		Label:  fmt.Sprintf("%s y=%g", *graph, *y),
	})
	if err := preview.WritePNG(*outPath, rgba); err != nil {
		return err
	}
	out.Printf("wrote %s (%dx%d)\n", *outPath, rgba.Bounds().Dx(), rgba.Bounds().Dy())
	return nil
}

func runBake(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	var (
		cfgPath = fs.String("config", "", "YAML configuration (defaults when empty)")
		graph   = fs.String("graph", "", "graph preset or file (overrides engine.graph)")
		path    = fs.String("path", "0,0,0", "focal path x,y,z:x,y,z:...")
		frames  = fs.Int("frames", 120, "frames spent along the path")
		frame   = fs.Duration("frame", 16*time.Millisecond, "frame interval")
		timeout = fs.Duration("timeout", time.Minute, "time allowed for the final chunks")
	)
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *graph != "" {
		cfg.Engine.Graph = *graph
	}
	points, err := parsePath(*path)
	if err != nil {
		return err
	}
	g, err := loadGraph(cfg.Engine.Graph)
	if err != nil {
		return err
	}

	pipe, err := render.NewPipeline(render.NullDevice{})
	if err != nil {
		return err
	}
	rec := render.NewRecorder()
	s, err := stream.NewFromGraph(cfg.Streaming, cfg.Layout.Volume(), g, nil, rec, stream.WithSurface(cfg.Surface))
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	tick := time.NewTicker(*frame)
	defer tick.Stop()
	for i := range max(*frames, 1) {
		s.Update(along(points, float64(i)/float64(max(*frames-1, 1))))
		<-tick.C
	}
	focal := points[len(points)-1]
	deadline := time.Now().Add(*timeout)
	for {
		s.Update(focal)
		if st := s.Stats(); st.InFlight == 0 && st.Pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bake: chunks still in flight after %v", *timeout)
		}
		<-tick.C
	}

	st, rs := s.Stats(), rec.Stats()
	out.Printf("baked %d frames in %v\n", *frames, time.Since(start).Round(time.Millisecond))
	out.Printf("chunks: %d resident, %d published, %d evicted, %d cancelled, %d failed, %d retried\n",
		st.Resident, st.Published, st.Evicted, st.Cancelled, st.Failed, st.Retries)
	out.Printf("meshes: %d triangles, %d vertex bytes, %d index bytes (stride %d, %v)\n",
		rs.Triangles, rs.VertexBytes, rs.IndexBytes, pipe.Vertex.ArrayStride, pipe.IndexFormat)
	return nil
}

// parsePath parses "x,y,z:x,y,z:..." into focal points.
func parsePath(s string) ([][3]float64, error) {
	var points [][3]float64
	for _, part := range strings.Split(s, ":") {
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("path point %q: want x,y,z", part)
		}
		var p [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("path point %q: bad coordinate %q", part, f)
			}
			p[i] = v
		}
		points = append(points, p)
	}
	return points, nil
}

// along returns the point at fraction t of the polyline, with each segment
// taking an equal share.
func along(points [][3]float64, t float64) [3]float64 {
	if len(points) == 1 || t <= 0 {
		return points[0]
	}
	if t >= 1 {
		return points[len(points)-1]
	}
	f := t * float64(len(points)-1)
	i := int(f)
	u := f - float64(i)
	a, b := points[i], points[i+1]
	return [3]float64{a[0] + (b[0]-a[0])*u, a[1] + (b[1]-a[1])*u, a[2] + (b[2]-a[2])*u}
}

func runStore(args []string) error {
	if len(args) == 0 {
		return errors.New("store: want put, get or list")
	}
	fs := flag.NewFlagSet("store "+args[0], flag.ExitOnError)
	var (
		cfgPath = fs.String("config", "", "YAML configuration (defaults when empty)")
		db      = fs.String("db", "", "database path (overrides store.path)")
		version = fs.Int("version", 0, "version to get (latest when 0)")
		outPath = fs.String("out", "", "write the graph here instead of stdout")
		yamlOut = fs.Bool("yaml", false, "print YAML instead of JSON")
	)
	fs.Parse(args[1:])

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *db != "" {
		cfg.Store.Path = *db
	}
	st, err := store.FromConfig(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	switch args[0] {
	case "put":
		for _, ref := range fs.Args() {
			g, err := loadGraph(ref)
			if err != nil {
				return err
			}
			rec, err := st.SaveGraph(ctx, g)
			if err != nil {
				return err
			}
			out.Printf("%s v%d %s (%d bytes, %d stored)\n", rec.Name, rec.Version, rec.Fingerprint[:12], rec.Size, rec.Stored)
		}
		return nil

	case "get":
		if fs.NArg() != 1 {
			return errors.New("store get: want one graph name")
		}
		var g noise.Graph
		if *version > 0 {
			g, _, err = st.LoadVersion(ctx, fs.Arg(0), *version)
		} else {
			g, _, err = st.LoadGraph(ctx, fs.Arg(0))
		}
		if err != nil {
			return err
		}
		var data []byte
		if *yamlOut {
			data, err = noise.EncodeYAML(g)
		} else {
			data, err = noise.Encode(g)
		}
		if err != nil {
			return err
		}
		if *outPath != "" {
			return os.WriteFile(*outPath, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err

	case "list":
		recs, err := st.ListGraphs(ctx)
		if err != nil {
			return err
		}
		for _, r := range recs {
			out.Printf("%-16s v%-4d %s %8d bytes  %s\n", r.Name, r.Version, r.Fingerprint[:12], r.Size, r.SavedAt.Format(time.RFC3339))
		}
		return nil
	}
	return fmt.Errorf("store: unknown action %q", args[0])
}
