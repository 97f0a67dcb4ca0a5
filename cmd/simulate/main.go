// Command simulate compares Barnes-Hut repulsion against the exact
// all-pairs sum on random points, then runs the force-directed layout on a
// random graph and reports how it cools.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gonum.org/v1/gonum/floats"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/config"
	"github.com/onnwee/barnes-hut-tree/internal/forces"
	"github.com/onnwee/barnes-hut-tree/internal/layout"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	n := flag.Int("n", 2000, "number of points")
	degree := flag.Int("degree", 2, "random edges per node")
	steps := flag.Int("steps", cfg.LayoutIterations, "layout steps to run")
	seed := flag.Int64("seed", 1, "random seed; 0 seeds from the clock")
	brute := flag.Bool("brute", true, "also time the exact all-pairs sum")
	flag.Parse()

	logger.Init(cfg.LogLevel, cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	params := layout.ParamsFromConfig(cfg)
	params.Seed = *seed

	if err := compare(params, *n, *brute); err != nil {
		log.Fatalf("compare: %v", err)
	}
	if err := run(params, *n, *degree, *steps); err != nil {
		log.Fatalf("layout: %v", err)
	}
}

func compare(p layout.Params, n int, brute bool) error {
	rng := utils.NewRand(p.Seed)
	raw := make([][]float64, n)
	pts := make([]bhtree.Vector, n)
	for i := range raw {
		raw[i] = utils.RandomPosition(rng, p.Dims, p.HalfWidth)
		pts[i] = raw[i]
	}

	start := time.Now()
	cfg := bhtree.DefaultConfig(p.Dims)
	cfg.MinHalfWidth = p.MinHalfWidth
	tree, err := bhtree.NewWithPoints(cfg, raw)
	if err != nil {
		return err
	}
	build := time.Since(start)
	stats := tree.Stats()
	fmt.Printf("tree: %s points, %s nodes, depth %d, built in %v\n",
		humanize.Comma(int64(stats.Points)), humanize.Comma(int64(stats.Nodes)), stats.Depth, build)

	fn := forces.Repulsion(p.K, p.C)
	far := forces.Theta(p.Theta)
	approx := make([][]float64, n)
	start = time.Now()
	for i := range pts {
		approx[i], _ = forces.Apply(tree, i, far, fn)
	}
	treeTime := time.Since(start)
	fmt.Printf("barnes-hut (theta %s): %v\n", strconv.FormatFloat(p.Theta, 'g', -1, 64), treeTime)

	if !brute {
		return nil
	}
	start = time.Now()
	exact := layout.BruteForceRepulsion(pts, p.K, p.C)
	bruteTime := time.Since(start)

	var errSum, normSum float64
	diff := make([]float64, p.Dims)
	for i := range exact {
		floats.SubTo(diff, approx[i], exact[i])
		errSum += forces.Norm(diff)
		normSum += forces.Norm(exact[i])
	}
	rel := 0.0
	if normSum > 0 {
		rel = errSum / normSum
	}
	fmt.Printf("all-pairs: %v (%sx slower), relative error %s%%\n",
		bruteTime, humanize.FtoaWithDigits(float64(bruteTime)/float64(treeTime), 3), humanize.FtoaWithDigits(rel*100, 3))
	return nil
}

func run(p layout.Params, n, degree, steps int) error {
	e, err := layout.NewEngine(p)
	if err != nil {
		return err
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "n" + strconv.Itoa(i)
		if err := e.AddNode(ids[i], nil); err != nil {
			return err
		}
	}
	rng := utils.NewRand(p.Seed + 1)
	for i := range ids {
		for k := 0; k < degree; k++ {
			j := rng.Intn(n)
			if j == i {
				continue
			}
			if err := e.AddEdge(ids[i], ids[j]); err != nil {
				return err
			}
		}
	}
	fmt.Printf("layout: %s nodes, %s edges, %d steps\n",
		humanize.Comma(int64(e.Len())), humanize.Comma(int64(e.EdgeCount())), steps)

	ctx := context.Background()
	every := steps / 10
	if every < 1 {
		every = 1
	}
	start := time.Now()
	for k := 0; k < steps; k++ {
		res, err := e.Step(ctx)
		if err != nil {
			return err
		}
		if k%every == 0 || res.Converged {
			fmt.Printf("  step %4d  T=%-8s energy=%-12s moved=%s  %v\n", res.Step,
				humanize.FtoaWithDigits(res.Temperature, 4), humanize.FtoaWithDigits(res.Energy, 5),
				humanize.Comma(int64(res.Moved)), res.Duration)
		}
		if res.Converged {
			break
		}
	}
	fmt.Printf("done in %v\n", time.Since(start))
	if err := e.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "tree invalid after layout:", err)
		return err
	}
	return nil
}
