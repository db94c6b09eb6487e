package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/annel0/voxcity/internal/world"
	"github.com/annel0/voxcity/internal/world/citygen"
	"github.com/annel0/voxcity/internal/world/snapshot"
)

func main() {
	var (
		command = flag.String("cmd", "generate", "Command: generate, preview, stats, recipes")
		recipe  = flag.String("recipe", citygen.RecipeClassic, "Map recipe (see -cmd recipes)")
		name    = flag.String("name", "generated", "Map name written into the snapshot")
		width   = flag.Int("width", 40, "Map width in cells")
		height  = flag.Int("height", 40, "Map height in cells")
		seed    = flag.Int64("seed", 0, "Generator seed (recipes that ignore it stay deterministic)")
		out     = flag.String("out", "", "Output file for the JSON snapshot (empty or '-' prints to stdout)")
		in      = flag.String("in", "", "Snapshot file to read instead of generating")
		level   = flag.Int("level", -1, "Level to render in preview (-1 renders the height map)")
	)
	flag.Parse()

	switch *command {
	case "generate":
		if err := runGenerate(&GenerateOptions{
			Recipe: *recipe,
			Name:   *name,
			Width:  *width,
			Height: *height,
			Seed:   *seed,
			Out:    *out,
		}); err != nil {
			log.Fatalf("❌ Generate failed: %v", err)
		}

	case "preview":
		if err := runPreview(&PreviewOptions{
			In:     *in,
			Recipe: *recipe,
			Width:  *width,
			Height: *height,
			Seed:   *seed,
			Level:  *level,
		}); err != nil {
			log.Fatalf("❌ Preview failed: %v", err)
		}

	case "stats":
		if err := runStats(*in); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	case "recipes":
		fmt.Println("📋 Available recipes:")
		for _, r := range citygen.Recipes() {
			fmt.Printf("  %s\n", r)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: generate, preview, stats, recipes")
		os.Exit(1)
	}
}

type GenerateOptions struct {
	Recipe string
	Name   string
	Width  int
	Height int
	Seed   int64
	Out    string
}

type PreviewOptions struct {
	In     string
	Recipe string
	Width  int
	Height int
	Seed   int64
	Level  int
}

// runGenerate собирает карту по рецепту и пишет снапшот в файл или stdout.
func runGenerate(opts *GenerateOptions) error {
	grid, ramps, err := citygen.Generate(opts.Recipe, opts.Width, opts.Height, opts.Seed)
	if err != nil {
		return err
	}

	snap := snapshot.FromGrid(opts.Name, grid)
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	if opts.Out == "" || opts.Out == "-" {
		fmt.Println(string(data))
	} else {
		if err := os.WriteFile(opts.Out, data, 0644); err != nil {
			return err
		}
		fmt.Printf("💾 Snapshot written to %s (%d bytes)\n", opts.Out, len(data))
	}

	fmt.Printf("🏙️ Map %q: recipe %s, %dx%dx%d, blocks: %d, ramps: %d\n",
		opts.Name, opts.Recipe, grid.Width(), grid.Height(), grid.Levels(),
		grid.CountOccupied(), len(ramps))
	return nil
}

// runPreview печатает карту в ASCII: либо карту высот, либо срез уровня.
func runPreview(opts *PreviewOptions) error {
	grid, err := loadOrGenerate(opts.In, opts.Recipe, opts.Width, opts.Height, opts.Seed)
	if err != nil {
		return err
	}

	if opts.Level >= 0 {
		if opts.Level >= grid.Levels() {
			return fmt.Errorf("level %d out of range (map has %d)", opts.Level, grid.Levels())
		}
		fmt.Printf("🗺️ Level %d slice (#: block, letter: ramp side, .: empty)\n", opts.Level)
		printLevel(grid, opts.Level)
		return nil
	}

	fmt.Println("🗺️ Height map (column heights 0-9, letter: ramp side)")
	printHeightMap(grid)
	return nil
}

// runStats печатает сводку по снапшоту: размеры, заполненность уровней, рампы.
func runStats(in string) error {
	if in == "" {
		return fmt.Errorf("stats requires -in <snapshot.json>")
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	grid, err := snap.ToGrid()
	if err != nil {
		return err
	}

	fmt.Printf("📊 Map %q\n", snap.Name)
	fmt.Printf("Size: %dx%d, levels: %d\n", snap.Width, snap.Height, snap.MaxLevels)
	fmt.Printf("Created: %s\n", snap.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Occupied blocks: %d of %d (%.1f%%)\n",
		grid.CountOccupied(), snap.Width*snap.Height*snap.MaxLevels,
		100*float64(grid.CountOccupied())/float64(snap.Width*snap.Height*snap.MaxLevels))

	fmt.Println("\nBy level:")
	for z := 0; z < grid.Levels(); z++ {
		count := 0
		for y := 0; y < grid.Height(); y++ {
			for x := 0; x < grid.Width(); x++ {
				if grid.Occupied(x, y, z) {
					count++
				}
			}
		}
		if count == 0 {
			continue
		}
		fmt.Printf("  z=%d: %d blocks\n", z, count)
	}

	if len(snap.Ramps) > 0 {
		fmt.Printf("\nRamps: %d\n", len(snap.Ramps))
		for _, r := range snap.Ramps {
			kind := "steep"
			if r.IsShallow {
				kind = "shallow"
			}
			fmt.Printf("  (%d,%d,z=%d) %s, width %d, height %d, %s\n",
				r.X, r.Y, r.Z, r.Direction, r.Width, r.Height, kind)
		}
	}
	return nil
}

func loadOrGenerate(in, recipe string, width, height int, seed int64) (*world.VoxelGrid, error) {
	if in == "" {
		grid, _, err := citygen.Generate(recipe, width, height, seed)
		return grid, err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	return snap.ToGrid()
}

// printHeightMap печатает высоты колонн; y растет вниз по консоли.
func printHeightMap(g *world.VoxelGrid) {
	var sb strings.Builder
	for y := g.Height() - 1; y >= 0; y-- {
		for x := 0; x < g.Width(); x++ {
			sb.WriteByte(cellChar(g, x, y, -1))
		}
		sb.WriteByte('\n')
	}
	fmt.Print(sb.String())
}

func printLevel(g *world.VoxelGrid, z int) {
	var sb strings.Builder
	for y := g.Height() - 1; y >= 0; y-- {
		for x := 0; x < g.Width(); x++ {
			sb.WriteByte(cellChar(g, x, y, z))
		}
		sb.WriteByte('\n')
	}
	fmt.Print(sb.String())
}

// cellChar возвращает символ ячейки: рампа обозначается стороной (n/e/s/w),
// блок решёткой либо цифрой высоты, пустота точкой.
func cellChar(g *world.VoxelGrid, x, y, z int) byte {
	rampZ := z
	if rampZ < 0 {
		rampZ = 0
	}
	if r, ok := g.RampAt(x, y, rampZ); ok {
		switch r.Direction {
		case world.DirectionNorth:
			return 'n'
		case world.DirectionEast:
			return 'e'
		case world.DirectionSouth:
			return 's'
		default:
			return 'w'
		}
	}

	if z >= 0 {
		if g.Occupied(x, y, z) {
			return '#'
		}
		return '.'
	}

	h := g.ColumnHeight(x, y)
	if h == 0 {
		return '.'
	}
	if h > 9 {
		h = 9
	}
	return byte('0' + h)
}
