package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/onnwee/barnes-hut-tree/internal/config"
)

// ErrInvalidParams is wrapped by Params.Validate.
var ErrInvalidParams = errors.New("layout: invalid params")

// Params tune the force-directed layout.
type Params struct {
	Dims int
	// K is the ideal edge length and C the relative repulsion strength, as
	// in Hu's spring-electrical model.
	K, C float64
	// Theta is the Barnes-Hut opening criterion. Zero makes every force
	// exact.
	Theta float64
	// Iterations is the length of the cooling schedule. After that many
	// steps without a structural change the layout is converged.
	Iterations int
	// MaxStep is the initial temperature, the largest move a node may make
	// in one step.
	MaxStep float64
	// MinHalfWidth and HalfWidth configure the underlying tree.
	MinHalfWidth float64
	HalfWidth    float64
	// Seed drives random placement of nodes added without a position. Zero
	// seeds from the clock.
	Seed int64
}

// DefaultParams returns a 2D layout with unit edge length.
func DefaultParams() Params {
	return Params{
		Dims:         2,
		K:            1,
		C:            0.2,
		Theta:        0.5,
		Iterations:   50,
		MaxStep:      10,
		MinHalfWidth: 1e-8,
		HalfWidth:    100,
	}
}

// ParamsFromConfig maps the LAYOUT_* settings onto Params.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Dims:         cfg.LayoutDims,
		K:            cfg.LayoutK,
		C:            cfg.LayoutC,
		Theta:        cfg.LayoutTheta,
		Iterations:   cfg.LayoutIterations,
		MaxStep:      cfg.LayoutMaxStep,
		MinHalfWidth: cfg.LayoutMinHalfWidth,
		HalfWidth:    cfg.LayoutHalfWidth,
	}
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate reports the first unusable parameter.
func (p Params) Validate() error {
	switch {
	case p.Dims < 1:
		return fmt.Errorf("%w: dims must be at least 1, got %d", ErrInvalidParams, p.Dims)
	case !finitePositive(p.K):
		return fmt.Errorf("%w: k must be finite and positive, got %v", ErrInvalidParams, p.K)
	case !finitePositive(p.C):
		return fmt.Errorf("%w: c must be finite and positive, got %v", ErrInvalidParams, p.C)
	case p.Theta < 0 || math.IsNaN(p.Theta) || math.IsInf(p.Theta, 0):
		return fmt.Errorf("%w: theta must be finite and >= 0, got %v", ErrInvalidParams, p.Theta)
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidParams, p.Iterations)
	case !finitePositive(p.MaxStep):
		return fmt.Errorf("%w: max step must be finite and positive, got %v", ErrInvalidParams, p.MaxStep)
	case !finitePositive(p.MinHalfWidth):
		return fmt.Errorf("%w: min half-width must be finite and positive, got %v", ErrInvalidParams, p.MinHalfWidth)
	case !finitePositive(p.HalfWidth):
		return fmt.Errorf("%w: half-width must be finite and positive, got %v", ErrInvalidParams, p.HalfWidth)
	}
	return nil
}

// temperature is the move cap for the given step of the cooling schedule.
func (p Params) temperature(step int) float64 {
	if step >= p.Iterations {
		return 0
	}
	return p.MaxStep * (1 - float64(step)/float64(p.Iterations))
}
