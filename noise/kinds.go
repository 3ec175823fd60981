package noise

import (
	"errors"
	"fmt"
	"math"
)

// Parameter defaults applied when a field is absent.
const (
	DefaultFrequency   = 1.0
	DefaultOctaves     = 4
	DefaultPersistence = 0.5
	DefaultLacunarity  = 2.0
	DefaultStrength    = 1.0
	DefaultScale       = 1.0
	DefaultInMax       = 1.0
	DefaultPoints      = 1
	MaxOctaves         = 16
	// MaxPoints bounds the feature points per cellular cell.
	MaxPoints = 8
)

type inputSpec struct {
	name     string
	shape    Shape
	required bool
	// deferred inputs are not evaluated once per sample but re-run by the
	// consuming node at positions it chooses (fractal octaves).
	deferred bool
}

type kindSpec struct {
	inputs   []inputSpec
	output   func(p *Params) Shape
	validate func(n *Node) error
	// atLeastOne lists inputs of which at least one must be connected.
	atLeastOne []string
}

func scalarIn(names ...string) []inputSpec {
	in := make([]inputSpec, len(names))
	for i, n := range names {
		in[i] = inputSpec{name: n, shape: Scalar, required: true}
	}
	return in
}

var domainIn = []inputSpec{{name: "domain", shape: Vector}}

var kinds = map[Kind]kindSpec{
	KindConstant:   {validate: validateConstant},
	KindCoordinate: {output: coordinateShape, validate: validateCoordinate},
	KindPerlin:     {inputs: domainIn, validate: validateNoise},
	KindValue:      {inputs: domainIn, validate: validateNoise},
	KindCellular:   {inputs: domainIn, validate: validateCellular},
	KindRandom:     {inputs: domainIn, validate: validateNoise},
	KindFractal: {
		inputs: []inputSpec{
			{name: "domain", shape: Vector},
			{name: "base", shape: Scalar, deferred: true},
		},
		validate: validateFractal,
	},
	KindAdd:        {inputs: scalarIn("a", "b")},
	KindSub:        {inputs: scalarIn("a", "b")},
	KindMul:        {inputs: scalarIn("a", "b")},
	KindDiv:        {inputs: scalarIn("a", "b")},
	KindMin:        {inputs: scalarIn("a", "b")},
	KindMax:        {inputs: scalarIn("a", "b")},
	KindBlend:      {inputs: scalarIn("a", "b", "t")},
	KindScaleBias:  {inputs: scalarIn("source"), validate: validateFinite},
	KindAbs:        {inputs: scalarIn("source")},
	KindInvert:     {inputs: scalarIn("source")},
	KindRidge:      {inputs: scalarIn("source")},
	KindSelect:     {inputs: scalarIn("a", "b", "control"), validate: validateFinite},
	KindWarp: {
		inputs: []inputSpec{
			{name: "domain", shape: Vector},
			{name: "x", shape: Scalar},
			{name: "y", shape: Scalar},
			{name: "z", shape: Scalar},
		},
		output:     func(*Params) Shape { return Vector },
		validate:   validateWarp,
		atLeastOne: []string{"x", "y", "z"},
	},
	KindRemap:      {inputs: scalarIn("source"), validate: validateRemap},
	KindHeightBias: {inputs: scalarIn("source"), validate: validateHeightBias},
	KindOutput: {
		inputs: []inputSpec{
			{name: "density", shape: Scalar, required: true},
			{name: "material", shape: Scalar},
		},
	},
}

// Kinds returns every supported node kind.
func Kinds() []Kind {
	return []Kind{
		KindConstant, KindCoordinate, KindPerlin, KindValue, KindCellular,
		KindRandom, KindFractal, KindAdd, KindSub, KindMul, KindDiv, KindMin, KindMax,
		KindBlend, KindScaleBias, KindAbs, KindInvert, KindRidge, KindSelect,
		KindWarp, KindRemap, KindHeightBias, KindOutput,
	}
}

// OutputShape returns the shape of the field a node produces.
func (n *Node) OutputShape() Shape {
	spec, ok := kinds[n.Kind]
	if !ok || spec.output == nil {
		return Scalar
	}
	return spec.output(&n.Params)
}

func (s kindSpec) input(name string) (inputSpec, bool) {
	for _, in := range s.inputs {
		if in.name == name {
			return in, true
		}
	}
	return inputSpec{}, false
}

func coordinateShape(p *Params) Shape {
	if p.Axis == "xyz" {
		return Vector
	}
	return Scalar
}

func axisIndex(axis string) (int, bool) {
	switch axis {
	case "x":
		return 0, true
	case "y":
		return 1, true
	case "z":
		return 2, true
	}
	return 0, false
}

var errNotFinite = errors.New("value is NaN or infinite")

func finite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errNotFinite
		}
	}
	return nil
}

func validateFinite(n *Node) error {
	p := &n.Params
	return finite(p.Value, get(p.Scale, DefaultScale), p.Bias, p.Threshold)
}

func validateConstant(n *Node) error {
	return finite(n.Params.Value)
}

func validateCoordinate(n *Node) error {
	if n.Params.Axis == "xyz" {
		return nil
	}
	if _, ok := axisIndex(n.Params.Axis); !ok {
		return fmt.Errorf("axis %q must be x, y, z or xyz", n.Params.Axis)
	}
	return nil
}

func validateNoise(n *Node) error {
	f := get(n.Params.Frequency, DefaultFrequency)
	if err := finite(f); err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("frequency %v must not be negative", f)
	}
	return nil
}

func validateCellular(n *Node) error {
	switch n.Params.Feature {
	case "", "distance", "value":
	default:
		return fmt.Errorf("feature %q must be distance or value", n.Params.Feature)
	}
	if err := validatePoints(n.Params.Points); err != nil {
		return err
	}
	return validateNoise(n)
}

func validatePoints(p int) error {
	if p < 0 || p > MaxPoints {
		return fmt.Errorf("points %d out of range [0, %d]", p, MaxPoints)
	}
	return nil
}

func validateFractal(n *Node) error {
	p := &n.Params
	switch p.Source {
	case "", KindPerlin, KindValue, KindCellular, KindRandom:
	default:
		return fmt.Errorf("source %q must be perlin, value, cellular or random", p.Source)
	}
	if _, ok := n.Inputs["base"]; ok && p.Source != "" {
		return fmt.Errorf("source %q and a base input are mutually exclusive", p.Source)
	}
	if err := validatePoints(p.Points); err != nil {
		return err
	}
	if p.Octaves < 0 || p.Octaves > MaxOctaves {
		return fmt.Errorf("octaves %d out of range [1, %d]", p.Octaves, MaxOctaves)
	}
	pers, lac := get(p.Persistence, DefaultPersistence), get(p.Lacunarity, DefaultLacunarity)
	if err := finite(pers, lac); err != nil {
		return err
	}
	if pers < 0 || lac < 0 {
		return errors.New("persistence and lacunarity must not be negative")
	}
	return validateNoise(n)
}

func validatePolicy(p Policy) error {
	switch p {
	case "", Clamp, Wrap:
		return nil
	}
	return fmt.Errorf("policy %q must be clamp or wrap", p)
}

func validateWarp(n *Node) error {
	strength := get(n.Params.Strength, DefaultStrength)
	if err := finite(strength); err != nil {
		return err
	}
	if strength < 0 {
		return fmt.Errorf("strength %v must not be negative", strength)
	}
	return validatePolicy(n.Params.Policy)
}

func validateRemap(n *Node) error {
	p := &n.Params
	inMax := get(p.InMax, DefaultInMax)
	if err := finite(p.InMin, inMax); err != nil {
		return err
	}
	if p.InMin == inMax {
		return fmt.Errorf("in_min and in_max are both %v", p.InMin)
	}
	prev := math.Inf(-1)
	for i, pt := range p.Curve {
		if err := finite(pt[0], pt[1]); err != nil {
			return fmt.Errorf("curve point %d: %w", i, err)
		}
		if pt[0] < 0 || pt[0] > 1 {
			return fmt.Errorf("curve point %d: t=%v outside [0,1]", i, pt[0])
		}
		if pt[0] <= prev {
			return fmt.Errorf("curve point %d: t=%v is not ascending", i, pt[0])
		}
		prev = pt[0]
	}
	return validatePolicy(p.Policy)
}

func validateHeightBias(n *Node) error {
	p := &n.Params
	if p.Axis != "" {
		if _, ok := axisIndex(p.Axis); !ok {
			return fmt.Errorf("axis %q must be x, y or z", p.Axis)
		}
	}
	if err := finite(p.Lower, p.Upper); err != nil {
		return err
	}
	if p.Upper <= p.Lower {
		return fmt.Errorf("upper %v must be greater than lower %v", p.Upper, p.Lower)
	}
	return nil
}
