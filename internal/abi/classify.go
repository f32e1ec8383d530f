package abi

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"lowir/internal/layout"
	"lowir/internal/target"
	"lowir/internal/types"
)

// Classifier decides pass modes. Results are cached per (type, convention)
// and per signature; the same inputs always classify identically, whatever
// the call site.
type Classifier struct {
	Layouts *layout.Engine
	Target  *target.Target

	args  sync.Map // argKey -> *ArgAbi
	fns   sync.Map // types.TypeID -> *FnAbi
	group singleflight.Group
}

type argKey struct {
	Type types.TypeID
	Conv string
	Ret  bool
}

// New creates a classifier sharing the layout engine's target.
func New(le *layout.Engine) *Classifier {
	return &Classifier{Layouts: le, Target: le.Target}
}

// FnAbi classifies every parameter and the return value of sig.
func (c *Classifier) FnAbi(sig types.TypeID) (*FnAbi, error) {
	if v, ok := c.fns.Load(sig); ok {
		return v.(*FnAbi), nil //nolint:errcheck // only *FnAbi is stored
	}
	v, err, _ := c.group.Do(strconv.FormatUint(uint64(sig), 10), func() (any, error) {
		fa, err := c.classifyFn(sig)
		if err != nil {
			return nil, err
		}
		actual, _ := c.fns.LoadOrStore(sig, fa)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FnAbi), nil //nolint:errcheck // only *FnAbi is returned
}

func (c *Classifier) classifyFn(sig types.TypeID) (*FnAbi, error) {
	info, ok := c.Layouts.Types.FnInfo(sig)
	if !ok {
		return nil, &AbiError{Kind: AbiErrNotAFunction, Type: sig}
	}
	conv, err := c.convention(string(info.Conv))
	if err != nil {
		return nil, err
	}
	fa := &FnAbi{Sig: sig, Conv: conv, Variadic: info.Variadic, Args: make([]ArgAbi, len(info.Params))}
	for i, p := range info.Params {
		a, err := c.ArgAbi(p, string(info.Conv))
		if err != nil {
			return nil, err
		}
		fa.Args[i] = a
	}
	fa.Ret, err = c.RetAbi(info.Result, string(info.Conv))
	if err != nil {
		return nil, err
	}
	return fa, nil
}

func (c *Classifier) convention(name string) (*target.Convention, error) {
	conv, ok := c.Target.Convention(name)
	if !ok {
		return nil, &AbiError{Kind: AbiErrUnsupportedConv, Conv: name}
	}
	return conv, nil
}

// ArgAbi classifies t as a parameter under the named convention.
func (c *Classifier) ArgAbi(t types.TypeID, conv string) (ArgAbi, error) {
	return c.cached(argKey{Type: t, Conv: conv}, false)
}

// RetAbi classifies t as a return value under the named convention.
func (c *Classifier) RetAbi(t types.TypeID, conv string) (ArgAbi, error) {
	return c.cached(argKey{Type: t, Conv: conv, Ret: true}, true)
}

func (c *Classifier) cached(key argKey, ret bool) (ArgAbi, error) {
	if v, ok := c.args.Load(key); ok {
		return *v.(*ArgAbi), nil //nolint:errcheck // only *ArgAbi is stored
	}
	cv, err := c.convention(key.Conv)
	if err != nil {
		return ArgAbi{}, err
	}
	l, err := c.Layouts.LayoutOf(key.Type)
	if err != nil {
		return ArgAbi{}, &AbiError{Kind: AbiErrLayout, Type: key.Type, Conv: key.Conv, Err: err}
	}
	a := c.classify(key.Type, l, cv, ret)
	actual, _ := c.args.LoadOrStore(key, &a)
	return *actual.(*ArgAbi), nil //nolint:errcheck // only *ArgAbi is stored
}

func (c *Classifier) classify(t types.TypeID, l *layout.Layout, cv *target.Convention, ret bool) ArgAbi {
	a := ArgAbi{Type: t, Layout: l}
	limit := cv.SplitLimit()
	if ret {
		limit = cv.EffectiveReturnMax()
	}
	switch {
	case l.IsZST() || l.IsUninhabited():
		a.Mode = PassIgnore
		return a
	case l.Abi.Kind == layout.AbiScalar:
		a.Mode = PassDirect
		return a
	case l.Abi.Kind == layout.AbiVector:
		if c.Target.HasVectorWidth(l.Size) {
			a.Mode = PassDirect
		} else {
			a.Mode = PassIndirect
		}
		return a
	}

	if parts, ok := c.homogeneousFloats(t, l, cv); ok {
		a.Mode, a.Parts = PassSplit, parts
		return a
	}
	if l.Size > limit {
		a.Mode = PassIndirect
		return a
	}
	if l.Size <= cv.RegisterSize {
		if cv.PowerOfTwoOnly && l.Size&(l.Size-1) != 0 {
			a.Mode = PassIndirect
			return a
		}
		a.Mode, a.Cast = PassDirect, l.Size
		return a
	}
	if cv.MaxSplitRegs < 2 && !ret {
		a.Mode = PassIndirect
		return a
	}
	if l.Abi.Kind == layout.AbiScalarPair {
		a.Mode = PassSplit
		a.Parts = []Part{
			{Offset: 0, Size: l.Abi.A.Size(), Class: classOf(l.Abi.A.Prim)},
			{Offset: l.Abi.BOffset, Size: l.Abi.B.Size(), Class: classOf(l.Abi.B.Prim)},
		}
		return a
	}
	a.Mode, a.Parts = PassSplit, c.chunks(t, l, cv)
	return a
}

func classOf(p layout.Primitive) RegClass {
	switch {
	case p.IsFloat():
		return ClassFloat
	case p.Kind == layout.PrimPointer:
		return ClassPointer
	default:
		return ClassInt
	}
}
