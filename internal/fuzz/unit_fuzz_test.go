package fuzztests

import (
	"bytes"
	"context"
	"testing"
	"time"

	"lowir/internal/backend/llvm"
	"lowir/internal/mir"
	"lowir/internal/target"
)

// lowerTimeout bounds lowering of one input; exceeding it points at a
// loop in the backend.
const lowerTimeout = 5 * time.Second

func FuzzDecodeAndLowerUnit(f *testing.F) {
	addUnitSeeds(f)
	tgt, ok := target.Preset(target.DefaultPreset)
	if !ok {
		f.Fatalf("missing default preset")
	}
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		m, err := mir.DecodeModule(bytes.NewReader(input))
		if err != nil {
			return
		}
		if err := mir.Validate(m); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), lowerTimeout)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			mod, err := llvm.EmitModule(ctx, m, &tgt, llvm.Options{})
			if err == nil && mod == nil {
				t.Errorf("EmitModule returned neither a module nor an error")
			}
		}()
		select {
		case <-done:
		case <-time.After(lowerTimeout + time.Second):
			t.Fatalf("lowering did not finish within %s", lowerTimeout)
		}
	})
}

func FuzzTargetDescription(f *testing.F) {
	addTargetSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		tgt, err := target.Decode(bytes.NewReader(input))
		if err != nil {
			return
		}
		if err := tgt.Validate(); err != nil {
			t.Fatalf("Decode accepted an invalid target: %v", err)
		}
	})
}
