package driver

import (
	"encoding/json"
	"fmt"

	"lowir/internal/diag"
	"lowir/internal/observ"
	"lowir/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Unit    string               `json:"unit,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic records the session timings as an info diagnostic
// whose note holds the JSON report. It is added even when the bag is full.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "session"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Unit != "" {
		msg = fmt.Sprintf("%s, unit %s", msg, payload.Unit)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, msg).
		WithNote(source.Span{}, string(data))

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
