package trace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Format is the encoding of written events.
type Format uint8

const (
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
	// FormatChrome is the chrome://tracing and Perfetto event array; each
	// worker lane becomes a thread.
	FormatChrome
)

// ParseFormat converts a --trace-format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	default:
		return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|chrome)", s)
	}
}

// FormatEvent encodes one event. Chrome events come without the separator
// and enclosing document.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

func formatChrome(ev *Event) []byte {
	type chromeEvent struct {
		Name  string            `json:"name"`
		Cat   string            `json:"cat"`
		Ph    string            `json:"ph"`
		Scope string            `json:"s,omitempty"`
		Ts    int64             `json:"ts"`
		Pid   int               `json:"pid"`
		Tid   uint64            `json:"tid"`
		Args  map[string]string `json:"args,omitempty"`
	}
	c := chromeEvent{Name: ev.Name, Cat: ev.Scope.String(), Ts: ev.Time.UnixMicro(), Pid: 1, Tid: ev.Lane}
	switch ev.Kind {
	case KindSpanBegin:
		c.Ph = "B"
	case KindSpanEnd:
		c.Ph = "E"
	default:
		// Instant event on its own lane.
		c.Ph, c.Scope = "i", "t"
	}
	if ev.Detail != "" || len(ev.Extra) > 0 {
		c.Args = make(map[string]string, len(ev.Extra)+1)
		for k, v := range ev.Extra {
			c.Args[k] = v
		}
		if ev.Detail != "" {
			c.Args["detail"] = ev.Detail
		}
	}
	data, _ := json.Marshal(c) //nolint:errchkjson // strings and integers only
	return data
}

func formatNDJSON(ev *Event) []byte {
	type jsonEvent struct {
		Time     string            `json:"time"`
		Seq      uint64            `json:"seq"`
		Kind     string            `json:"kind"`
		Scope    string            `json:"scope"`
		SpanID   uint64            `json:"span_id,omitempty"`
		ParentID uint64            `json:"parent_id,omitempty"`
		Lane     uint64            `json:"lane,omitempty"`
		Name     string            `json:"name"`
		Detail   string            `json:"detail,omitempty"`
		Extra    map[string]string `json:"extra,omitempty"`
	}
	data, _ := json.Marshal(jsonEvent{ //nolint:errchkjson // strings and integers only
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		Lane:     ev.Lane,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	return append(data, '\n')
}

var textMarkers = [...]string{
	KindSpanBegin: "> ",
	KindSpanEnd:   "< ",
	KindMark:      "* ",
	KindHeartbeat: "~ ",
}

// formatText writes one line:
//
//	15:04:05.000123 w2   > fn:main
//	15:04:05.000456 w2     * skipped (fn:tail) {reason=cancelled}
//
// indented by scope, with the worker lane after the clock.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	sb.WriteString(ev.Time.Format("15:04:05.000000"))
	if ev.Lane > 0 {
		fmt.Fprintf(&sb, " w%-3d", ev.Lane)
	} else {
		sb.WriteString("     ")
	}
	if ev.Scope > ScopeRun {
		sb.WriteString(strings.Repeat("  ", int(ev.Scope-ScopeRun)))
	}
	if int(ev.Kind) < len(textMarkers) {
		sb.WriteString(textMarkers[ev.Kind])
	}
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		sb.WriteString(" (" + ev.Detail + ")")
	}
	if len(ev.Extra) > 0 {
		keys := make([]string, 0, len(ev.Extra))
		for k := range ev.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k + "=" + ev.Extra[k])
		}
		sb.WriteString("}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
