package transform

import (
	"encoding/json"

	"github.com/MLGBJDLW/vellum-sub012/internal/llm"
)

// toolInputState assembles the streamed JSON input of one tool call.
type toolInputState struct {
	id     string
	name   string
	buffer []byte
	done   bool
}

// ToolInputAccumulators tracks in-flight tool calls for one stream and the
// terminal usage/stop-reason so Usage can be emitted exactly once, before
// Done, regardless of the vendor's chunk ordering.
type ToolInputAccumulators struct {
	order      []string
	states     map[string]*toolInputState
	indexToID  map[int]string
	usage      *llm.Usage
	stopReason llm.StopReason
	sawTool    bool
}

// NewToolInputAccumulators creates an empty accumulator set.
func NewToolInputAccumulators() *ToolInputAccumulators {
	return &ToolInputAccumulators{
		states:    make(map[string]*toolInputState),
		indexToID: make(map[int]string),
	}
}

// BindIndex associates a vendor stream index with a tool call id. Some
// vendors send the id only on the first fragment.
func (a *ToolInputAccumulators) BindIndex(index int, id string) {
	a.indexToID[index] = id
}

// IDForIndex resolves a previously bound index.
func (a *ToolInputAccumulators) IDForIndex(index int) string {
	return a.indexToID[index]
}

// Push appends one input fragment and returns the delta event for it.
func (a *ToolInputAccumulators) Push(id, name, fragment string) llm.StreamEvent {
	st, ok := a.states[id]
	if !ok {
		st = &toolInputState{id: id}
		a.states[id] = st
		a.order = append(a.order, id)
	}
	if name != "" {
		st.name = name
	}
	st.buffer = append(st.buffer, fragment...)
	a.sawTool = true

	return llm.StreamEvent{
		Type:       llm.EventToolCallDelta,
		ToolCallID: id,
		ToolName:   st.name,
		InputDelta: fragment,
	}
}

// FlushAll completes every in-flight tool call, in arrival order.
// Invalid accumulated JSON degrades to an empty object.
func (a *ToolInputAccumulators) FlushAll() []llm.StreamEvent {
	var events []llm.StreamEvent
	for _, id := range a.order {
		st := a.states[id]
		if st.done {
			continue
		}
		st.done = true

		input := json.RawMessage(st.buffer)
		if len(input) == 0 || !json.Valid(input) {
			input = json.RawMessage("{}")
		}
		events = append(events, llm.StreamEvent{
			Type: llm.EventToolCall,
			ToolCall: &llm.ToolCall{
				ID:    st.id,
				Name:  st.name,
				Input: input,
			},
		})
	}
	return events
}

// SetUsage records the stream's usage; later values replace earlier ones
// so the final accounting wins.
func (a *ToolInputAccumulators) SetUsage(u llm.Usage) {
	a.usage = &u
}

// SetStopReason records the terminal stop reason.
func (a *ToolInputAccumulators) SetStopReason(r llm.StopReason) {
	a.stopReason = r
}

// SawToolCalls reports whether any tool-call fragment was observed.
func (a *ToolInputAccumulators) SawToolCalls() bool { return a.sawTool }

// Finish emits the stream tail: any unflushed tool calls, the usage event
// (at most once), then Done.
func (a *ToolInputAccumulators) Finish() []llm.StreamEvent {
	events := a.FlushAll()
	if a.usage != nil {
		events = append(events, llm.StreamEvent{Type: llm.EventUsage, Usage: a.usage})
		a.usage = nil
	}
	reason := a.stopReason
	if reason == "" {
		if a.sawTool {
			reason = llm.StopToolUse
		} else {
			reason = llm.StopEndTurn
		}
	}
	events = append(events, llm.StreamEvent{Type: llm.EventDone, StopReason: reason})
	return events
}
