package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Frame types emitted by the streaming encoder.
const (
	frameContent  = "content"
	frameListItem = "list_item"
	frameComplete = "complete"
)

// contentFrame carries one fixed-size chunk of a streamed text.
type contentFrame struct {
	Type       string `json:"type"`
	Chunk      string `json:"chunk"`
	IsComplete bool   `json:"isComplete"`
}

// listItemFrame carries one element of a streamed list.
type listItemFrame struct {
	Type       string `json:"type"`
	Item       any    `json:"item"`
	Index      int    `json:"index"`
	IsComplete bool   `json:"isComplete"`
}

type completeFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Encoder chunks large values into streaming frames. ChunkSize is the byte
// length of content chunks; FrameDelay, when positive, paces the frames.
type Encoder struct {
	ChunkSize  int
	FrameDelay time.Duration
}

// NewEncoder creates an Encoder with the given chunk size, defaulting to
// 1024 bytes when size is not positive.
func NewEncoder(chunkSize int, frameDelay time.Duration) *Encoder {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &Encoder{ChunkSize: chunkSize, FrameDelay: frameDelay}
}

// Stream encodes value into a sequence of JSON frames delivered on the
// returned channel. Strings become fixed-size content frames; slices become
// one list_item frame per element with isComplete set only on the last; any
// other value is marshalled and streamed as text. Every successful stream is
// terminated by exactly one complete frame. Cancelling ctx stops the stream
// early, without the complete frame.
func (e *Encoder) Stream(ctx context.Context, value any) <-chan []byte {
	if items, ok := value.([]any); ok {
		return e.StreamList(ctx, items)
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		switch v := value.(type) {
		case string:
			e.streamText(ctx, out, v)
		default:
			data, err := json.Marshal(value)
			if err != nil {
				data = []byte(fmt.Sprintf("%v", value))
			}
			e.streamText(ctx, out, string(data))
		}
	}()
	return out
}

// StreamList streams one list_item frame per element, isComplete set only on
// the last, followed by the complete frame.
func (e *Encoder) StreamList(ctx context.Context, items []any) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		e.streamList(ctx, out, items)
	}()
	return out
}

func (e *Encoder) streamText(ctx context.Context, out chan<- []byte, text string) {
	for start := 0; start < len(text); start += e.ChunkSize {
		end := start + e.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		frame := contentFrame{
			Type:       frameContent,
			Chunk:      text[start:end],
			IsComplete: end == len(text),
		}
		if !e.send(ctx, out, frame) {
			return
		}
	}
	if text == "" {
		// An empty text still yields one (empty, complete) content frame so
		// consumers always see at least one data frame.
		if !e.send(ctx, out, contentFrame{Type: frameContent, Chunk: "", IsComplete: true}) {
			return
		}
	}
	e.send(ctx, out, completeFrame{Type: frameComplete, Message: "Streaming complete"})
}

func (e *Encoder) streamList(ctx context.Context, out chan<- []byte, items []any) {
	for i, item := range items {
		frame := listItemFrame{
			Type:       frameListItem,
			Item:       item,
			Index:      i,
			IsComplete: i == len(items)-1,
		}
		if !e.send(ctx, out, frame) {
			return
		}
	}
	e.send(ctx, out, completeFrame{Type: frameComplete, Message: "Streaming complete"})
}

// send marshals and delivers one frame, honoring pacing and cancellation.
// It reports whether streaming should continue.
func (e *Encoder) send(ctx context.Context, out chan<- []byte, frame any) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	if e.FrameDelay > 0 {
		select {
		case <-time.After(e.FrameDelay):
		case <-ctx.Done():
			return false
		}
	}
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}
