package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Tetra360/bolt-test/pkg/types"
)

func TestEncodeEventBothFormats(t *testing.T) {
	ev := types.Event{
		Type:      types.EventToast,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Toast:     &types.Toast{ID: "t1", Variant: types.ToastDestructive, Title: "Analysis Failed"},
	}
	serialized, err := EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	var decoded types.Event
	if err := json.Unmarshal(serialized.JSONData, &decoded); err != nil {
		t.Fatalf("json: %v", err)
	}
	if decoded.Type != types.EventToast || decoded.Toast.Title != "Analysis Failed" {
		t.Fatalf("unexpected json event %+v", decoded)
	}

	raw, err := base64.StdEncoding.DecodeString(string(serialized.ProtobufData))
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(raw, &st); err != nil {
		t.Fatalf("protobuf: %v", err)
	}
	fields := st.AsMap()
	if fields["type"] != "toast" {
		t.Fatalf("protobuf type = %v", fields["type"])
	}
	toast, _ := fields["toast"].(map[string]any)
	if toast["variant"] != "destructive" {
		t.Fatalf("protobuf toast = %v", toast)
	}
}

func TestSubscribeReceivesCurrentStateFirst(t *testing.T) {
	state := NewState()
	state.SetAnalysis(&types.AnalysisResult{PersonsDetected: 3})

	id, ch := state.Events().Subscribe()
	defer state.Events().Unsubscribe(id)

	select {
	case ev := <-ch:
		var decoded types.Event
		if err := json.Unmarshal(ev.JSONData, &decoded); err != nil {
			t.Fatalf("json: %v", err)
		}
		if decoded.Type != types.EventState || decoded.State.Analysis.PersonsDetected != 3 {
			t.Fatalf("unexpected first event %s", ev.JSONData)
		}
	case <-time.After(time.Second):
		t.Fatalf("no initial state")
	}
}

func TestPublishSkipsSlowClients(t *testing.T) {
	b := NewEventBroadcaster(nil)
	slowID, slow := b.Subscribe()
	fastID, fast := b.Subscribe()
	defer b.Unsubscribe(slowID)
	defer b.Unsubscribe(fastID)

	total := cap(slow) + 5
	received := 0
	for i := 0; i < total; i++ {
		b.Publish(types.Event{Type: types.EventState})
		select {
		case <-fast:
			received++
		case <-time.After(time.Second):
			t.Fatalf("fast client blocked")
		}
	}
	if received != total {
		t.Fatalf("fast client received %d of %d", received, total)
	}
	if len(slow) != cap(slow) {
		t.Fatalf("slow client buffer = %d, want full %d", len(slow), cap(slow))
	}
}

func TestEventBroadcasterCloseAndCounts(t *testing.T) {
	b := NewEventBroadcaster(nil)
	var count atomic.Int64
	b.OnClientCount = func(n int) { count.Store(int64(n)) }

	_, ch := b.Subscribe()
	if count.Load() != 1 {
		t.Fatalf("count = %d", count.Load())
	}
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if count.Load() != 0 {
		t.Fatalf("count after close = %d", count.Load())
	}
	if _, late := b.Subscribe(); late == nil {
		t.Fatalf("nil channel")
	} else if _, ok := <-late; ok {
		t.Fatalf("late subscription should be closed")
	}
}

func TestPublishWithoutClientsSkipsEncoding(t *testing.T) {
	b := NewEventBroadcaster(nil)
	b.Publish(types.Event{Type: types.EventState})

	published := 0
	b.OnPublish = func(*SerializedEvent) { published++ }
	b.Publish(types.Event{Type: types.EventState})
	if published != 1 {
		t.Fatalf("OnPublish calls = %d", published)
	}
}

type countingPreview struct{ calls atomic.Int32 }

func (c *countingPreview) Preview(maxWidth, quality int) ([]byte, bool) {
	c.calls.Add(1)
	return []byte{0xff, 0xd8}, true
}

func TestFrameBroadcasterOnlyWorksWithClients(t *testing.T) {
	src := &countingPreview{}
	fb := NewFrameBroadcaster(src, 5*time.Millisecond, 320, 70)
	fb.Start()
	defer fb.Stop()

	time.Sleep(40 * time.Millisecond)
	if n := src.calls.Load(); n != 0 {
		t.Fatalf("preview generated %d frames without clients", n)
	}

	id, ch := fb.Subscribe()
	select {
	case frame := <-ch:
		if len(frame) != 2 {
			t.Fatalf("frame = %v", frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("no frame delivered")
	}
	fb.Unsubscribe(id)
}

func TestFrameBroadcasterStopClosesClients(t *testing.T) {
	fb := NewFrameBroadcaster(&countingPreview{}, time.Hour, 320, 70)
	fb.Start()
	_, ch := fb.Subscribe()
	fb.Stop()
	fb.Stop()
	if _, ok := <-ch; ok {
		t.Fatalf("client channel should be closed")
	}
}
