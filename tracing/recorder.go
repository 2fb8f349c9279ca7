package tracing

import (
	"github.com/sarchlab/qnetsim/datarecording"
	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/id"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// Tables that the recorders write.
const (
	ChannelTableName = "channel_events"
	StackTableName   = "stack_events"
)

// ChannelEvent is a row of the channel table.
type ChannelEvent struct {
	ID      string
	Time    timing.VTimeInPS
	Channel string
	Event   string
	Src     string
	Dst     string
	Item    string
}

// StackEvent is a row of the stack table.
type StackEvent struct {
	ID    string
	Time  timing.VTimeInPS
	Layer string
	Event string
	Peer  string
	MsgID string
	Kind  string
}

// A ChannelRecorder writes a row for every photon and message that a
// channel sends, loses or delivers.
type ChannelRecorder struct {
	recorder   datarecording.DataRecorder
	timeTeller timing.TimeTeller
}

// NewChannelRecorder creates the channel table in recorder.
func NewChannelRecorder(
	recorder datarecording.DataRecorder,
	timeTeller timing.TimeTeller,
) *ChannelRecorder {
	recorder.CreateTable(ChannelTableName, ChannelEvent{})

	return &ChannelRecorder{recorder: recorder, timeTeller: timeTeller}
}

// Func records the channel activity. Other hook positions are ignored.
func (r *ChannelRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case optical.HookPosQubitSend, optical.HookPosQubitLost,
		optical.HookPosQubitDeliver, optical.HookPosMsgSend,
		optical.HookPosMsgDeliver:
	default:
		return
	}

	detail, _ := ctx.Detail.(optical.Detail)

	r.recorder.InsertData(ChannelTableName, ChannelEvent{
		ID:      id.Generate(),
		Time:    r.timeTeller.Now(),
		Channel: domainName(ctx),
		Event:   ctx.Pos.Name,
		Src:     detail.Src,
		Dst:     detail.Dst,
		Item:    describeItem(ctx.Item),
	})
}

func describeItem(item any) string {
	switch it := item.(type) {
	case *message.Msg:
		return string(it.Kind)
	case optical.Qubit:
		if it.IsNull() {
			return "null " + string(it.Encoding())
		}

		return string(it.Encoding())
	default:
		return ""
	}
}

// A StackRecorder writes a row for every message that a protocol layer
// pushes down or pops up.
type StackRecorder struct {
	recorder   datarecording.DataRecorder
	timeTeller timing.TimeTeller
}

// NewStackRecorder creates the stack table in recorder.
func NewStackRecorder(
	recorder datarecording.DataRecorder,
	timeTeller timing.TimeTeller,
) *StackRecorder {
	recorder.CreateTable(StackTableName, StackEvent{})

	return &StackRecorder{recorder: recorder, timeTeller: timeTeller}
}

// Func records the layer activity. Other hook positions are ignored.
func (r *StackRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != protocol.HookPosPushDown && ctx.Pos != protocol.HookPosPopUp {
		return
	}

	msg, ok := ctx.Item.(*message.Msg)
	if !ok {
		return
	}

	peer, _ := ctx.Detail.(string)

	r.recorder.InsertData(StackTableName, StackEvent{
		ID:    id.Generate(),
		Time:  r.timeTeller.Now(),
		Layer: domainName(ctx),
		Event: ctx.Pos.Name,
		Peer:  peer,
		MsgID: msg.ID,
		Kind:  string(msg.Kind),
	})
}
