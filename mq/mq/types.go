package mq

import "fmt"

type Action int

const (
	// ActionSave is a conditional write accepted by the snapshot store.
	ActionSave Action = iota
	// ActionForce is a write that bypassed the conflict check.
	ActionForce
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionSave:
		return "save"
	case ActionForce:
		return "force"
	}
	return fmt.Sprintf("action-%d", int(a))
}

// SnapshotMessage announces that the snapshot stored under Scope changed.
type SnapshotMessage struct {
	Scope        string `json:"scope"`
	Action       Action `json:"action"`
	UpdatedAt    string `json:"updatedAt"`
	SegmentCount int    `json:"segmentCount"`
}

func (m SnapshotMessage) GetTopic() string {
	return m.Scope
}

// Mode selects the message queue backend.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)
