package storage

// NodeData is the payload attached to a node.
//
// Each node type has exactly one payload shape:
//
//	user    -> *UserData
//	content -> *ContentData
//	topic   -> *TopicData
//	other   -> *RawData
//
// Implementations use pointer receivers so that payload identity can be
// compared safely and so that in-place mutation is visible through the store.
type NodeData interface {
	NodeType() NodeType
}

// UserData is the payload of a user node.
type UserData struct {
	Name          string  `json:"name"`
	Engagement    float64 `json:"engagement,omitempty"`
	FollowerCount int     `json:"followerCount,omitempty"`
	FollowsCount  int     `json:"followsCount,omitempty"`
}

// NodeType implements NodeData.
func (*UserData) NodeType() NodeType { return NodeTypeUser }

// ContentData is the payload of a content node.
type ContentData struct {
	Author  NodeID `json:"author,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// NodeType implements NodeData.
func (*ContentData) NodeType() NodeType { return NodeTypeContent }

// TopicData is the payload of a topic node.
type TopicData struct {
	Label string `json:"label"`
}

// NodeType implements NodeData.
func (*TopicData) NodeType() NodeType { return NodeTypeTopic }

// RawData carries the payload of node types without a dedicated shape.
type RawData struct {
	Type   NodeType       `json:"-"`
	Fields map[string]any `json:"fields,omitempty"`
}

// NodeType implements NodeData.
func (r *RawData) NodeType() NodeType { return r.Type }

// newPayload returns an empty payload for the node type, used when decoding
// snapshots.
func newPayload(t NodeType) NodeData {
	switch t {
	case NodeTypeUser:
		return &UserData{}
	case NodeTypeContent:
		return &ContentData{}
	case NodeTypeTopic:
		return &TopicData{}
	default:
		return &RawData{Type: t}
	}
}

// validPayload reports whether data may be attached to a node of type t.
// A nil payload is always allowed.
func validPayload(t NodeType, data NodeData) bool {
	if data == nil {
		return true
	}
	return data.NodeType() == t
}
