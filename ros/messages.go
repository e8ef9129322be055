package ros

import (
	"time"
)

// Meta is the record time attached to every message exported from a rosbag.
type Meta struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Time converts the record time to a time.Time.
func (m Meta) Time() time.Time {
	return time.Unix(m.Secs, m.Nsecs)
}

// Stamp is a ROS time value.
type Stamp struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Time converts the stamp to a time.Time.
func (s Stamp) Time() time.Time {
	return time.Unix(s.Secs, s.Nsecs)
}

// IsZero reports whether the stamp was never set.
func (s Stamp) IsZero() bool {
	return s.Secs == 0 && s.Nsecs == 0
}

// StampFromTime converts a time.Time to a ROS stamp.
func StampFromTime(t time.Time) Stamp {
	return Stamp{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Image is sensor_msgs/Image.
type Image struct {
	Header      Header `json:"header"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
	Encoding    string `json:"encoding"`
	IsBigendian uint8  `json:"is_bigendian"`
	Step        uint32 `json:"step"`
	Data        []byte `json:"data"`
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Model is one object seen by the logical camera, with its axis aligned bounding box.
type Model struct {
	Type string  `json:"type"`
	Pose Pose    `json:"pose"`
	Min  Vector3 `json:"min"`
	Max  Vector3 `json:"max"`
}

// LogicalImage is the scene annotation published by the simulated logical camera.
type LogicalImage struct {
	Header Header  `json:"header"`
	Pose   Pose    `json:"pose"`
	Models []Model `json:"models"`
}

// ImageMessage is one sensor_msgs/Image record of a bag.
type ImageMessage struct {
	Meta Meta  `json:"meta"`
	Data Image `json:"data"`
}

// LogicalImageMessage is one logical camera record of a bag.
type LogicalImageMessage struct {
	Meta Meta         `json:"meta"`
	Data LogicalImage `json:"data"`
}

// StampOrMeta returns the header stamp, or the record time when the stamp is unset.
func StampOrMeta(h Header, m Meta) time.Time {
	if h.Stamp.IsZero() {
		return m.Time()
	}
	return h.Stamp.Time()
}
