// Package ros bridges ROS messages and rosbags to the dumper's frames and rasters.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// MessagesForTopics parses the given topics of the bag to JSON and returns the raw JSON lines
// of every message, per topic, in bag order. Topics without messages are absent.
func MessagesForTopics(rb *rosbag.RosBag, topics []string) (map[string][][]byte, error) {
	wanted := make(map[string]bool, len(topics))
	for _, topic := range topics {
		wanted[topic] = true
	}

	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return wanted[t] },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	all := make(map[string][][]byte, len(topics))
	for _, topic := range topics {
		msgs := rb.TopicsAsJSON[BagTopicKey(topic)]
		if msgs == nil {
			continue
		}
		lines, err := splitLines(msgs)
		if err != nil {
			return nil, errors.Wrapf(err, "reading messages for topic %s", topic)
		}
		all[topic] = lines
	}
	return all, nil
}

// BagTopicKey returns the name gobag files a topic's JSON buffer under: the leading
// slash dropped, the remaining slashes turned into underscores, lowercased.
func BagTopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

func splitLines(buf *bytes.Buffer) ([][]byte, error) {
	var lines [][]byte
	for {
		data, err := buf.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) > 0 {
			lines = append(lines, data)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, err
		}
	}
}

// DecodeImageMessages unmarshals raw JSON lines into image records.
func DecodeImageMessages(lines [][]byte) ([]ImageMessage, error) {
	msgs := make([]ImageMessage, 0, len(lines))
	for i, line := range lines {
		var msg ImageMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, errors.Wrapf(err, "decoding image message %d", i)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// DecodeLogicalImageMessages unmarshals raw JSON lines into logical camera records.
func DecodeLogicalImageMessages(lines [][]byte) ([]LogicalImageMessage, error) {
	msgs := make([]LogicalImageMessage, 0, len(lines))
	for i, line := range lines {
		var msg LogicalImageMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, errors.Wrapf(err, "decoding logical image message %d", i)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
