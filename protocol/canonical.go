// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"sort"
	"time"
)

// Canonicalize produces the deterministic, key-sorted byte serialization a
// Message's signature is computed over: every field except Signature,
// UTF-8 encoded, with map keys sorted lexicographically. Two messages with
// identical field values always canonicalize to identical bytes regardless
// of construction order, which is what makes Sign/Verify round-trip and
// what the hub replays when checking a signature it did not produce.
func Canonicalize(m *Message) ([]byte, error) {
	fields := map[string]interface{}{
		"id":              m.ID,
		"senderId":        m.SenderID,
		"receiverId":      m.ReceiverID,
		"content":         m.Content,
		"messageType":     string(m.MessageType),
		"protocolVersion": m.ProtocolVersion,
		"timestamp":       m.Timestamp.UTC().Format(time.RFC3339Nano),
		"metadata":        canonicalMetadata(m.Metadata),
	}
	return canonicalJSON(fields)
}

func canonicalMetadata(md Metadata) map[string]interface{} {
	out := make(map[string]interface{}, len(md.Custom)+3)
	if md.RequestID != "" {
		out["requestId"] = md.RequestID
	}
	if len(md.CollaborationChain) > 0 {
		out["collaborationChain"] = md.CollaborationChain
	}
	if md.CapabilityName != "" {
		out["capabilityName"] = md.CapabilityName
	}
	for k, v := range md.Custom {
		out[k] = v
	}
	return out
}

// canonicalJSON recursively renders a value tree as JSON with object keys
// sorted lexicographically at every level, with no inter-token whitespace
// beyond what JSON requires — the "non-semantic whitespace" §4.1 excludes
// from the signed form.
func canonicalJSON(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := canonicalJSON(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}
