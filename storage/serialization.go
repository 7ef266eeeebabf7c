// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/mailqa/core"
)

// MarshalDocument serializes a document and its insertion sequence to bytes.
// Layout: seq, id, content, metadata count, then key/value pairs sorted by key.
func MarshalDocument(seq uint64, doc *core.Document) []byte {
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	size := varint.Uint64.Size(seq) +
		ord.String.Size(string(doc.ID)) +
		ord.String.Size(doc.Content) +
		varint.Uint64.Size(uint64(len(keys)))
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(doc.Metadata[k])
	}

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(seq, buf)
	n += ord.String.Marshal(string(doc.ID), buf[n:])
	n += ord.String.Marshal(doc.Content, buf[n:])
	n += varint.Uint64.Marshal(uint64(len(keys)), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(doc.Metadata[k], buf[n:])
	}
	return buf
}

// UnmarshalDocument deserializes a document and its insertion sequence.
func UnmarshalDocument(data []byte) (uint64, *core.Document, error) {
	if len(data) == 0 {
		return 0, nil, ErrTruncatedData
	}

	seq, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: sequence: %w", ErrSerializationFailed, err)
	}
	off := n

	id, n, err := ord.String.Unmarshal(data[off:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	off += n

	content, n, err := ord.String.Unmarshal(data[off:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: content: %w", ErrSerializationFailed, err)
	}
	off += n

	count, n, err := varint.Uint64.Unmarshal(data[off:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: metadata count: %w", ErrSerializationFailed, err)
	}
	off += n

	// Each pair needs at least two length bytes
	if count > uint64(len(data)-off) {
		return 0, nil, ErrTruncatedData
	}

	doc := &core.Document{ID: core.DocumentID(id), Content: content}
	if count > 0 {
		doc.Metadata = make(map[string]string, count)
	}
	for i := uint64(0); i < count; i++ {
		k, n, err := ord.String.Unmarshal(data[off:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: metadata key: %w", ErrSerializationFailed, err)
		}
		off += n
		v, n, err := ord.String.Unmarshal(data[off:])
		if err != nil {
			return 0, nil, fmt.Errorf("%w: metadata value %q: %w", ErrSerializationFailed, k, err)
		}
		off += n
		doc.Metadata[k] = v
	}

	return seq, doc, nil
}
