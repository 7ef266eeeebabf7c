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


// Package qa answers natural-language questions over the document store.
//
// The Engine follows a retrieve-then-generate flow:
//   - Rank stored documents lexically against the question and keep the top k
//   - Concatenate them, labelled by sender, subject and filename, up to a
//     context budget
//   - Ask the generator to answer using only that context, under a timeout
//
// The documents that reached the prompt are returned as evidence alongside
// the answer text.
package qa
