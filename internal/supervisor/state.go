// Copyright 2025 TSBot authors
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

// Package supervisor implements component C14: the node-graph that
// routes each incoming question to the SQL engine, the RAG pipeline, the
// school-info lookup, or a general-purpose reply, and combines results
// when more than one path contributes (spec §4.15).
package supervisor

import (
	"github.com/nhdandz/tsbot/internal/answer"
	"github.com/nhdandz/tsbot/internal/model"
	"github.com/nhdandz/tsbot/internal/sqlengine"
)

// Node names the graph's nodes (spec §4.15).
type Node string

const (
	NodeRoute      Node = "route"
	NodeSQL        Node = "sql"
	NodeRAG        Node = "rag"
	NodeSchoolInfo Node = "school_info"
	NodeGeneral    Node = "general"
	NodeCombine    Node = "combine"
	NodeClarify    Node = "clarify"
	NodeEnd        Node = "end"
)

// AgentType is the routing decision's target.
type AgentType string

const (
	AgentSQL        AgentType = "sql"
	AgentRAG        AgentType = "rag"
	AgentSchoolInfo AgentType = "school_info"
	AgentGeneral    AgentType = "general"
	AgentBoth       AgentType = "both"
)

// State is the one record threaded through a single run of the graph,
// per spec §4.15's state shape.
type State struct {
	Messages            []model.Message
	CurrentQuery        string
	Intent              string
	AgentType           AgentType
	SQLResult           *sqlengine.Result
	RAGResult           *answer.Result
	Response            string
	Sources             []answer.Source
	NeedsClarification  bool
	ClarificationPrompt string
	Err                 string
	Iteration           int
}

// NewState starts a fresh run for one query, carrying forward the
// session's prior messages.
func NewState(query string, history []model.Message) *State {
	return &State{CurrentQuery: query, Messages: history}
}
