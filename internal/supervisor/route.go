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

package supervisor

import (
	"strings"
)

// intentAgentTable maps a confidently-matched router intent to its
// agent, per spec §4.15: "score_*/quota_* → SQL; regulation_*/procedure_*/
// faq_*/priority → RAG; school_info → school-info node; greeting/about/
// unclear → general; comparison → SQL." The default routes' bare
// "regulation" and "faq" names map like their prefixed forms.
func intentToAgent(intent string) (AgentType, bool) {
	switch {
	case intent == "school_info":
		return AgentSchoolInfo, true
	case intent == "comparison":
		return AgentSQL, true
	case hasAnyPrefix(intent, "score_", "quota_"):
		return AgentSQL, true
	case hasAnyPrefix(intent, "regulation_", "procedure_", "faq_") || intent == "priority" ||
		intent == "regulation" || intent == "faq":
		return AgentRAG, true
	case intent == "greeting" || intent == "about" || intent == "unclear":
		return AgentGeneral, true
	default:
		return "", false
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// planningResult is the LLM JSON planner's fallback output (spec §4.15
// "fall back to an LLM JSON planner").
type planningResult struct {
	Agent                 string  `json:"agent"`
	Confidence            float64 `json:"confidence"`
	Reason                string  `json:"reason"`
	ClarificationQuestion string  `json:"clarification_question"`
}

func planningAgent(agent string) AgentType {
	switch agent {
	case "sql":
		return AgentSQL
	case "rag":
		return AgentRAG
	case "school_info":
		return AgentSchoolInfo
	default:
		return AgentGeneral
	}
}

// decideNext implements spec §4.15's `_decide_next` table: clarification
// takes priority, then the agent-type mapping, with "both" starting at
// SQL (matching the original's "Start with SQL when both needed").
func decideNext(s *State) Node {
	if s.NeedsClarification {
		return NodeClarify
	}
	switch s.AgentType {
	case AgentSQL, AgentBoth:
		return NodeSQL
	case AgentRAG:
		return NodeRAG
	case AgentSchoolInfo:
		return NodeSchoolInfo
	default:
		return NodeGeneral
	}
}
