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
	"context"
	"fmt"
	"log/slog"

	"github.com/nhdandz/tsbot/internal/answer"
	"github.com/nhdandz/tsbot/internal/llm"
	"github.com/nhdandz/tsbot/internal/metrics"
	"github.com/nhdandz/tsbot/internal/router"
	"github.com/nhdandz/tsbot/internal/sqlengine"
)

// planningPrompt is the LLM JSON-planner fallback prompt, ported from
// the original's PLANNING_PROMPT (spec §4.15).
const planningPrompt = `Bạn là Supervisor điều phối hệ thống tư vấn tuyển sinh quân sự Việt Nam.

Phân tích câu hỏi và quyết định cách xử lý:
1. sql: câu hỏi về điểm chuẩn, chỉ tiêu, so sánh điểm giữa các năm/trường.
2. rag: câu hỏi về quy định, tiêu chuẩn, thủ tục.
3. school_info: câu hỏi về thông tin một trường cụ thể (địa chỉ, website, các ngành).
4. general: chào hỏi, câu hỏi chung về hệ thống.
5. clarification: câu hỏi không rõ ràng, cần hỏi lại.

Câu hỏi: %s

Trả về JSON: {"agent": "sql/rag/school_info/general/clarification", "confidence": 0.0-1.0, "reason": "...", "clarification_question": "..."}`

// generalPrompt answers greetings/about/unclear queries directly,
// ported from the original's GENERAL_PROMPT.
const generalPrompt = `Bạn là trợ lý tư vấn tuyển sinh quân sự Việt Nam. Trả lời câu hỏi sau một cách thân thiện, ngắn gọn:

%s

Nếu là lời chào, hãy giới thiệu bạn có thể tra cứu điểm chuẩn, giải đáp quy định, và tư vấn chọn trường.`

// combinePrompt merges SQL and RAG answers, ported from COMBINE_PROMPT.
const combinePrompt = `Tổng hợp kết quả sau để trả lời câu hỏi người dùng bằng tiếng Việt, rõ ràng, logic.

Câu hỏi: %s

Kết quả tra cứu điểm (SQL):
%s

Kết quả quy định (RAG):
%s`

// RAGPipeline is the abstract C6-C12 legal-document pipeline, injected
// so the graph doesn't depend on retrieval/rerank/ragcontext directly.
type RAGPipeline interface {
	Answer(ctx context.Context, query string) (*answer.Result, error)
}

// SchoolInfo resolves a school-info lookup (DB row + majors + LLM
// narration), per spec §4.15's school_info node.
type SchoolInfo interface {
	Lookup(ctx context.Context, query string) (string, []answer.Source, bool, error)
}

// Engine runs the supervisor graph for one query at a time.
type Engine struct {
	router     *router.Router
	sqlEngine  *sqlengine.Engine
	rag        RAGPipeline
	schoolInfo SchoolInfo
	model      llm.LLM
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New constructs an Engine. schoolInfo may be nil, in which case the
// school_info node always falls through to RAG. m may be nil to disable
// instrumentation.
func New(r *router.Router, sql *sqlengine.Engine, rag RAGPipeline, schoolInfo SchoolInfo, model llm.LLM, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{router: r, sqlEngine: sql, rag: rag, schoolInfo: schoolInfo, model: model, logger: logger, metrics: m}
}

// Run drives the graph from "route" to a terminal node, recovering from
// any node panic into a user-safe apology rather than crashing the
// request (SPEC_FULL.md's panic-recovery boundary).
func (e *Engine) Run(ctx context.Context, s *State) (result *State) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("supervisor: node panicked", "recover", r, "query", s.CurrentQuery)
			s.Response = "Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại."
			s.Err = fmt.Sprintf("panic: %v", r)
			e.metrics.RecordSupervisorPanic()
			result = s
		}
	}()

	e.route(ctx, s)
	next := decideNext(s)

	var terminal Node
	switch next {
	case NodeClarify:
		e.clarify(s)
		terminal = NodeClarify
	case NodeSQL:
		e.sql(ctx, s)
		after := e.afterSQL(s)
		if after == NodeEnd {
			terminal = NodeSQL
			break
		}
		e.runRAG(ctx, s)
		e.combine(ctx, s)
		terminal = NodeCombine
	case NodeRAG:
		e.runRAG(ctx, s)
		e.combine(ctx, s)
		terminal = NodeRAG
	case NodeSchoolInfo:
		if e.schoolInfo != nil && e.schoolInfoNode(ctx, s) {
			terminal = NodeSchoolInfo
			break
		}
		e.runRAG(ctx, s)
		e.combine(ctx, s)
		terminal = NodeRAG
	default:
		e.general(ctx, s)
		terminal = NodeGeneral
	}

	e.metrics.RecordSupervisorRequest(string(terminal))
	return s
}

// route calls the semantic router (C5); on high confidence it maps
// intent→agent via the fixed table, else falls back to the LLM JSON
// planner, defaulting to general on planner failure (spec §4.15).
func (e *Engine) route(ctx context.Context, s *State) {
	if e.router != nil {
		res, err := e.router.Route(ctx, s.CurrentQuery)
		if err == nil {
			matched := res.Confidence >= router.DefaultThreshold
			if matched {
				if agent, ok := intentToAgent(res.Intent); ok {
					e.metrics.RecordRouterDecision(res.Confidence, true, false)
					s.Intent = res.Intent
					s.AgentType = agent
					return
				}
			}
			e.metrics.RecordRouterDecision(res.Confidence, matched, true)
		}
	}

	if e.model == nil {
		s.AgentType = AgentGeneral
		return
	}

	var plan planningResult
	prompt := fmt.Sprintf(planningPrompt, s.CurrentQuery)
	if err := e.model.GenerateJSON(ctx, prompt, "", &plan); err != nil {
		e.logger.Warn("supervisor: planner failed", "err", err)
		s.AgentType = AgentGeneral
		return
	}

	s.Intent = plan.Agent
	if plan.Agent == "clarification" {
		s.NeedsClarification = true
		s.ClarificationPrompt = plan.ClarificationQuestion
		return
	}
	s.AgentType = planningAgent(plan.Agent)
}

func (e *Engine) clarify(s *State) {
	if s.ClarificationPrompt != "" {
		s.Response = s.ClarificationPrompt
		return
	}
	s.Response = "Bạn có thể cho mình biết rõ hơn câu hỏi của bạn không?"
}

func (e *Engine) sql(ctx context.Context, s *State) {
	res, err := e.sqlEngine.Process(ctx, s.CurrentQuery)
	s.SQLResult = res
	if err != nil {
		s.Err = err.Error()
		return
	}
	s.Response = res.Answer
}

// afterSQL implements spec §4.15's "sql → end if any results; else if
// original intent ∈ {rag, both} then sql → rag, else sql → end".
func (e *Engine) afterSQL(s *State) Node {
	if s.SQLResult != nil && len(s.SQLResult.Rows) > 0 {
		return NodeEnd
	}
	if s.AgentType == AgentRAG || s.AgentType == AgentBoth {
		return NodeRAG
	}
	return NodeEnd
}

func (e *Engine) runRAG(ctx context.Context, s *State) {
	if e.rag == nil {
		return
	}
	res, err := e.rag.Answer(ctx, s.CurrentQuery)
	if err != nil {
		s.Err = err.Error()
		return
	}
	s.RAGResult = res
	s.Response = res.Answer
	s.Sources = res.Sources
}

func (e *Engine) schoolInfoNode(ctx context.Context, s *State) bool {
	response, sources, found, err := e.schoolInfo.Lookup(ctx, s.CurrentQuery)
	if err != nil || !found {
		return false
	}
	s.Response = response
	s.Sources = sources
	return true
}

func (e *Engine) general(ctx context.Context, s *State) {
	if e.model == nil {
		s.Response = "Xin chào! Mình có thể giúp bạn tra cứu điểm chuẩn và giải đáp quy định tuyển sinh quân sự."
		return
	}
	prompt := fmt.Sprintf(generalPrompt, s.CurrentQuery)
	text, err := e.model.Generate(ctx, prompt, "")
	if err != nil {
		s.Err = err.Error()
		s.Response = "Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại."
		return
	}
	s.Response = text
}

// combine implements spec §4.15's combine node: prefer whichever branch
// has results when the other is empty, else ask the LLM to merge both.
func (e *Engine) combine(ctx context.Context, s *State) {
	sqlHasResults := s.SQLResult != nil && len(s.SQLResult.Rows) > 0
	ragHasAnswer := s.RAGResult != nil && s.RAGResult.Answer != ""

	switch {
	case !sqlHasResults && ragHasAnswer:
		s.Response = s.RAGResult.Answer
		s.Sources = s.RAGResult.Sources
		return
	case sqlHasResults && !ragHasAnswer:
		s.Response = s.SQLResult.Answer
		return
	case !sqlHasResults && !ragHasAnswer:
		return
	}

	if e.model == nil {
		s.Response = s.SQLResult.Answer + "\n\n" + s.RAGResult.Answer
		s.Sources = s.RAGResult.Sources
		return
	}

	prompt := fmt.Sprintf(combinePrompt, s.CurrentQuery, s.SQLResult.Answer, s.RAGResult.Answer)
	text, err := e.model.Generate(ctx, prompt, "")
	if err != nil {
		s.Response = s.RAGResult.Answer
		s.Sources = s.RAGResult.Sources
		return
	}
	s.Response = text
	s.Sources = s.RAGResult.Sources
}
