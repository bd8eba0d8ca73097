package llm

import "fmt"

const (
	TaskTurnSummary     = "turn_summary"
	TaskSessionSummary  = "session_summary"
	TaskSessionExtract  = "session_extract"
	TaskBriefSynthesize = "brief_synthesize"
	TaskBriefUpdate     = "brief_update"
	TaskEventSummary    = "event_summary"
)

var prompts = map[string]string{
	TaskTurnSummary: `You are summarizing a single turn in an AI-assisted coding session (human developer + AI coding assistant working together).

You will receive a JSON object with:
- user_message: what the developer asked or instructed
- assistant_summary: the AI assistant's textual response
- tools_used (optional): tool calls made. Read/Edit/Write for file ops, Bash for commands, Grep/Glob for search, Task for subagent delegation
- files_modified (optional): file paths that were edited or created

Produce a JSON object with these fields:
- title: concise action phrase (max 80 chars), e.g. "Fix auth middleware token validation"
- description: 1-3 sentences capturing what was done and why. Mention specific files or commands if they clarify the work.
- is_continuation: true if this turn continues/debugs/fixes the PREVIOUS turn's task, false if it starts a new topic
- satisfaction: "good" if user is clearly satisfied or moving forward, "fine" if neutral or mixed, "bad" if user reports failure or frustration

Example output:
{
  "title": "Add user authentication middleware",
  "description": "Implemented JWT-based auth middleware in src/middleware/auth.py and integrated it into the Express router. Added token validation and 401 responses.",
  "is_continuation": false,
  "satisfaction": "good"
}

Rules:
- Title should be an action phrase (imperative or past tense), not a question
- Description should focus on OUTCOMES, not process
- Infer satisfaction from the user's tone and follow-up, not from the task itself
- Output STRICT JSON only, no markdown fences`,

	TaskSessionSummary: `You are summarizing a complete coding session: a sequence of conversation turns between a developer and an AI coding assistant.

You will receive a JSON object with a turns array. Each turn has:
- turn_number, title, description: what happened in this turn
- user_message: the developer's original request
- tools_used (optional): tool calls made in this turn
- files_modified (optional): files changed in this turn

Produce a JSON object with:
- title: session-level goal in max 80 chars, e.g. "Implement parser enhancements and test suite"
- summary: 2-5 sentences covering the arc of work. What was the goal, what was accomplished, what remains open

Example output:
{
  "title": "Refactor database layer and add migration support",
  "summary": "Refactored the SQLite database module to support schema migrations. Added a version tracking table and migration runner. Migration tests pass but rollback support is still pending."
}

Rules:
- Focus on the overall narrative, not turn-by-turn recap
- Mention concrete outcomes (files, features, fixes) over process
- Note unresolved issues if any turns ended with problems
- Output STRICT JSON only, no markdown fences`,

	TaskSessionExtract: `You are extracting structured knowledge from a coding session for a project knowledge base.

You will receive session metadata and an array of turns, each with user requests, assistant responses, tool usage, and file changes.

Extract ONLY facts clearly supported by the data. Focus on OUTCOMES (what was actually done), not intentions that weren't followed through.

Use tools_used and files_modified to identify concrete actions:
- Edit/Write calls = code was changed
- Bash calls = commands were run (tests, builds, deployments)
- Task calls = work was delegated to subagents

Output a JSON object with ALL of these fields (use empty arrays if nothing applies):
{
  "decisions": [{"what": "string", "why": "string"}],
  "solved": ["string"],
  "features": ["string"],
  "tech_changes": ["string"],
  "open_threads": ["string"]
}

Field definitions:
- decisions: architectural or design choices with reasoning. Include WHAT was decided and WHY.
- solved: bugs fixed, issues resolved. Only if ACTUALLY resolved, not just discussed
- features: new functionality added or significantly modified
- tech_changes: libraries, tools, config, or patterns introduced/removed/changed
- open_threads: things explicitly left unfinished at session END. Do NOT include problems that were raised AND solved in the same session.

Rules:
- Each item should be a single concise sentence
- Include all fields even if empty (use [])
- Output STRICT JSON only, no markdown fences`,

	TaskBriefSynthesize: `You are generating a Project Brief: a living knowledge document that captures everything a technical leader needs to know about a software project.

You will receive:
1. Project documentation (README, CLAUDE.md, etc.), the stable foundation
2. Extracted knowledge from coding sessions, the dynamic progress
3. Tech stack indicators (package manifests, etc.)

Generate a markdown document with EXACTLY these sections:

# Project: <name>

## Purpose & Value
What this project is and why it exists. 2-3 sentences max.

## Architecture & Tech Stack
Key components, module boundaries, patterns, and dependencies. Be specific about directory structure if the data supports it.

## Key Decisions
Important decisions with reasoning. Use bullet points prefixed with date:
- [YYYY-MM-DD] Decision description: reasoning
Group decisions from the same date together.

## Current State
What works, what's stable, overall maturity. 2-3 sentences.

## Recent Progress
Latest work done, features added, bugs fixed. Bullet points, most recent first.

## Open Threads
Genuinely unresolved issues. Cross-reference with solved[] and features[] across ALL sessions. If something was raised in session A and solved in session B, it is NOT an open thread.

Rules:
- Be factual. Only include what the data supports.
- Synthesize across sessions instead of listing per-session facts.
- Resolve contradictions: later sessions override earlier ones.
- Output ONLY the markdown document, no wrapping fences.`,

	TaskBriefUpdate: `You are updating an existing Project Brief with new information from a recent coding session.

You will receive:
1. The current Project Brief (markdown)
2. Extracted facts from a new session

Return the UPDATED brief. Rules:
- Preserve all existing content that is still accurate
- Add new decisions to Key Decisions (chronologically)
- Add new progress to Recent Progress (most recent first)
- Update Current State if the new session changes project maturity
- RESOLVE Open Threads that the new session's solved[] or features[] address
- Add new open threads from the session
- Do NOT remove historical decisions or progress
- Output ONLY the updated markdown, no wrapping fences.`,

	TaskEventSummary: `You are summarizing a development event that spans multiple sessions.

Your task:
1. Generate an EVENT TITLE (max 100 chars).
2. Generate an EVENT DESCRIPTION (3-6 sentences) covering what was accomplished.

Output STRICT JSON only:
{"title": "string", "description": "string"}`,
}

// Prompt returns the system prompt for task. Unknown tasks get a generic
// JSON instruction.
func Prompt(task string) string {
	if p, ok := prompts[task]; ok {
		return p
	}
	return fmt.Sprintf("Complete the '%s' task. Output STRICT JSON only.", task)
}
