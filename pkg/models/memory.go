// Package models defines the core data types for the agent runtime.
package models

import (
	"time"
)

// MemoryEntry represents a memory item stored in the vector database for semantic search.
type MemoryEntry struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`

	Content  string         `json:"content"`
	Metadata MemoryMetadata `json:"metadata"`

	Embedding []float32 `json:"-"` // Not serialized to JSON
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryMetadata contains additional information about a memory entry.
type MemoryMetadata struct {
	Source string         `json:"source"` // "message", "document", "note"
	Role   string         `json:"role"`   // "user", "assistant"
	Tags   []string       `json:"tags"`
	Extra  map[string]any `json:"extra"`
}

// MemoryScope defines the scope for memory search/indexing.
type MemoryScope string

const (
	// ScopeSession limits memory to the current session.
	ScopeSession MemoryScope = "session"
	// ScopeChannel limits memory to the current channel.
	ScopeChannel MemoryScope = "channel"
	// ScopeAgent limits memory to the current agent.
	ScopeAgent MemoryScope = "agent"
	// ScopeGlobal searches all memories.
	ScopeGlobal MemoryScope = "global"
)

// SearchRequest defines parameters for semantic memory search.
type SearchRequest struct {
	Query     string         `json:"query"`
	Scope     MemoryScope    `json:"scope"`
	ScopeID   string         `json:"scope_id"`
	Limit     int            `json:"limit"`
	Threshold float32        `json:"threshold"` // Min similarity (0-1)
	Filters   map[string]any `json:"filters"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Entry      *MemoryEntry `json:"entry"`
	Score      float32      `json:"score"`      // Similarity score (0-1)
	Highlights []string     `json:"highlights"` // Matched snippets
}

// SearchResponse contains the results of a memory search.
type SearchResponse struct {
	Results    []*SearchResult `json:"results"`
	TotalCount int             `json:"total_count"`
	QueryTime  time.Duration   `json:"query_time"`
}

// MemoryDocType identifies a workspace memory document's kind.
type MemoryDocType string

const (
	// MemoryDocMemory is the freeform, append-only long-term memory document.
	MemoryDocMemory MemoryDocType = "memory"
	// MemoryDocDailyLog is a date-keyed daily journal document.
	MemoryDocDailyLog MemoryDocType = "daily_log"
	// MemoryDocIdentity carries the agent's identity/persona description.
	MemoryDocIdentity MemoryDocType = "identity"
	// MemoryDocSoul carries the agent's core values document.
	MemoryDocSoul MemoryDocType = "soul"
	// MemoryDocAgents carries agent-specific operating instructions.
	MemoryDocAgents MemoryDocType = "agents"
	// MemoryDocUser carries user-context notes.
	MemoryDocUser MemoryDocType = "user"
	// MemoryDocHeartbeat carries periodic heartbeat/status notes.
	MemoryDocHeartbeat MemoryDocType = "heartbeat"
)

// MemoryDocument is a workspace document (memory, daily log, or identity
// section) tracked by the workspace repository. Unlike MemoryEntry (a single
// indexed passage), a MemoryDocument is the durable source text that gets
// chunked and re-indexed whenever it changes.
type MemoryDocument struct {
	ID      string        `json:"id"`
	UserID  string        `json:"user_id"`
	AgentID string        `json:"agent_id,omitempty"`
	DocType MemoryDocType `json:"doc_type"`
	Title   string        `json:"title"`
	Content string        `json:"content"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MemoryChunk is one indexed passage cut from a MemoryDocument's content.
type MemoryChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// MemorySearchMode selects the retrieval strategy for workspace search.
type MemorySearchMode string

const (
	// MemorySearchLexical scores chunks by substring/term overlap only.
	MemorySearchLexical MemorySearchMode = "lexical"
	// MemorySearchVector scores chunks by embedding similarity only.
	MemorySearchVector MemorySearchMode = "vector"
	// MemorySearchHybrid fuses lexical and vector ranking (RRF, k=60).
	MemorySearchHybrid MemorySearchMode = "hybrid"
)

// MemorySearchResult is one ranked hit from a workspace document search.
type MemorySearchResult struct {
	Chunk      *MemoryChunk  `json:"chunk"`
	DocumentID string        `json:"document_id"`
	DocType    MemoryDocType `json:"doc_type"`
	Title      string        `json:"title"`
	Score      float64       `json:"score"`
}
