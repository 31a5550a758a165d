package workspace

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreflow/agentruntime/internal/agent"
	"github.com/coreflow/agentruntime/internal/memory"
	"github.com/coreflow/agentruntime/internal/rag/chunker"
	"github.com/coreflow/agentruntime/internal/rag/parser"
	"github.com/coreflow/agentruntime/internal/rag/parser/markdown"
	"github.com/coreflow/agentruntime/internal/rag/parser/text"
	"github.com/coreflow/agentruntime/pkg/models"
	"github.com/google/uuid"
)

// dailyLogLayout is the key format daily logs are uniquely identified by.
const dailyLogLayout = "2006-01-02"

func init() {
	parser.DefaultRegistry.Register(markdown.New())
	parser.DefaultRegistry.Register(text.New())
	parser.DefaultRegistry.SetDefault(text.New())
}

// Repository persists workspace documents (curated memory, daily logs,
// identity files) and indexes their chunks for hybrid search. Documents
// themselves live in an in-process store keyed by (userID, agentID,
// doc_type, title); the optional *memory.Manager, when configured, indexes
// chunk content for vector/hybrid retrieval. Without a manager, Search
// falls back to a lexical substring scan over stored chunks.
type Repository struct {
	mu        sync.RWMutex
	docs      map[string]*models.MemoryDocument // key: docKey(userID, agentID, docType, title)
	chunks    map[string][]*models.MemoryChunk  // key: document ID
	chunkerFn chunker.Chunker
	mem       *memory.Manager // optional; nil means lexical-only search
	userID    string
	agentID   string
}

// NewRepository creates a workspace memory repository for one user/agent
// pair. mem may be nil, in which case Search falls back to lexical scoring.
func NewRepository(userID, agentID string, mem *memory.Manager) *Repository {
	return &Repository{
		docs:      make(map[string]*models.MemoryDocument),
		chunks:    make(map[string][]*models.MemoryChunk),
		chunkerFn: chunker.NewRecursiveCharacterTextSplitter(chunker.DefaultConfig()),
		mem:       mem,
		userID:    userID,
		agentID:   agentID,
	}
}

func docKey(userID, agentID string, docType models.MemoryDocType, title string) string {
	return fmt.Sprintf("%s/%s/%s/%s", userID, agentID, docType, title)
}

// Memory returns the curated long-term memory document, creating an empty
// one if it doesn't exist yet.
func (r *Repository) Memory(ctx context.Context) (*models.MemoryDocument, error) {
	return r.getOrCreate(ctx, models.MemoryDocMemory, "")
}

// TodayLog returns today's daily log document, creating it if needed.
func (r *Repository) TodayLog(ctx context.Context) (*models.MemoryDocument, error) {
	return r.DailyLog(ctx, time.Now())
}

// DailyLog returns the daily log document for the given date, uniquely
// keyed by its "YYYY-MM-DD" title, creating it if needed.
func (r *Repository) DailyLog(ctx context.Context, date time.Time) (*models.MemoryDocument, error) {
	return r.getOrCreate(ctx, models.MemoryDocDailyLog, date.Format(dailyLogLayout))
}

func (r *Repository) getOrCreate(ctx context.Context, docType models.MemoryDocType, title string) (*models.MemoryDocument, error) {
	key := docKey(r.userID, r.agentID, docType, title)

	r.mu.Lock()
	doc, ok := r.docs[key]
	if ok {
		r.mu.Unlock()
		return doc, nil
	}
	now := time.Now()
	doc = &models.MemoryDocument{
		ID:        uuid.NewString(),
		UserID:    r.userID,
		AgentID:   r.agentID,
		DocType:   docType,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.docs[key] = doc
	r.mu.Unlock()
	return doc, nil
}

// AppendMemory appends text to the curated memory document, following the
// same concatenation rule as the daily log: a blank line separates entries.
func (r *Repository) AppendMemory(ctx context.Context, text string) error {
	doc, err := r.Memory(ctx)
	if err != nil {
		return err
	}
	return r.append(ctx, doc, text)
}

// AppendDailyLog appends text to today's daily log document.
func (r *Repository) AppendDailyLog(ctx context.Context, text string) error {
	doc, err := r.TodayLog(ctx)
	if err != nil {
		return err
	}
	return r.append(ctx, doc, text)
}

func (r *Repository) append(ctx context.Context, doc *models.MemoryDocument, text string) error {
	r.mu.Lock()
	if doc.Content == "" {
		doc.Content = text
	} else {
		doc.Content = doc.Content + "\n\n" + text
	}
	doc.UpdatedAt = time.Now()
	content := doc.Content
	r.mu.Unlock()

	return r.reindex(ctx, doc, content)
}

// LoadIdentity reads an IDENTITY.md file, stores its raw content as the
// identity document, and extracts its structured persona fields (name,
// emoji, theme, creature, vibe, avatar) into the document's metadata for
// quick lookup without re-parsing the markdown.
func (r *Repository) LoadIdentity(ctx context.Context, path string) error {
	id, err := agent.LoadIdentityFromFile(path)
	if err != nil {
		return fmt.Errorf("load identity file: %w", err)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read identity file: %w", err)
	}
	raw := string(rawBytes)

	doc, err := r.getOrCreate(ctx, models.MemoryDocIdentity, "")
	if err != nil {
		return err
	}

	r.mu.Lock()
	doc.Content = raw
	doc.UpdatedAt = time.Now()
	if id.HasValues() {
		doc.Metadata = map[string]string{
			"name":     id.Name,
			"emoji":    id.Emoji,
			"theme":    id.Theme,
			"creature": id.Creature,
			"vibe":     id.Vibe,
			"avatar":   id.Avatar,
		}
	}
	r.mu.Unlock()

	return r.reindex(ctx, doc, raw)
}

// UpdateDocument replaces a singleton document's content wholesale (used
// for SOUL.md/AGENTS.md/USER.md/IDENTITY.md-style identity documents).
func (r *Repository) UpdateDocument(ctx context.Context, docType models.MemoryDocType, title, content string) error {
	doc, err := r.getOrCreate(ctx, docType, title)
	if err != nil {
		return err
	}

	r.mu.Lock()
	doc.Content = content
	doc.UpdatedAt = time.Now()
	r.mu.Unlock()

	return r.reindex(ctx, doc, content)
}

// reindex re-chunks a document's content and, when changed, deletes and
// re-inserts all of its chunks atomically from the caller's standpoint.
func (r *Repository) reindex(ctx context.Context, doc *models.MemoryDocument, content string) error {
	parsed, err := parser.Parse(ctx, strings.NewReader(content), "text/markdown", ".md", nil)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	docChunks, err := r.chunkerFn.Chunk(&models.Document{ID: doc.ID, Content: content}, parsed)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}

	chunks := make([]*models.MemoryChunk, 0, len(docChunks))
	for _, dc := range docChunks {
		chunks = append(chunks, &models.MemoryChunk{
			ID:         dc.ID,
			DocumentID: doc.ID,
			ChunkIndex: dc.Index,
			Content:    dc.Content,
		})
	}

	r.mu.Lock()
	r.chunks[doc.ID] = chunks
	r.mu.Unlock()

	if r.mem == nil {
		return nil
	}

	entries := make([]*models.MemoryEntry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, &models.MemoryEntry{
			ID:      c.ID,
			AgentID: doc.AgentID,
			Content: c.Content,
			Metadata: models.MemoryMetadata{
				Source: "workspace",
				Extra: map[string]any{
					"document_id": doc.ID,
					"doc_type":    string(doc.DocType),
					"title":       doc.Title,
					"chunk_index": c.ChunkIndex,
				},
			},
		})
	}
	if len(entries) == 0 {
		return nil
	}
	return r.mem.Index(ctx, entries)
}

// systemPromptSections pairs each identity document type with the header it
// contributes to the composed system prompt, in order of importance.
var systemPromptSections = []struct {
	docType models.MemoryDocType
	header  string
}{
	{models.MemoryDocAgents, "## Agent Instructions"},
	{models.MemoryDocSoul, "## Core Values"},
	{models.MemoryDocUser, "## User Context"},
	{models.MemoryDocIdentity, "## Identity"},
}

// SystemPrompt composes the agent's system prompt from identity documents
// (Agents/Soul/User/Identity) plus today's and yesterday's daily log notes,
// each section joined by a "---" separator.
func (r *Repository) SystemPrompt(ctx context.Context) (string, error) {
	var parts []string

	for _, section := range systemPromptSections {
		doc, err := r.getOrCreate(ctx, section.docType, "")
		if err != nil {
			return "", err
		}
		if doc.Content != "" {
			parts = append(parts, section.header+"\n\n"+doc.Content)
		}
	}

	now := time.Now()
	for i, date := range []time.Time{now, now.AddDate(0, 0, -1)} {
		doc, err := r.DailyLog(ctx, date)
		if err != nil {
			return "", err
		}
		if doc.Content == "" {
			continue
		}
		header := "## Yesterday's Notes"
		if i == 0 {
			header = "## Today's Notes"
		}
		parts = append(parts, header+"\n\n"+doc.Content)
	}

	return strings.Join(parts, "\n\n---\n\n"), nil
}

// BackfillEmbeddings re-submits every indexed chunk to the embedding-backed
// manager, generating embeddings for any that are missing one. Returns the
// number of chunks processed. A no-op (returning 0) when no manager is
// configured.
func (r *Repository) BackfillEmbeddings(ctx context.Context) (int, error) {
	if r.mem == nil {
		return 0, nil
	}

	r.mu.RLock()
	entries := make([]*models.MemoryEntry, 0)
	for docID, chunks := range r.chunks {
		doc := r.docs[r.keyForID(docID)]
		for _, c := range chunks {
			entries = append(entries, &models.MemoryEntry{
				ID:      c.ID,
				AgentID: r.agentID,
				Content: c.Content,
				Metadata: models.MemoryMetadata{
					Source: "workspace",
					Extra: map[string]any{
						"document_id": docID,
						"doc_type":    string(docTypeOf(doc)),
						"title":       titleOf(doc),
						"chunk_index": c.ChunkIndex,
					},
				},
			})
		}
	}
	r.mu.RUnlock()

	if len(entries) == 0 {
		return 0, nil
	}
	if err := r.mem.Index(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Search runs a hybrid (lexical + vector, RRF-merged) search across indexed
// chunks when an embedding-backed manager is configured, falling back to a
// simple lexical substring scan otherwise.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]*models.MemorySearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	if r.mem != nil {
		resp, err := r.mem.Search(ctx, &models.SearchRequest{
			Query:   query,
			Scope:   models.ScopeAgent,
			ScopeID: r.agentID,
			Limit:   limit,
		})
		if err != nil {
			return nil, err
		}
		return r.toMemorySearchResults(resp.Results), nil
	}

	return r.lexicalSearch(query, limit), nil
}

func (r *Repository) toMemorySearchResults(results []*models.SearchResult) []*models.MemorySearchResult {
	out := make([]*models.MemorySearchResult, 0, len(results))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, res := range results {
		if res == nil || res.Entry == nil {
			continue
		}
		docID, _ := res.Entry.Metadata.Extra["document_id"].(string)
		doc := r.docByID(docID)
		out = append(out, &models.MemorySearchResult{
			Chunk: &models.MemoryChunk{
				ID:         res.Entry.ID,
				DocumentID: docID,
				Content:    res.Entry.Content,
			},
			DocumentID: docID,
			DocType:    docTypeOf(doc),
			Title:      titleOf(doc),
			Score:      float64(res.Score),
		})
	}
	return out
}

// lexicalSearch ranks chunks by occurrence count of the lowercased query
// terms, used when no embedding-backed manager is configured.
func (r *Repository) lexicalSearch(query string, limit int) []*models.MemorySearchResult {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*models.MemorySearchResult
	for docID, chunks := range r.chunks {
		doc := r.docs[r.keyForID(docID)]
		for _, c := range chunks {
			lower := strings.ToLower(c.Content)
			score := 0
			for _, term := range terms {
				score += strings.Count(lower, term)
			}
			if score == 0 {
				continue
			}
			results = append(results, &models.MemorySearchResult{
				Chunk:      c,
				DocumentID: docID,
				DocType:    docTypeOf(doc),
				Title:      titleOf(doc),
				Score:      float64(score),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// docByID scans the document index by ID; call sites hold r.mu.
func (r *Repository) docByID(id string) *models.MemoryDocument {
	for _, d := range r.docs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (r *Repository) keyForID(docID string) string {
	if d := r.docByID(docID); d != nil {
		return docKey(d.UserID, d.AgentID, d.DocType, d.Title)
	}
	return ""
}

func docTypeOf(d *models.MemoryDocument) models.MemoryDocType {
	if d == nil {
		return ""
	}
	return d.DocType
}

func titleOf(d *models.MemoryDocument) string {
	if d == nil {
		return ""
	}
	return d.Title
}
