package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ragchat-platform/internal/vectorstore"
)

// fakeModel returns canned replies and records the conversations it saw.
type fakeModel struct {
	replies []string
	calls   [][]Message
	err     error
}

func (f *fakeModel) Generate(_ context.Context, messages []Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx], nil
}

type fakeRetriever struct {
	hits    []vectorstore.Hit
	queries []string
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]vectorstore.Hit, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.err
}

func hit(docID, chunkID, text string, index int) vectorstore.Hit {
	return vectorstore.Hit{
		Record: vectorstore.Record{
			ID: vectorstore.RecordID(docID, index),
			Metadata: vectorstore.Metadata{
				DocumentID: docID,
				ChunkID:    chunkID,
				ChunkIndex: index,
				Text:       text,
			},
		},
		Score: 0.9,
	}
}

func TestDirect(t *testing.T) {
	model := &fakeModel{replies: []string{"the answer"}}
	p := NewPipeline(model)

	res := p.Direct(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, "what is Go?")

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Content != "the answer" {
		t.Errorf("content = %q", res.Content)
	}
	if len(res.References) != 0 {
		t.Errorf("direct generation produced references: %v", res.References)
	}

	sent := model.calls[0]
	if sent[len(sent)-1].Content != "what is Go?" {
		t.Errorf("last message = %+v, want the question", sent[len(sent)-1])
	}
}

func TestDirectError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	p := NewPipeline(&fakeModel{err: wantErr})

	res := p.Direct(context.Background(), nil, "q")
	if !errors.Is(res.Err, wantErr) {
		t.Fatalf("expected wrapped error, got %v", res.Err)
	}
	if !strings.HasPrefix(res.Content, ErrorResponsePrefix) {
		t.Errorf("content %q does not carry the apologetic prefix", res.Content)
	}
}

func TestRetrievalWithHistoryContextualizes(t *testing.T) {
	model := &fakeModel{replies: []string{"standalone question about Go", "final answer"}}
	retriever := &fakeRetriever{hits: []vectorstore.Hit{
		hit("doc1", "c1", "Go is a language.", 0),
	}}
	p := NewPipeline(model)

	history := []Message{
		{Role: RoleUser, Content: "tell me about Go"},
		{Role: RoleAssistant, Content: "sure"},
	}
	res := p.Retrieval(context.Background(), retriever, history, "what about it?")

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Content != "final answer" {
		t.Errorf("content = %q", res.Content)
	}

	// First model call is the rewrite; retrieval sees its output.
	if len(model.calls) != 2 {
		t.Fatalf("model called %d times, want 2", len(model.calls))
	}
	if model.calls[0][0].Content != ContextualizePrompt {
		t.Error("first call is not the contextualize prompt")
	}
	if len(retriever.queries) != 1 || retriever.queries[0] != "standalone question about Go" {
		t.Errorf("retriever queried with %v", retriever.queries)
	}

	// Answer call carries retrieved context in the system prompt.
	qaSystem := model.calls[1][0]
	if qaSystem.Role != RoleSystem || !strings.Contains(qaSystem.Content, "Go is a language.") {
		t.Errorf("QA system prompt missing context: %+v", qaSystem)
	}

	if len(res.References) != 1 {
		t.Fatalf("got %d references, want 1", len(res.References))
	}
	ref := res.References[0]
	if ref.DocumentID != "doc1" || ref.ChunkID != "c1" || ref.ChunkIndex != 0 {
		t.Errorf("reference = %+v", ref)
	}
	if ref.Snippet != "Go is a language." {
		t.Errorf("snippet = %q", ref.Snippet)
	}
}

func TestRetrievalNoHistorySkipsContextualize(t *testing.T) {
	model := &fakeModel{replies: []string{"answer"}}
	retriever := &fakeRetriever{hits: []vectorstore.Hit{hit("d", "c", "ctx", 0)}}
	p := NewPipeline(model)

	res := p.Retrieval(context.Background(), retriever, nil, "first question")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(model.calls) != 1 {
		t.Fatalf("model called %d times, want 1 (no rewrite without history)", len(model.calls))
	}
	if retriever.queries[0] != "first question" {
		t.Errorf("retriever queried with %q, want the raw question", retriever.queries[0])
	}
}

func TestRetrievalRetrieverError(t *testing.T) {
	wantErr := errors.New("store down")
	p := NewPipeline(&fakeModel{replies: []string{"unused"}})

	res := p.Retrieval(context.Background(), &fakeRetriever{err: wantErr}, nil, "q")
	if !errors.Is(res.Err, wantErr) {
		t.Fatalf("expected retriever error, got %v", res.Err)
	}
	if !strings.HasPrefix(res.Content, ErrorResponsePrefix) {
		t.Errorf("content %q missing apologetic prefix", res.Content)
	}
}

func TestRetrievalSnippetTruncated(t *testing.T) {
	long := strings.Repeat("a", 500)
	model := &fakeModel{replies: []string{"answer"}}
	retriever := &fakeRetriever{hits: []vectorstore.Hit{hit("d", "c", long, 0)}}

	res := NewPipeline(model).Retrieval(context.Background(), retriever, nil, "q")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(res.References[0].Snippet) != snippetLen {
		t.Errorf("snippet length = %d, want %d", len(res.References[0].Snippet), snippetLen)
	}
}

func TestTitleTruncatesAndTrims(t *testing.T) {
	long := strings.Repeat("t", 400)
	model := &fakeModel{replies: []string{`"` + long + `"`}}
	p := NewPipeline(model)

	title, err := p.Title(context.Background(), "first message")
	if err != nil {
		t.Fatal(err)
	}
	if len(title) != 255 {
		t.Errorf("title length = %d, want 255", len(title))
	}
	if strings.Contains(title, `"`) {
		t.Error("title still quoted")
	}
}

func TestTitleError(t *testing.T) {
	p := NewPipeline(&fakeModel{err: errors.New("down")})
	if _, err := p.Title(context.Background(), "msg"); err == nil {
		t.Fatal("expected error")
	}
}
