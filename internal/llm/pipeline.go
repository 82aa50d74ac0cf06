package llm

import (
	"context"
	"log"
	"strings"

	"ragchat-platform/internal/vectorstore"
	"ragchat-platform/models"
)

// TopK is how many chunks retrieval feeds into the answer prompt.
const TopK = 4

// ErrorResponsePrefix starts the assistant message stored when
// generation fails, so the user still gets a reply in the transcript.
const ErrorResponsePrefix = "I'm sorry, I encountered an error: "

// snippetLen bounds the citation excerpt stored with a reference.
const snippetLen = 200

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.Hit, error)
}

// Result is the outcome of one generation run. When Err is set,
// Content still carries a user-facing apologetic reply.
type Result struct {
	Content    string
	References []models.Reference
	Err        error
}

// Pipeline orchestrates direct and retrieval-augmented generation over
// a ChatModel.
type Pipeline struct {
	model ChatModel
}

func NewPipeline(model ChatModel) *Pipeline {
	return &Pipeline{model: model}
}

// Direct answers from the conversation alone, without retrieval.
func (p *Pipeline) Direct(ctx context.Context, history []Message, question string) Result {
	messages := append(append([]Message{}, history...), Message{Role: RoleUser, Content: question})

	content, err := p.model.Generate(ctx, messages)
	if err != nil {
		return errorResult(err)
	}
	return Result{Content: content}
}

// Retrieval answers with context fetched from a vector store. The
// question is first rewritten into a standalone form when history
// exists, so follow-ups like "what about the second one?" retrieve
// sensibly.
func (p *Pipeline) Retrieval(ctx context.Context, retriever Retriever, history []Message, question string) Result {
	standalone := p.contextualize(ctx, history, question)

	hits, err := retriever.Retrieve(ctx, standalone)
	if err != nil {
		return errorResult(err)
	}

	messages := []Message{{Role: RoleSystem, Content: QAPrompt(joinContext(hits))}}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: question})

	content, err := p.model.Generate(ctx, messages)
	if err != nil {
		return errorResult(err)
	}

	return Result{Content: content, References: references(hits)}
}

// Title generates a short session title from the first user message,
// truncated to the stored maximum.
func (p *Pipeline) Title(ctx context.Context, firstMessage string) (string, error) {
	title, err := p.model.Generate(ctx, []Message{
		{Role: RoleUser, Content: TitlePrompt(firstMessage)},
	})
	if err != nil {
		return "", err
	}

	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if len(title) > models.MaxSessionTitleLen {
		title = title[:models.MaxSessionTitleLen]
	}
	return title, nil
}

// Summarize produces a concise summary of raw document content.
func (p *Pipeline) Summarize(ctx context.Context, content string) (string, error) {
	return p.model.Generate(ctx, []Message{
		{Role: RoleSystem, Content: SummaryPrompt(content)},
		{Role: RoleUser, Content: "Please summarize this content."},
	})
}

// contextualize rewrites the question for retrieval. Failure here is
// not fatal; the raw question is used instead.
func (p *Pipeline) contextualize(ctx context.Context, history []Message, question string) string {
	if len(history) == 0 {
		return question
	}

	messages := []Message{{Role: RoleSystem, Content: ContextualizePrompt}}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: question})

	standalone, err := p.model.Generate(ctx, messages)
	if err != nil {
		log.Printf("Contextualizing question failed, using raw question: %v", err)
		return question
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question
	}
	return standalone
}

func joinContext(hits []vectorstore.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Metadata.Text)
	}
	return strings.Join(parts, "\n\n")
}

func references(hits []vectorstore.Hit) []models.Reference {
	refs := make([]models.Reference, 0, len(hits))
	for _, h := range hits {
		snippet := h.Metadata.Text
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		refs = append(refs, models.Reference{
			DocumentID: h.Metadata.DocumentID,
			ChunkID:    h.Metadata.ChunkID,
			ChunkIndex: h.Metadata.ChunkIndex,
			PageNumber: h.Metadata.PageNumber,
			Snippet:    snippet,
		})
	}
	return refs
}

func errorResult(err error) Result {
	return Result{
		Content: ErrorResponsePrefix + err.Error(),
		Err:     err,
	}
}
