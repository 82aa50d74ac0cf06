package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TokensUsed         metric.Int64Counter
	DocumentProcessing metric.Float64Histogram
	IndexingDuration   metric.Float64Histogram
	ChunksIndexed      metric.Int64Counter
	ChatResponses      metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ragchat-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	documentProcessing, err := meter.Float64Histogram(
		"document.processing.duration",
		metric.WithDescription("Document pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"vectorstore.indexing.duration",
		metric.WithDescription("Embedding and indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"vectorstore.chunks.indexed",
		metric.WithDescription("Total chunks written to vector stores"),
	)
	if err != nil {
		return nil, err
	}

	chatResponses, err := meter.Int64Counter(
		"chat.responses.total",
		metric.WithDescription("Total assistant responses generated"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		TokensUsed:         tokensUsed,
		DocumentProcessing: documentProcessing,
		IndexingDuration:   indexingDuration,
		ChunksIndexed:      chunksIndexed,
		ChatResponses:      chatResponses,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordDocumentProcessing records one pipeline run
func (m *Metrics) RecordDocumentProcessing(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("document.status", status),
	}

	m.DocumentProcessing.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIndexing records one embed-and-index run
func (m *Metrics) RecordIndexing(duration float64, provider string, chunks int64) {
	attrs := []attribute.KeyValue{
		attribute.String("vectorstore.provider", provider),
	}

	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.ChunksIndexed.Add(context.Background(), chunks, metric.WithAttributes(attrs...))
}

// RecordChatResponse records one generated assistant reply
func (m *Metrics) RecordChatResponse(mode string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("chat.mode", mode),
		attribute.Bool("chat.success", success),
	}

	m.ChatResponses.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
