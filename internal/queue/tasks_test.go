package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIndexRetryDelay(t *testing.T) {
	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 60 * time.Second},
		{1, 120 * time.Second},
		{2, 240 * time.Second},
		{3, 240 * time.Second},
		{10, 240 * time.Second},
	}

	for _, c := range cases {
		if got := IndexRetryDelay(c.n, nil, nil); got != c.want {
			t.Errorf("IndexRetryDelay(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestNewDocumentProcessTask(t *testing.T) {
	task, err := NewDocumentProcessTask("doc-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskDocumentProcess {
		t.Errorf("type = %q", task.Type())
	}

	var payload DocumentProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.DocumentID != "doc-1" || payload.UserID != "user-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestNewVectorIndexTask(t *testing.T) {
	task, err := NewVectorIndexTask("vs-1", "doc-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskVectorIndex {
		t.Errorf("type = %q", task.Type())
	}

	var payload VectorIndexPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.VectorStoreID != "vs-1" || payload.DocumentID != "doc-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestQueuePriorities(t *testing.T) {
	if Queues[QueueCritical] <= Queues[QueueDefault] || Queues[QueueDefault] <= Queues[QueueLow] {
		t.Errorf("queue priorities not strictly ordered: %v", Queues)
	}
}
