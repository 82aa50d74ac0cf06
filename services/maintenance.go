package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ragchat-platform/models"
)

const (
	sweepInterval = 5 * time.Minute
	sweepTimeout  = time.Minute
)

// MaintenanceService periodically fails documents stuck in processing.
// A worker crash mid-pipeline leaves the document in processing forever
// otherwise, since process tasks are not retried.
type MaintenanceService struct {
	documents *mongo.Collection
	statuses  *mongo.Collection
	timeout   time.Duration
	scheduler *gocron.Scheduler
}

func NewMaintenanceService(db *mongo.Database, processingTimeout time.Duration) *MaintenanceService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &MaintenanceService{
		documents: db.Collection("documents"),
		statuses:  db.Collection("processing_statuses"),
		timeout:   processingTimeout,
		scheduler: s,
	}
}

// Start schedules the sweep and runs the scheduler in the background.
func (m *MaintenanceService) Start() error {
	_, err := m.scheduler.Every(sweepInterval).Tag("stuck-documents").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := m.SweepStuckDocuments(ctx); err != nil {
			log.Printf("Stuck document sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	m.scheduler.StartAsync()
	log.Printf("Maintenance scheduler started: sweep every %s, timeout %s", sweepInterval, m.timeout)
	return nil
}

func (m *MaintenanceService) Stop() {
	m.scheduler.Stop()
}

// SweepStuckDocuments fails every document that has been in processing
// longer than the timeout and stamps its status end time.
func (m *MaintenanceService) SweepStuckDocuments(ctx context.Context) error {
	cutoff := time.Now().Add(-m.timeout)

	cursor, err := m.documents.Find(ctx, bson.M{
		"status":     models.StatusProcessing,
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return err
	}
	var stuck []models.Document
	if err := cursor.All(ctx, &stuck); err != nil {
		return err
	}

	now := time.Now()
	for _, doc := range stuck {
		message := fmt.Sprintf("processing timed out after %s", m.timeout)
		if _, err := m.documents.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "status": models.StatusProcessing},
			bson.M{"$set": bson.M{
				"status":        models.StatusFailed,
				"error_message": message,
				"updated_at":    now,
			}}); err != nil {
			return fmt.Errorf("failing stuck document %s: %w", doc.ID, err)
		}
		if _, err := m.statuses.UpdateOne(ctx,
			bson.M{"_id": doc.ID},
			bson.M{"$set": bson.M{"end_time": now}}); err != nil {
			log.Printf("Failed to stamp end time for stuck document %s: %v", doc.ID, err)
		}
		log.Printf("Document %s failed: stuck in processing since %s", doc.ID, doc.UpdatedAt.Format(time.RFC3339))
	}

	if len(stuck) > 0 {
		log.Printf("Stuck document sweep: failed %d documents", len(stuck))
	}
	return nil
}
