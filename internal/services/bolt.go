package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for persistent storage of submissions
// and the bots' responses to them.
type BoltDB struct {
	db *bolt.DB
}

var submissionsBucket = []byte("submissions")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(submissionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create buckets: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Submissions retrieves every stored submission, newest first.
func (b BoltDB) Submissions(context.Context) ([]models.Submission, error) {
	var subs []models.Submission
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(submissionsBucket).ForEach(func(_, v []byte) error {
			var sub models.Submission
			if err := json.Unmarshal(v, &sub); err != nil {
				return fmt.Errorf("failed to unmarshal submission: %w", err)
			}
			subs = append(subs, sub)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(subs)
	return subs, nil
}

// Submission retrieves one submission by ID.
func (b BoltDB) Submission(_ context.Context, id string) (models.Submission, error) {
	var sub models.Submission
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(submissionsBucket).Get([]byte(id))
		if v == nil {
			return models.ErrSubmissionNotFound
		}
		if err := json.Unmarshal(v, &sub); err != nil {
			return fmt.Errorf("failed to unmarshal submission: %w", err)
		}
		return nil
	})
	return sub, err
}

// AddSubmission stores a new submission. It generates the stored ID by prefixing the submission's ID
// with a sequence number, so keys sort by insertion order, and returns that ID.
func (b BoltDB) AddSubmission(_ context.Context, sub models.Submission) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(submissionsBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%010d-%s", seq, sub.ID)
		sub.ID = newID

		v, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("failed to marshal submission: %w", err)
		}

		return bucket.Put([]byte(newID), v)
	})

	return newID, err
}

// SetResponse records the final response of bot for the submission, replacing any earlier one.
func (b BoltDB) SetResponse(_ context.Context, submissionID, bot string, res models.BotResponse) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(submissionsBucket)

		v := bucket.Get([]byte(submissionID))
		if v == nil {
			return models.ErrSubmissionNotFound
		}

		var sub models.Submission
		if err := json.Unmarshal(v, &sub); err != nil {
			return fmt.Errorf("failed to unmarshal submission: %w", err)
		}
		if sub.Responses == nil {
			sub.Responses = make(map[string]models.BotResponse)
		}
		sub.Responses[bot] = res

		v, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("failed to marshal submission: %w", err)
		}

		return bucket.Put([]byte(submissionID), v)
	})
}
