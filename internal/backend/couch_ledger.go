package backend

import (
	"context"
	"fmt"

	"github.com/Buildathonzx/whisperrnote/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// couchLedgerStore persists notes as CouchDB documents, one doc per note id.
// CouchDB's MVCC gives the single-writer-per-record guarantee the ledger
// side assumes.
type couchLedgerStore struct {
	client *kivik.Client
	dbName string
}

func NewCouchLedgerStore(client *kivik.Client, dbName string) LedgerStore {
	return &couchLedgerStore{
		client: client,
		dbName: dbName,
	}
}

func (s *couchLedgerStore) PutNote(ctx context.Context, note *domain.Note) error {
	db := s.client.DB(s.dbName)
	docID := fmt.Sprintf("note:%s", note.ID)

	// Carry the current revision forward when the doc already exists,
	// otherwise CouchDB rejects the write as a conflict.
	var existing map[string]interface{}
	if err := db.Get(ctx, docID).ScanDoc(&existing); err == nil {
		doc := noteToDoc(note)
		doc["_rev"] = existing["_rev"]
		if _, err := db.Put(ctx, docID, doc); err != nil {
			return fmt.Errorf("%w: failed to update ledger note: %v", domain.ErrRemoteFailure, err)
		}
		return nil
	}

	if _, err := db.Put(ctx, docID, noteToDoc(note)); err != nil {
		return fmt.Errorf("%w: failed to put ledger note: %v", domain.ErrRemoteFailure, err)
	}
	return nil
}

func (s *couchLedgerStore) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	db := s.client.DB(s.dbName)
	docID := fmt.Sprintf("note:%s", id)

	row := db.Get(ctx, docID)

	var note domain.Note
	if err := row.ScanDoc(&note); err != nil {
		if kivik.HTTPStatus(err) == 404 {
			return nil, fmt.Errorf("ledger note %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get ledger note: %v", domain.ErrRemoteFailure, err)
	}

	return &note, nil
}

func (s *couchLedgerStore) ListNotes(ctx context.Context, identity string) ([]*domain.Note, error) {
	db := s.client.DB(s.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"owner": identity,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list ledger notes: %v", domain.ErrRemoteFailure, err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.ScanDoc(&note); err != nil {
			continue
		}
		notes = append(notes, &note)
	}

	return notes, nil
}

func noteToDoc(note *domain.Note) map[string]interface{} {
	return map[string]interface{}{
		"id":                note.ID,
		"owner":             note.Owner,
		"encrypted_content": note.EncryptedContent,
		"metadata":          note.Metadata,
		"shared_with":       note.SharedWith,
		"created_at":        note.CreatedAt,
		"updated_at":        note.UpdatedAt,
	}
}
