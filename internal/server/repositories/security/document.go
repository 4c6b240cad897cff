package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/secledger/internal/securestore"
	"github.com/dmitrijs2005/secledger/internal/server/models"
)

// ErrSealedDocument is returned when the stored document is encrypted but
// the store was opened without a secret.
var ErrSealedDocument = errors.New("security document is encrypted, no secret configured")

// Backend persists the raw bytes of the whole security document.
// Load returns an empty slice when nothing has been stored yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// DocumentStore keeps every record in a single JSON document held by a
// Backend. The document is read in full at the start of each transaction
// and rewritten in full when the transaction changed something.
type DocumentStore struct {
	backend Backend
	sealer  *securestore.Sealer
	sem     chan struct{}
}

// NewDocumentStore returns a store over backend. A non-empty secret seals
// the document with securestore on every write; unsealed documents are
// still accepted on read. The sealing key is derived once and reused for
// the life of the store.
func NewDocumentStore(backend Backend, secret string) *DocumentStore {
	s := &DocumentStore{
		backend: backend,
		sem:     make(chan struct{}, 1),
	}
	if secret != "" {
		s.sealer = securestore.NewSealer(secret)
	}
	return s
}

func (s *DocumentStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	tx := &documentTx{doc: doc}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	return s.save(ctx, doc)
}

func (s *DocumentStore) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *DocumentStore) load(ctx context.Context) (*models.Document, error) {
	raw, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if len(raw) == 0 {
		return models.NewDocument(), nil
	}

	if securestore.IsSealed(raw) {
		if s.sealer == nil {
			return nil, ErrSealedDocument
		}
		raw, err = s.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
	}

	doc := models.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Security == nil {
		doc.Security = map[string]*models.UserSecurity{}
	}
	for name, rec := range doc.Security {
		if rec == nil {
			doc.Security[name] = models.NewUserSecurity()
			continue
		}
		rec.Normalize()
	}
	return doc, nil
}

func (s *DocumentStore) save(ctx context.Context, doc *models.Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if s.sealer != nil {
		raw, err = s.sealer.Seal(raw)
		if err != nil {
			return fmt.Errorf("seal document: %w", err)
		}
	}
	if err := s.backend.Save(ctx, raw); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

type documentTx struct {
	doc   *models.Document
	dirty bool
}

func (t *documentTx) GetOrCreate(_ context.Context, username string) (*models.UserSecurity, error) {
	rec, ok := t.doc.Security[username]
	if !ok {
		rec = models.NewUserSecurity()
		t.doc.Security[username] = rec
		t.dirty = true
	}
	return rec.Clone(), nil
}

func (t *documentTx) Put(_ context.Context, username string, rec *models.UserSecurity) error {
	c := rec.Clone()
	c.Normalize()
	t.doc.Security[username] = c
	t.dirty = true
	return nil
}
