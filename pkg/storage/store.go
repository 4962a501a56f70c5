// Package storage holds the in-memory flag and segment store backing the
// evaluator. It is built on go-memdb so that every read runs inside an MVCC
// snapshot: an evaluation sees either the configuration before or after a
// concurrent update, never a torn mix.
package storage

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/flagcore/go-server-sdk/pkg/logger"
	"github.com/flagcore/go-server-sdk/pkg/model"
)

const (
	tableFlags    = "flags"
	tableSegments = "segments"
)

// Store keeps the current flag and segment configuration. All methods are
// safe for concurrent use.
type Store struct {
	db  *memdb.MemDB
	log *logger.Logger
}

// New creates an empty store.
func New(log *logger.Logger) (*Store, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableFlags: {
				Name: tableFlags,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Feature"},
					},
				},
			},
			tableSegments: {
				Name: tableSegments,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Identifier"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}

	return &Store{db: db, log: log.Named("storage")}, nil
}

// GetFlag returns the flag with the given identifier.
func (s *Store) GetFlag(identifier string) (model.FeatureConfig, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableFlags, "id", identifier)
	if err != nil {
		return model.FeatureConfig{}, fmt.Errorf("flag lookup %q: %w", identifier, err)
	}
	fc, ok := raw.(model.FeatureConfig)
	if !ok {
		return model.FeatureConfig{}, fmt.Errorf("flag %q: %w", identifier, model.ErrFlagNotFound)
	}
	return fc, nil
}

// GetSegment returns the segment with the given identifier.
func (s *Store) GetSegment(identifier string) (model.Segment, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableSegments, "id", identifier)
	if err != nil {
		return model.Segment{}, fmt.Errorf("segment lookup %q: %w", identifier, err)
	}
	seg, ok := raw.(model.Segment)
	if !ok {
		return model.Segment{}, fmt.Errorf("segment %q: %w", identifier, model.ErrSegmentNotFound)
	}
	return seg, nil
}

// FindFlagsBySegment returns the identifiers of every flag that references
// the segment, either through a segmentMatch clause or an override's target
// segments. Used by change propagation to know which flags a segment update
// invalidates.
func (s *Store) FindFlagsBySegment(segmentIdentifier string) ([]string, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableFlags, "id")
	if err != nil {
		return nil, fmt.Errorf("flag scan: %w", err)
	}

	var found []string
	for obj := it.Next(); obj != nil; obj = it.Next() {
		fc := obj.(model.FeatureConfig)
		if flagReferencesSegment(&fc, segmentIdentifier) {
			found = append(found, fc.Feature)
		}
	}
	return found, nil
}

func flagReferencesSegment(fc *model.FeatureConfig, segmentIdentifier string) bool {
	for _, vm := range fc.VariationToTargetMap {
		for _, seg := range vm.TargetSegments {
			if seg == segmentIdentifier {
				return true
			}
		}
	}
	for _, rule := range fc.Rules {
		for _, clause := range rule.Clauses {
			if clause.Op != model.OpSegmentMatch {
				continue
			}
			for _, v := range clause.Values {
				if v == segmentIdentifier {
					return true
				}
			}
		}
	}
	return false
}

// SetFlag inserts or replaces a flag.
func (s *Store) SetFlag(fc model.FeatureConfig) error {
	txn := s.db.Txn(true)
	if err := txn.Insert(tableFlags, fc); err != nil {
		txn.Abort()
		return fmt.Errorf("store flag %q: %w", fc.Feature, err)
	}
	txn.Commit()
	s.log.Debugf("stored flag %s version %d", fc.Feature, fc.Version)
	return nil
}

// SetSegment inserts or replaces a segment.
func (s *Store) SetSegment(seg model.Segment) error {
	txn := s.db.Txn(true)
	if err := txn.Insert(tableSegments, seg); err != nil {
		txn.Abort()
		return fmt.Errorf("store segment %q: %w", seg.Identifier, err)
	}
	txn.Commit()
	s.log.Debugf("stored segment %s version %d", seg.Identifier, seg.Version)
	return nil
}

// DeleteFlag removes a flag. Deleting an absent flag is not an error.
func (s *Store) DeleteFlag(identifier string) error {
	txn := s.db.Txn(true)
	if _, err := txn.DeleteAll(tableFlags, "id", identifier); err != nil {
		txn.Abort()
		return fmt.Errorf("delete flag %q: %w", identifier, err)
	}
	txn.Commit()
	return nil
}

// DeleteSegment removes a segment. Deleting an absent segment is not an error.
func (s *Store) DeleteSegment(identifier string) error {
	txn := s.db.Txn(true)
	if _, err := txn.DeleteAll(tableSegments, "id", identifier); err != nil {
		txn.Abort()
		return fmt.Errorf("delete segment %q: %w", identifier, err)
	}
	txn.Commit()
	return nil
}

// Replace swaps the whole configuration in one write transaction, so readers
// observe either the previous set or the new one.
func (s *Store) Replace(flags []model.FeatureConfig, segments []model.Segment) error {
	txn := s.db.Txn(true)
	if _, err := txn.DeleteAll(tableFlags, "id"); err != nil {
		txn.Abort()
		return fmt.Errorf("clear flags: %w", err)
	}
	if _, err := txn.DeleteAll(tableSegments, "id"); err != nil {
		txn.Abort()
		return fmt.Errorf("clear segments: %w", err)
	}
	for _, fc := range flags {
		if err := txn.Insert(tableFlags, fc); err != nil {
			txn.Abort()
			return fmt.Errorf("store flag %q: %w", fc.Feature, err)
		}
	}
	for _, seg := range segments {
		if err := txn.Insert(tableSegments, seg); err != nil {
			txn.Abort()
			return fmt.Errorf("store segment %q: %w", seg.Identifier, err)
		}
	}
	txn.Commit()
	s.log.Debugf("replaced configuration: %d flags, %d segments", len(flags), len(segments))
	return nil
}
