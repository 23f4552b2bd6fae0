package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
)

var (
	ErrNotFound = errors.New("withdrawal request not found")
	// ErrInvalidRequest is returned for requests that break their own invariants, on write or on read.
	ErrInvalidRequest = errors.New("invalid withdrawal request")
)

var requestPrefix = []byte("req/")

func requestKey(id uuid.UUID) []byte {
	return append(bytes.Clone(requestPrefix), id.String()...)
}

// Store persists withdrawal requests so their lifecycle spans process restarts.
type Store struct {
	log log.Logger
	db  *pebble.DB
}

// Open opens or creates the request database under datadir.
func Open(logger log.Logger, datadir string) (*Store, error) {
	return open(logger, filepath.Join(datadir, "requests"), &pebble.Options{})
}

// OpenInMemory opens a request database that is discarded on Close.
func OpenInMemory(logger log.Logger) (*Store, error) {
	return open(logger, "", &pebble.Options{FS: vfs.NewMem()})
}

func open(logger log.Logger, path string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open request db %q: %w", path, err)
	}
	logger.Debug("Opened request db", "path", path)
	return &Store{log: logger, db: db}, nil
}

// Put writes the request, replacing any earlier version with the same ID.
func (s *Store) Put(req withdrawal.WithdrawalRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrInvalidRequest, req.ID, err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request %s: %w", req.ID, err)
	}
	if err := s.db.Set(requestKey(req.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write request %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) Get(id uuid.UUID) (withdrawal.WithdrawalRequest, error) {
	data, closer, err := s.db.Get(requestKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return withdrawal.WithdrawalRequest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return withdrawal.WithdrawalRequest{}, fmt.Errorf("failed to read request %s: %w", id, err)
	}
	defer closer.Close()
	return decode(data)
}

func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Delete(requestKey(id), pebble.Sync)
}

// List returns every stored request, oldest first.
func (s *Store) List() ([]withdrawal.WithdrawalRequest, error) {
	var out []withdrawal.WithdrawalRequest
	err := s.iterate(func(req withdrawal.WithdrawalRequest) bool {
		out = append(out, req)
		return false
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindByHash returns the request tracking the given withdrawal hash.
func (s *Store) FindByHash(hash common.Hash) (withdrawal.WithdrawalRequest, error) {
	var (
		found withdrawal.WithdrawalRequest
		ok    bool
	)
	err := s.iterate(func(req withdrawal.WithdrawalRequest) bool {
		if req.WithdrawalHash == hash {
			found, ok = req, true
		}
		return ok
	})
	if err != nil {
		return withdrawal.WithdrawalRequest{}, err
	}
	if !ok {
		return withdrawal.WithdrawalRequest{}, fmt.Errorf("%w: withdrawal hash %s", ErrNotFound, hash)
	}
	return found, nil
}

func (s *Store) iterate(cb func(req withdrawal.WithdrawalRequest) (stop bool)) (err error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: requestPrefix,
		UpperBound: prefixEnd(requestPrefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer func() {
		if closeErr := iter.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		req, err := decode(iter.Value())
		if err != nil {
			return fmt.Errorf("bad entry %s: %w", iter.Key(), err)
		}
		if cb(req) {
			return nil
		}
	}
	return iter.Error()
}

func (s *Store) Close() error {
	var result *multierror.Error
	if err := s.db.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to flush request db: %w", err))
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close request db: %w", err))
	}
	return result.ErrorOrNil()
}

func decode(data []byte) (withdrawal.WithdrawalRequest, error) {
	var req withdrawal.WithdrawalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return withdrawal.WithdrawalRequest{}, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return withdrawal.WithdrawalRequest{}, fmt.Errorf("%w %s: %v", ErrInvalidRequest, req.ID, err)
	}
	return req, nil
}

func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
