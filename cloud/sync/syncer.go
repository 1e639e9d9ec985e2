// Package sync reconciles a session's local document store with a cloud
// dataset. A run hashes both sides into per-type digest trees, computes a
// transfer plan against the last-sync index, executes the remote half of
// the plan with bounded concurrency, and records the resulting state so
// the next run can tell additions from deletions.
package sync

import (
	"context"
	"encoding/json"
	"sort"
	gosync "sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndx-io/NDX/cloud"
	"github.com/ndx-io/NDX/document"
	"github.com/ndx-io/NDX/errors"
	"github.com/ndx-io/NDX/sym"
)

const defaultWorkers = 4

// Options configures a Syncer.
type Options struct {
	// SessionID scopes which local documents take part in the sync.
	SessionID string
	// DatasetID is the cloud dataset to reconcile against.
	DatasetID string
	// IndexPath locates the last-sync index file, typically
	// IndexPath(sessionDir).
	IndexPath string
	// Workers bounds concurrent remote transfers. Defaults to 4.
	Workers int
	// DryRun computes and returns the plan without executing it.
	DryRun bool

	Logger *zap.SugaredLogger
}

// Syncer reconciles one session's documents with one cloud dataset.
type Syncer struct {
	store     *document.Store
	client    *cloud.Client
	sessionID string
	datasetID string
	indexPath string
	workers   int
	dryRun    bool
	logger    *zap.SugaredLogger
}

// New builds a Syncer over a local store and a cloud client.
func New(store *document.Store, client *cloud.Client, opts Options) (*Syncer, error) {
	if store == nil {
		return nil, errors.NewInvalidRequestError("document store is required")
	}
	if client == nil {
		return nil, errors.NewInvalidRequestError("cloud client is required")
	}
	if opts.SessionID == "" {
		return nil, errors.NewInvalidRequestError("session id is required")
	}
	if opts.DatasetID == "" {
		return nil, errors.NewInvalidRequestError("dataset id is required")
	}
	if opts.IndexPath == "" {
		return nil, errors.NewInvalidRequestError("index path is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Syncer{
		store:     store,
		client:    client,
		sessionID: opts.SessionID,
		datasetID: opts.DatasetID,
		indexPath: opts.IndexPath,
		workers:   workers,
		dryRun:    opts.DryRun,
		logger:    logger,
	}, nil
}

// Report is the outcome of a sync run: the plan plus what actually
// happened. Failures on individual documents do not abort the run; they
// are collected in Failed.
type Report struct {
	Plan

	Uploaded      []string `json:"uploaded,omitempty"`
	Downloaded    []string `json:"downloaded,omitempty"`
	DeletedLocal  []string `json:"deleted_local,omitempty"`
	DeletedRemote []string `json:"deleted_remote,omitempty"`
	UpdatedRemote []string `json:"updated_remote,omitempty"`
	UpdatedLocal  []string `json:"updated_local,omitempty"`
	Failed        []string `json:"failed,omitempty"`
	DryRun        bool     `json:"dry_run"`
}

// Plan computes the transfer plan for a mode without executing anything.
func (s *Syncer) Plan(ctx context.Context, mode Mode) (Plan, error) {
	localTree, _, err := s.localState(ctx)
	if err != nil {
		return Plan{}, err
	}
	remoteTree, _, err := s.remoteState(ctx)
	if err != nil {
		return Plan{}, err
	}
	idx, err := ReadIndex(s.indexPath)
	if err != nil {
		return Plan{}, err
	}
	return ComputePlan(mode, localTree, remoteTree, idx)
}

// Run computes and executes a sync. On a dry run the returned report
// carries the plan and nothing else. The index is only written when the
// run was not cancelled, and records the executed state, not the planned
// one, so a partially failed run stays consistent.
func (s *Syncer) Run(ctx context.Context, mode Mode) (*Report, error) {
	localTree, localDocs, err := s.localState(ctx)
	if err != nil {
		return nil, err
	}
	remoteTree, remoteDocs, err := s.remoteState(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := ReadIndex(s.indexPath)
	if err != nil {
		return nil, err
	}

	plan, err := ComputePlan(mode, localTree, remoteTree, idx)
	if err != nil {
		return nil, err
	}

	report := &Report{Plan: plan, DryRun: s.dryRun}
	if len(plan.Conflicts) > 0 {
		s.logger.Warnw("Sync conflicts skipped",
			"symbol", sym.Cloud,
			"mode", mode,
			"conflicts", plan.Conflicts,
		)
	}
	if s.dryRun {
		return report, nil
	}

	// Remote mutations first, network bound and bounded in parallelism.
	var mu gosync.Mutex
	fail := func(id string, op string, err error) {
		s.logger.Warnw("Sync operation failed",
			"symbol", sym.Cloud,
			"op", op,
			"document", id,
			"error", err,
		)
		mu.Lock()
		report.Failed = append(report.Failed, id)
		mu.Unlock()
	}
	record := func(list *[]string, id string) {
		mu.Lock()
		*list = append(*list, id)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range plan.DeleteRemote {
		id := id
		g.Go(func() error {
			if err := s.client.DeleteDocument(gctx, s.datasetID, id); err != nil {
				fail(id, "delete_remote", err)
				return nil
			}
			record(&report.DeletedRemote, id)
			return nil
		})
	}
	for _, id := range plan.Uploads {
		id := id
		doc := localDocs[id]
		g.Go(func() error {
			raw, err := json.Marshal(doc)
			if err != nil {
				fail(id, "upload", err)
				return nil
			}
			if err := s.client.AddDocument(gctx, s.datasetID, raw); err != nil {
				fail(id, "upload", err)
				return nil
			}
			record(&report.Uploaded, id)
			return nil
		})
	}
	for _, id := range plan.UpdateRemote {
		id := id
		doc := localDocs[id]
		g.Go(func() error {
			raw, err := json.Marshal(doc)
			if err != nil {
				fail(id, "update_remote", err)
				return nil
			}
			if err := s.client.UpdateDocument(gctx, s.datasetID, id, raw); err != nil {
				fail(id, "update_remote", err)
				return nil
			}
			record(&report.UpdatedRemote, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Local mutations. Remote bodies were already fetched while hashing,
	// so downloads are plain store writes.
	for _, id := range plan.DeleteLocal {
		if _, err := s.store.Remove(ctx, id); err != nil {
			fail(id, "delete_local", err)
			continue
		}
		report.DeletedLocal = append(report.DeletedLocal, id)
	}
	for _, id := range plan.Downloads {
		doc, err := decodeRemote(remoteDocs[id])
		if err != nil {
			fail(id, "download", err)
			continue
		}
		if err := s.store.Add(ctx, doc); err != nil {
			fail(id, "download", err)
			continue
		}
		report.Downloaded = append(report.Downloaded, id)
	}
	for _, id := range plan.UpdateLocal {
		doc, err := decodeRemote(remoteDocs[id])
		if err != nil {
			fail(id, "update_local", err)
			continue
		}
		if err := s.store.Update(ctx, doc); err != nil {
			fail(id, "update_local", err)
			continue
		}
		report.UpdatedLocal = append(report.UpdatedLocal, id)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	sortReport(report)
	s.writeIndex(localTree, remoteTree, &idx, report)

	s.logger.Infow("Sync complete",
		"symbol", sym.Cloud,
		"mode", mode,
		"uploaded", len(report.Uploaded),
		"downloaded", len(report.Downloaded),
		"deleted_local", len(report.DeletedLocal),
		"deleted_remote", len(report.DeletedRemote),
		"updated_remote", len(report.UpdatedRemote),
		"updated_local", len(report.UpdatedLocal),
		"conflicts", len(report.Conflicts),
		"failed", len(report.Failed),
	)
	return report, nil
}

// localState hashes every local document into a digest tree.
func (s *Syncer) localState(ctx context.Context) (*Tree, map[string]*document.Document, error) {
	docs, err := s.store.All(ctx, s.sessionID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list local documents")
	}
	tree := NewTree()
	byID := make(map[string]*document.Document, len(docs))
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encode document %s", doc.ID)
		}
		h, err := HashDocument(raw)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "hash document %s", doc.ID)
		}
		tree.Insert(doc.Type, doc.ID, h)
		byID[doc.ID] = doc
	}
	return tree, byID, nil
}

// remoteState fetches and hashes every remote document. Bodies are kept
// so downloads need no second round trip.
func (s *Syncer) remoteState(ctx context.Context) (*Tree, map[string]cloud.RemoteDocument, error) {
	docs, err := s.client.ListAllDocuments(ctx, s.datasetID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list remote documents")
	}
	tree := NewTree()
	byID := make(map[string]cloud.RemoteDocument, len(docs))
	for _, rd := range docs {
		if rd.ID == "" {
			s.logger.Warnw("Skipping remote document without id",
				"symbol", sym.Cloud,
				"dataset", s.datasetID,
			)
			continue
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(rd.Body, &head); err != nil {
			s.logger.Warnw("Skipping unparseable remote document",
				"symbol", sym.Cloud,
				"document", rd.ID,
				"error", err,
			)
			continue
		}
		h, err := HashDocument(rd.Body)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "hash remote document %s", rd.ID)
		}
		tree.Insert(head.Type, rd.ID, h)
		byID[rd.ID] = rd
	}
	return tree, byID, nil
}

func decodeRemote(rd cloud.RemoteDocument) (*document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal(rd.Body, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode remote document %s", rd.ID)
	}
	return &doc, nil
}

// writeIndex records the executed final state. Failed transfers leave
// their documents in the pre-sync state on the failed side, which is what
// the executed sets express.
func (s *Syncer) writeIndex(localTree, remoteTree *Tree, idx *Index, report *Report) {
	localLeaves := localTree.Leaves()
	remoteLeaves := remoteTree.Leaves()

	finalLocal := make(map[string]struct{}, len(localLeaves))
	for id := range localLeaves {
		finalLocal[id] = struct{}{}
	}
	for _, id := range report.DeletedLocal {
		delete(finalLocal, id)
	}
	for _, id := range report.Downloaded {
		finalLocal[id] = struct{}{}
	}

	finalRemote := make(map[string]struct{}, len(remoteLeaves))
	for id := range remoteLeaves {
		finalRemote[id] = struct{}{}
	}
	for _, id := range report.DeletedRemote {
		delete(finalRemote, id)
	}
	for _, id := range report.Uploaded {
		finalRemote[id] = struct{}{}
	}

	digests := make(map[string]string)
	for id := range finalLocal {
		if h, ok := localLeaves[id]; ok {
			digests[id] = HexHash(h)
		}
	}
	// Documents the local side took from the remote now carry the remote
	// content.
	for _, id := range report.Downloaded {
		if h, ok := remoteLeaves[id]; ok {
			digests[id] = HexHash(h)
		}
	}
	for _, id := range report.UpdatedLocal {
		if h, ok := remoteLeaves[id]; ok {
			digests[id] = HexHash(h)
		}
	}
	for id := range finalRemote {
		if _, ok := digests[id]; ok {
			continue
		}
		if h, ok := remoteLeaves[id]; ok {
			digests[id] = HexHash(h)
		}
	}

	idx.Update(sortedIDs(finalLocal), sortedIDs(finalRemote), digests)
	if err := idx.Write(s.indexPath); err != nil {
		s.logger.Warnw("Failed to write sync index",
			"symbol", sym.Cloud,
			"path", s.indexPath,
			"error", err,
		)
	}
}

func sortReport(r *Report) {
	sort.Strings(r.Uploaded)
	sort.Strings(r.Downloaded)
	sort.Strings(r.DeletedLocal)
	sort.Strings(r.DeletedRemote)
	sort.Strings(r.UpdatedRemote)
	sort.Strings(r.UpdatedLocal)
	sort.Strings(r.Failed)
}
