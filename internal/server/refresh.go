package server

import (
	"context"
	"errors"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/graph"
)

type snapshotSource interface {
	LoadLatest(ctx context.Context) ([]byte, uint64, error)
}

// refreshStore reloads the in-memory graph when the durable snapshot has
// advanced past the local revision. The server never commits; the worker
// owns every mutation, so following the sink is all the server needs to
// serve current reads. A backend with no snapshot yet means an empty graph,
// not an error.
func refreshStore(ctx context.Context, store *graph.Store, source snapshotSource) error {
	data, revision, err := source.LoadLatest(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound()) {
			return nil
		}
		return err
	}
	if revision <= store.Revision() {
		return nil
	}
	return store.Load(data)
}
