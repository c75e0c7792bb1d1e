package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/newthinker/triggerlab/internal/backtest"
	"github.com/newthinker/triggerlab/internal/core"
	"github.com/newthinker/triggerlab/internal/report"
)

const runsPrefix = "runs"

// Archive stores each run as runs/<id>.json with its trades alongside as runs/<id>.csv
type Archive struct {
	store Storage
}

// New wraps a blob store
func New(store Storage) *Archive {
	return &Archive{store: store}
}

func runKey(id, ext string) string {
	return path.Join(runsPrefix, id+ext)
}

// Record saves a finished run. It satisfies backtest.Recorder.
func (a *Archive) Record(ctx context.Context, res *backtest.Result) error {
	if _, err := uuid.Parse(res.ID); err != nil {
		return core.WrapError(core.ErrRunNotFound, fmt.Errorf("invalid run id %q", res.ID))
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	if err := a.store.Write(ctx, runKey(res.ID, ".json"), data); err != nil {
		return fmt.Errorf("writing run %s: %w", res.ID, err)
	}

	if res.Report == nil || res.NoTrades {
		return nil
	}
	var buf bytes.Buffer
	if err := report.WriteTradesCSV(&buf, res.Trades); err != nil {
		return err
	}
	if err := a.store.Write(ctx, runKey(res.ID, ".csv"), buf.Bytes()); err != nil {
		return fmt.Errorf("writing trades of %s: %w", res.ID, err)
	}
	return nil
}

// Load reads back a stored run
func (a *Archive) Load(ctx context.Context, id string) (*backtest.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrRunNotFound
	}

	data, err := a.store.Read(ctx, runKey(id, ".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var res backtest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &res, nil
}

// Trades returns the stored CSV export of a run
func (a *Archive) Trades(ctx context.Context, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrRunNotFound
	}
	data, err := a.store.Read(ctx, runKey(id, ".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrRunNotFound
	}
	return data, err
}

// List returns the stored run IDs in lexical order
func (a *Archive) List(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, runsPrefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, k := range keys {
		base := path.Base(k)
		if id, ok := strings.CutSuffix(base, ".json"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a run and its trades
func (a *Archive) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrRunNotFound
	}
	ok, err := a.store.Exists(ctx, runKey(id, ".json"))
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrRunNotFound
	}
	if err := a.store.Delete(ctx, runKey(id, ".json")); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, runKey(id, ".csv")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
