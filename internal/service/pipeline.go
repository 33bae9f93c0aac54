// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sgurov/lockbox/internal/crypto"
	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/store"
	"github.com/sgurov/lockbox/models"
)

// DefaultBatchSize is the number of records decrypted and delivered per
// batch. Fixed: callers must not assume any particular value, but the
// engine guarantees chunks of at most this size, in collection order.
const DefaultBatchSize = 10

type pipelineState int

const (
	stateIdle pipelineState = iota
	stateRunning
	stateComplete
)

// batchDecryptPipeline is the private implementation of
// [BatchDecryptPipeline].
type batchDecryptPipeline struct {
	vault  store.VaultStore
	cipher crypto.RecordCipher
	logger *logger.Logger

	batchSize int
	yield     time.Duration

	mu         sync.Mutex
	state      pipelineState
	nextSubID  int64
	batchSinks map[int64]BatchSink
	doneSinks  map[int64]DoneSink

	dropped atomic.Int64
}

// NewBatchDecryptPipeline constructs a [BatchDecryptPipeline] reading
// envelopes from vault and opening them through cipher. yield is the
// cooperative pause inserted between batches; zero disables it.
func NewBatchDecryptPipeline(vault store.VaultStore, cipher crypto.RecordCipher, yield time.Duration, log *logger.Logger) BatchDecryptPipeline {
	return &batchDecryptPipeline{
		vault:      vault,
		cipher:     cipher,
		logger:     log,
		batchSize:  DefaultBatchSize,
		yield:      yield,
		batchSinks: make(map[int64]BatchSink),
		doneSinks:  make(map[int64]DoneSink),
	}
}

// Start implements [BatchDecryptPipeline].
func (p *batchDecryptPipeline) Start(ctx context.Context, password string) (int, error) {
	p.mu.Lock()
	if p.state == stateRunning {
		p.mu.Unlock()
		return 0, ErrDecryptRunning
	}
	p.state = stateRunning
	p.mu.Unlock()

	records, err := p.vault.List(ctx)
	if err != nil {
		p.mu.Lock()
		p.state = stateIdle
		p.mu.Unlock()
		return 0, err
	}

	total := len(records)
	if total == 0 {
		// nothing to stream: complete synchronously, no batches
		p.finish()
		return 0, nil
	}

	// The run deliberately outlives ctx: cancellation means "stop
	// draining" (unsubscribe), not "kill the producer". A run with no
	// registered sinks still completes internally.
	go p.run(context.WithoutCancel(ctx), password, records)

	p.logger.Debug().Int("total", total).Msg("decrypt run started")
	return total, nil
}

func (p *batchDecryptPipeline) run(ctx context.Context, password string, records []models.StoredRecord) {
	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := p.decryptBatch(ctx, password, records[start:end])
		if len(batch) > 0 {
			p.emitBatch(batch)
		}

		if end < len(records) && p.yield > 0 {
			time.Sleep(p.yield)
		}
	}

	p.finish()
}

// decryptBatch opens one chunk of envelopes concurrently, preserving
// collection order in the result. Records that fail to open are dropped
// from the batch; the run keeps going.
func (p *batchDecryptPipeline) decryptBatch(ctx context.Context, password string, chunk []models.StoredRecord) []models.Record {
	results := make([]*models.Record, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	for i := range chunk {
		i := i
		g.Go(func() error {
			stored := chunk[i]
			plain, err := p.cipher.DecryptBulk(gctx, stored.Envelope, password)
			if err != nil {
				p.dropped.Add(1)
				p.logger.Warn().Err(err).Str("id", stored.ID).Msg("record dropped from batch")
				return nil
			}

			rec, err := recordFromStored(stored, plain)
			if err != nil {
				p.dropped.Add(1)
				p.logger.Warn().Err(err).Str("id", stored.ID).Msg("record payload undecodable, dropped")
				return nil
			}

			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait() // closures never return errors; failures are absorbed

	batch := make([]models.Record, 0, len(chunk))
	for _, rec := range results {
		if rec != nil {
			batch = append(batch, *rec)
		}
	}
	return batch
}

func (p *batchDecryptPipeline) emitBatch(batch []models.Record) {
	p.mu.Lock()
	sinks := make([]BatchSink, 0, len(p.batchSinks))
	for _, sink := range p.batchSinks {
		sinks = append(sinks, sink)
	}
	p.mu.Unlock()

	for _, sink := range sinks {
		sink(batch)
	}
}

func (p *batchDecryptPipeline) finish() {
	p.mu.Lock()
	p.state = stateComplete
	sinks := make([]DoneSink, 0, len(p.doneSinks))
	for _, sink := range p.doneSinks {
		sinks = append(sinks, sink)
	}
	p.mu.Unlock()

	for _, sink := range sinks {
		sink()
	}
}

// SubscribeBatches implements [BatchDecryptPipeline].
func (p *batchDecryptPipeline) SubscribeBatches(sink BatchSink) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	p.batchSinks[id] = sink

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.batchSinks, id)
	}
}

// SubscribeDone implements [BatchDecryptPipeline].
func (p *batchDecryptPipeline) SubscribeDone(sink DoneSink) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSubID
	p.nextSubID++
	p.doneSinks[id] = sink

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.doneSinks, id)
	}
}

// Dropped implements [BatchDecryptPipeline].
func (p *batchDecryptPipeline) Dropped() int64 {
	return p.dropped.Load()
}

// recordFromStored reassembles a plaintext Record from its stored form and
// decrypted payload JSON.
func recordFromStored(stored models.StoredRecord, plain string) (models.Record, error) {
	var secret models.SecretPayload
	if err := json.Unmarshal([]byte(plain), &secret); err != nil {
		return models.Record{}, err
	}

	return models.Record{
		ID:           stored.ID,
		Type:         stored.Type,
		Secret:       secret,
		Tags:         stored.Tags,
		IsFavorite:   stored.IsFavorite,
		CreatedAt:    stored.CreatedAt,
		ModifiedAt:   stored.ModifiedAt,
		AccessCount:  stored.AccessCount,
		LastAccessed: stored.LastAccessed,
	}, nil
}
