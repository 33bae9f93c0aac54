// SPDX-License-Identifier: Apache-2.0

package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sgurov/lockbox/internal/logger"
	"github.com/sgurov/lockbox/internal/mock"
	"github.com/sgurov/lockbox/internal/service"
	"github.com/sgurov/lockbox/models"
)

// storedRecords fabricates n records whose payloads can be matched back to
// their position: the envelope ciphertext carries the record id.
func storedRecords(n int) []models.StoredRecord {
	out := make([]models.StoredRecord, n)
	for i := range out {
		id := fmt.Sprintf("id-%03d", i)
		out[i] = models.StoredRecord{
			ID:       id,
			Type:     models.TypePassword,
			Envelope: models.CipherEnvelope{Ciphertext: id},
		}
	}
	return out
}

// payloadFor is the plaintext the fake cipher returns for a given envelope.
func payloadFor(env models.CipherEnvelope) string {
	return fmt.Sprintf(`{"password":{"site":"%s","username":"u","password":"p"}}`, env.Ciphertext)
}

func TestBatchDecryptPipelineStreamsInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	const total = 25
	vault.EXPECT().List(gomock.Any()).Return(storedRecords(total), nil)
	cipher.EXPECT().
		DecryptBulk(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env models.CipherEnvelope, _ string) (string, error) {
			return payloadFor(env), nil
		}).
		Times(total)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var (
		mu      sync.Mutex
		batches [][]models.Record
	)
	done := make(chan struct{})
	p.SubscribeBatches(func(batch []models.Record) {
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	})
	p.SubscribeDone(func() { close(done) })

	got, err := p.Start(context.Background(), "master")
	require.NoError(t, err)
	assert.Equal(t, total, got)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt run did not complete")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 5)

	// collection order must survive batching and the per-batch fan-out
	i := 0
	for _, batch := range batches {
		for _, rec := range batch {
			assert.Equal(t, fmt.Sprintf("id-%03d", i), rec.ID)
			require.NotNil(t, rec.Secret.Password)
			assert.Equal(t, rec.ID, rec.Secret.Password.Site)
			i++
		}
	}
	assert.Equal(t, int64(0), p.Dropped())
}

func TestBatchDecryptPipelineZeroRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	vault.EXPECT().List(gomock.Any()).Return(nil, nil)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var batchCalls, doneCalls int
	p.SubscribeBatches(func([]models.Record) { batchCalls++ })
	p.SubscribeDone(func() { doneCalls++ })

	total, err := p.Start(context.Background(), "master")
	require.NoError(t, err)
	assert.Zero(t, total)

	// an empty vault completes before Start returns, with no batches
	assert.Equal(t, 1, doneCalls)
	assert.Zero(t, batchCalls)
}

func TestBatchDecryptPipelineDropsUndecryptable(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	records := storedRecords(6)
	vault.EXPECT().List(gomock.Any()).Return(records, nil)
	cipher.EXPECT().
		DecryptBulk(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env models.CipherEnvelope, _ string) (string, error) {
			if env.Ciphertext == "id-002" || env.Ciphertext == "id-004" {
				return "", errors.New("authentication failed")
			}
			return payloadFor(env), nil
		}).
		Times(6)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var (
		mu  sync.Mutex
		ids []string
	)
	done := make(chan struct{})
	p.SubscribeBatches(func(batch []models.Record) {
		mu.Lock()
		for _, rec := range batch {
			ids = append(ids, rec.ID)
		}
		mu.Unlock()
	})
	p.SubscribeDone(func() { close(done) })

	total, err := p.Start(context.Background(), "master")
	require.NoError(t, err)
	assert.Equal(t, 6, total) // total counts stored records, not survivors

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt run did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"id-000", "id-001", "id-003", "id-005"}, ids)
	assert.Equal(t, int64(2), p.Dropped())
}

func TestBatchDecryptPipelineUnsubscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	vault.EXPECT().List(gomock.Any()).Return(storedRecords(5), nil)
	cipher.EXPECT().
		DecryptBulk(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env models.CipherEnvelope, _ string) (string, error) {
			return payloadFor(env), nil
		}).
		Times(5)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var delivered atomic.Int64
	unsubscribe := p.SubscribeBatches(func([]models.Record) { delivered.Add(1) })
	unsubscribe()

	done := make(chan struct{})
	p.SubscribeDone(func() { close(done) })

	_, err := p.Start(context.Background(), "master")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt run did not complete")
	}

	// the run still completed, it just had nobody to deliver batches to
	assert.Zero(t, delivered.Load())
}

func TestBatchDecryptPipelineRejectsConcurrentStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	release := make(chan struct{})
	vault.EXPECT().List(gomock.Any()).Return(storedRecords(3), nil)
	cipher.EXPECT().
		DecryptBulk(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, env models.CipherEnvelope, _ string) (string, error) {
			<-release
			return payloadFor(env), nil
		}).
		Times(3)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	done := make(chan struct{})
	p.SubscribeDone(func() { close(done) })

	_, err := p.Start(context.Background(), "master")
	require.NoError(t, err)

	_, err = p.Start(context.Background(), "master")
	assert.ErrorIs(t, err, service.ErrDecryptRunning)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt run did not complete")
	}
}

func TestBatchDecryptPipelineRestartsAfterCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	vault.EXPECT().List(gomock.Any()).Return(nil, nil).Times(2)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var doneCalls atomic.Int64
	p.SubscribeDone(func() { doneCalls.Add(1) })

	_, err := p.Start(context.Background(), "master")
	require.NoError(t, err)

	_, err = p.Start(context.Background(), "master")
	require.NoError(t, err)

	assert.Equal(t, int64(2), doneCalls.Load())
}

func TestBatchDecryptPipelineOutlivesCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	vault := mock.NewMockVaultStore(ctrl)
	cipher := mock.NewMockRecordCipher(ctrl)

	vault.EXPECT().List(gomock.Any()).Return(storedRecords(4), nil)
	cipher.EXPECT().
		DecryptBulk(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, env models.CipherEnvelope, _ string) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return payloadFor(env), nil
		}).
		Times(4)

	p := service.NewBatchDecryptPipeline(vault, cipher, 0, logger.Nop())

	var received atomic.Int64
	done := make(chan struct{})
	p.SubscribeBatches(func(batch []models.Record) { received.Add(int64(len(batch))) })
	p.SubscribeDone(func() { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.Start(ctx, "master")
	require.NoError(t, err)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("decrypt run did not survive context cancellation")
	}

	// cancelling the caller's context stops nothing: the producer runs to
	// completion and every record is still delivered
	assert.Equal(t, int64(4), received.Load())
	assert.Zero(t, p.Dropped())
}
