package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/smsync/internal/provider"
	"github.com/matheus3301/smsync/internal/provider/providertest"
)

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

func TestMarkReadBothTables(t *testing.T) {
	s := providertest.Open(t)
	ctx := context.Background()

	textID := providertest.Text(t, s, "+15550001", "hello", 1_000)
	thread := providertest.Get(t, s, provider.TableText, textID).ThreadID
	mmsID := providertest.Insert(t, s, provider.TableMultimedia, provider.Fields{
		ThreadID:  thread,
		Addresses: []string{"+15550001"},
		Date:      2,
	})
	otherID := providertest.Text(t, s, "+15550002", "elsewhere", 3_000)

	trig := &countingTrigger{}
	a := NewActions(s, trig, nil)

	n, err := a.MarkRead(ctx, thread, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, providertest.Get(t, s, provider.TableText, textID).Read)
	assert.True(t, providertest.Get(t, s, provider.TableMultimedia, mmsID).Read)
	assert.False(t, providertest.Get(t, s, provider.TableText, otherID).Read)

	_, err = a.MarkRead(ctx, thread, false)
	require.NoError(t, err)
	assert.False(t, providertest.Get(t, s, provider.TableText, textID).Read)
	assert.Equal(t, 2, trig.n)
}

func TestDeleteThread(t *testing.T) {
	s := providertest.Open(t)
	ctx := context.Background()

	first := providertest.Text(t, s, "+15550001", "one", 1_000)
	thread := providertest.Get(t, s, provider.TableText, first).ThreadID
	providertest.Text(t, s, "+15550001", "two", 2_000)
	providertest.Insert(t, s, provider.TableMultimedia, provider.Fields{
		ThreadID:  thread,
		Addresses: []string{"+15550001"},
		Date:      3,
	})
	keep := providertest.Text(t, s, "+15550002", "stays", 4_000)

	trig := &countingTrigger{}
	a := NewActions(s, trig, nil)

	n, err := a.Delete(ctx, thread)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, trig.n)

	for _, table := range tables {
		rows, err := s.Query(ctx, provider.Query{Table: table, ThreadID: thread})
		require.NoError(t, err)
		assert.Empty(t, rows, "%s rows left in deleted thread", table)
	}
	providertest.Get(t, s, provider.TableText, keep)
}

func TestInvalidThread(t *testing.T) {
	a := NewActions(providertest.Open(t), nil, nil)
	_, err := a.MarkRead(context.Background(), 0, true)
	assert.True(t, errors.Is(err, ErrInvalidThread))
	_, err = a.Delete(context.Background(), -1)
	assert.True(t, errors.Is(err, ErrInvalidThread))
}
