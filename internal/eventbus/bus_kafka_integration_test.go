//go:build integration

package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "quorum/pkg/domain"
	"quorum/pkg/testutil/containers"
)

func TestKafkaPublisherIntegration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const topic = "membership.lifecycle.test"
	publisher, err := NewKafka(ctx, KafkaConfig{
		Brokers:    []string{rp.Broker},
		Topic:      topic,
		Partitions: 3,
	})
	require.NoError(t, err)
	defer publisher.Close()

	// Idempotent topic creation must not fail on reconnect.
	again, err := NewKafka(ctx, KafkaConfig{Brokers: []string{rp.Broker}, Topic: topic, Partitions: 3})
	require.NoError(t, err)
	again.Close()

	memberID := id.NewMemberID()
	tenantID := id.TenantID(uuid.New())
	names := []string{"membership.submitted", "membership.approved", "membership.activated"}
	for i, name := range names {
		envelope := Envelope{
			ID:            uuid.New(),
			SchemaVersion: SchemaVersion,
			Name:          name,
			MemberID:      memberID,
			TenantID:      tenantID,
			Version:       int64(i + 1),
			OccurredAt:    time.Now().UTC(),
			Payload:       json.RawMessage(`{}`),
		}
		require.NoError(t, publisher.Publish(ctx, envelope))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < len(names) {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}
	require.Len(t, records, len(names))

	// One member's events share a key, so they land on one partition in
	// produce order.
	partition := records[0].Partition
	for i, record := range records {
		assert.Equal(t, memberID.String(), string(record.Key))
		assert.Equal(t, partition, record.Partition)

		var got Envelope
		require.NoError(t, json.Unmarshal(record.Value, &got))
		assert.Equal(t, names[i], got.Name)
		assert.Equal(t, int64(i+1), got.Version)
		assert.Equal(t, memberID, got.MemberID)
	}
}
