//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"branchrate/internal/audit"
	"branchrate/pkg/testutil/containers"
)

func TestKafkaSinkAgainstBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	topic := "rate-audit-" + uuid.NewString()

	sink, err := audit.NewKafkaSink(broker.Brokers, topic)
	require.NoError(t, err)
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sink.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionRateApplied,
		BranchID:  "2",
		Rate:      "4.75",
		Affected:  []string{"2", "4", "5"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "2", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, audit.ActionRateApplied, got.Action)
	require.Equal(t, []string{"2", "4", "5"}, got.Affected)
}
