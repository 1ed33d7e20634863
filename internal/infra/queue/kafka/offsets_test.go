package kafka

import (
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
)

var tasksP0 = partitionKey{topic: "operinos", partition: 0}

func TestOffsetTracker_OutOfOrderAcks(t *testing.T) {
	tr := newOffsetTracker()
	tr.track(tasksP0, 5)
	tr.track(tasksP0, 6)

	_, ok := tr.ack(tasksP0, 6)
	assert.False(t, ok, "offset 5 is still in flight")

	commit, ok := tr.ack(tasksP0, 5)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(7), commit)
}

func TestOffsetTracker_CommitStopsAtOldestInFlight(t *testing.T) {
	tr := newOffsetTracker()
	for _, o := range []kafka.Offset{10, 11, 12, 13} {
		tr.track(tasksP0, o)
	}

	commit, ok := tr.ack(tasksP0, 10)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(11), commit)

	_, ok = tr.ack(tasksP0, 13)
	assert.False(t, ok)

	commit, ok = tr.ack(tasksP0, 11)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(12), commit)

	commit, ok = tr.ack(tasksP0, 12)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(14), commit)
}

func TestOffsetTracker_OffsetGaps(t *testing.T) {
	tr := newOffsetTracker()
	tr.track(tasksP0, 20)
	tr.track(tasksP0, 23)

	commit, ok := tr.ack(tasksP0, 20)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(23), commit)
}

func TestOffsetTracker_PartitionsAreIndependent(t *testing.T) {
	tr := newOffsetTracker()
	p1 := partitionKey{topic: "operinos", partition: 1}
	tr.track(tasksP0, 5)
	tr.track(p1, 40)

	commit, ok := tr.ack(p1, 40)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(41), commit)

	commit, ok = tr.ack(tasksP0, 5)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(6), commit)
}

func TestOffsetTracker_UnknownAndRepeatedAcks(t *testing.T) {
	tr := newOffsetTracker()

	_, ok := tr.ack(tasksP0, 1)
	assert.False(t, ok, "untracked partition")

	tr.track(tasksP0, 2)
	_, ok = tr.ack(tasksP0, 1)
	assert.False(t, ok, "untracked offset")

	_, ok = tr.ack(tasksP0, 2)
	assert.True(t, ok)
	_, ok = tr.ack(tasksP0, 2)
	assert.False(t, ok, "already committed")
}

func TestOffsetTracker_Revoke(t *testing.T) {
	tr := newOffsetTracker()
	tr.track(tasksP0, 5)
	tr.track(tasksP0, 6)

	topic := "operinos"
	tr.revoke([]kafka.TopicPartition{{Topic: &topic, Partition: 0}})

	_, ok := tr.ack(tasksP0, 6)
	assert.False(t, ok, "revoked partitions are never committed")

	tr.track(tasksP0, 5)
	commit, ok := tr.ack(tasksP0, 5)
	assert.True(t, ok)
	assert.Equal(t, kafka.Offset(6), commit)
}

func TestKeyOf(t *testing.T) {
	topic := "operinos"
	assert.Equal(t, partitionKey{topic: "operinos", partition: 3},
		keyOf(kafka.TopicPartition{Topic: &topic, Partition: 3}))
	assert.Equal(t, partitionKey{partition: 1}, keyOf(kafka.TopicPartition{Partition: 1}))
}
