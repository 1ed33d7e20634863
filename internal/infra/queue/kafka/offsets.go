package kafka

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type partitionKey struct {
	topic     string
	partition int32
}

// partitionOffsets holds the messages of one partition handed out but not
// yet covered by a commit. The value is true once the message is acked.
type partitionOffsets struct {
	inflight  map[kafka.Offset]bool
	committed kafka.Offset
}

// offsetTracker decides which offset may be committed when messages of a
// partition are acked out of order. A commit never moves past a message that
// is still being handled, so a crash redelivers it.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[partitionKey]*partitionOffsets)}
}

// track records a received message.
func (t *offsetTracker) track(key partitionKey, off kafka.Offset) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.parts[key]
	if !ok {
		p = &partitionOffsets{inflight: make(map[kafka.Offset]bool), committed: kafka.OffsetInvalid}
		t.parts[key] = p
	}
	p.inflight[off] = false
}

// ack marks a message handled and returns the offset to commit for its
// partition, if the commit point advanced.
func (t *offsetTracker) ack(key partitionKey, off kafka.Offset) (kafka.Offset, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.parts[key]
	if !ok {
		return 0, false
	}
	if _, ok := p.inflight[off]; !ok {
		return 0, false
	}
	p.inflight[off] = true

	var (
		lowestPending kafka.Offset
		hasPending    bool
		highestAcked  kafka.Offset
		hasAcked      bool
	)
	for o, acked := range p.inflight {
		if !acked {
			if !hasPending || o < lowestPending {
				lowestPending, hasPending = o, true
			}
			continue
		}
		if !hasAcked || o > highestAcked {
			highestAcked, hasAcked = o, true
		}
	}

	var commit kafka.Offset
	switch {
	case hasPending:
		commit = lowestPending
	case hasAcked:
		commit = highestAcked + 1
	default:
		return 0, false
	}

	for o, acked := range p.inflight {
		if acked && o < commit {
			delete(p.inflight, o)
		}
	}

	if p.committed != kafka.OffsetInvalid && commit <= p.committed {
		return 0, false
	}
	p.committed = commit
	return commit, true
}

// revoke forgets partitions the consumer no longer owns. Their unacked
// messages are redelivered to the new owner.
func (t *offsetTracker) revoke(partitions []kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tp := range partitions {
		if tp.Topic == nil {
			continue
		}
		delete(t.parts, partitionKey{topic: *tp.Topic, partition: tp.Partition})
	}
}

func keyOf(tp kafka.TopicPartition) partitionKey {
	var topic string
	if tp.Topic != nil {
		topic = *tp.Topic
	}
	return partitionKey{topic: topic, partition: tp.Partition}
}
