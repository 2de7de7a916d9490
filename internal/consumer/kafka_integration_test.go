//go:build integration

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/outbox"
	"example.com/fittrack/internal/persistence/memory"
	"example.com/fittrack/internal/profile"
)

func TestSavedActivityUpdatesProgressThroughKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]
	topic := "fitness_activity_events_it"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	logger := zerolog.New(testWriter{t})
	store := memory.NewStore()
	members := profile.NewAccessor(store)
	require.NoError(t, members.Set(ctx, "user-1", map[string]any{"firstName": "Ada"}, false))

	ob := outbox.New(store, topic, logger)
	writer := outbox.NewRecordingWriter(members, ob, logger)
	record := domain.NewActivityRecord("Running", 30, &domain.Coordinates{Latitude: 52.52, Longitude: 13.405}, 4200, time.Now())
	key := domain.ActivityKey(time.Now())
	require.NoError(t, writer.AppendActivity(ctx, "user-1", key, record))

	producer := outbox.NewKafkaProducer([]string{broker})
	defer producer.Close()
	dispatcher := outbox.NewDispatcher(store, producer, time.Second, 10, logger)
	published, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, published)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "fittrack-progress-it",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	proc := NewProcessor(reader, NewProgressHandler(members, logger), WithLogger(logger))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	require.Eventually(t, func() bool {
		member, err := members.Get(ctx, "user-1")
		if err != nil {
			return false
		}
		return member.ProgressData[fieldLastActivityKey] == key
	}, 60*time.Second, 500*time.Millisecond)

	member, err := members.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, member.ProgressData[fieldTotalActivities])
	require.Equal(t, 4200, member.ProgressData[fieldTotalSteps])
	require.Contains(t, member.Activities, key)
}
