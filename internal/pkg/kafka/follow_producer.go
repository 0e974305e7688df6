package kafka

import (
	"Inkwell/internal/api/config"
	"Inkwell/internal/api/dto"
	"context"
	log "log/slog"
	"strconv"
	"sync"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// FollowProducer 异步投递关注事件，投递失败只记录日志
type FollowProducer struct {
	producer sarama.AsyncProducer
	topic    string
	wg       sync.WaitGroup
	closing  chan struct{}
	once     sync.Once
}

func NewFollowProducer(cfg config.KafkaConfig) (*FollowProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.FollowTopic == "" {
		return nil, errors.New("kafka brokers and follow_topic are required")
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, errors.WithMessage(err, "create kafka async producer")
	}
	return newFollowProducer(producer, cfg.FollowTopic), nil
}

func newFollowProducer(producer sarama.AsyncProducer, topic string) *FollowProducer {
	p := &FollowProducer{
		producer: producer,
		topic:    topic,
		closing:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.drainErrors()
	return p
}

func (p *FollowProducer) drainErrors() {
	defer p.wg.Done()
	for perr := range p.producer.Errors() {
		log.Error("kafka follow event delivery failed", "topic", p.topic, "err", perr.Err)
	}
}

// PublishFollow 以作品 ID 为分区键，同一作品的事件保持有序
func (p *FollowProducer) PublishFollow(ctx context.Context, event *dto.FollowEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.ErrorContext(ctx, "marshal follow event failed", "err", errors.WithMessage(err, "follow event"))
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(event.StoryID, 10)),
		Value: sarama.ByteEncoder(data),
	}
	select {
	case <-p.closing:
		log.WarnContext(ctx, "follow producer closed, drop event", "story_id", event.StoryID)
	case p.producer.Input() <- msg:
	case <-ctx.Done():
		log.WarnContext(ctx, "context done before follow event enqueued", "story_id", event.StoryID)
	}
}

// Close 刷出缓冲区并等待错误通道耗尽
func (p *FollowProducer) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closing)
		err = p.producer.Close()
		p.wg.Wait()
	})
	return err
}
