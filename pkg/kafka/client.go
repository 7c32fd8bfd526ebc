// Package kafka 提供了与 Kafka 消息队列交互的功能：承载 C6 Utility Store
// 的异步 EMA 更新管道（fire-and-forget，见 SPEC_FULL.md §5 步骤 9）。
package kafka

import (
	"context"
	"encoding/json"

	"bvrag/internal/config"
	"bvrag/pkg/log"
	"bvrag/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// UtilityUpdateProcessor 定义了消费 UtilityUpdateEvent 的处理接口，
// 解耦 Kafka 消费者与具体的 utility store 实现。
type UtilityUpdateProcessor interface {
	ApplyUtilityUpdate(ctx context.Context, event tasks.UtilityUpdateEvent) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.UtilityTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceUtilityUpdate 异步发送一条 utility 更新事件到 Kafka，失败仅记录日志，
// 不阻塞也不影响已返回给用户的答案（best-effort，符合 fire-and-forget 约定）。
func ProduceUtilityUpdate(ctx context.Context, event tasks.UtilityUpdateEvent) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化 utility 更新事件失败: %v", err)
		return
	}
	if err := producer.WriteMessages(ctx, kafka.Message{Value: eventBytes}); err != nil {
		log.Errorf("发送 utility 更新事件到 Kafka 失败: %v", err)
	}
}

// StartConsumer 启动一个 Kafka 消费者来处理 utility 更新事件。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor UtilityUpdateProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.UtilityTopic,
		GroupID:  "bvrag-utility-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer r.Close()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.UtilityTopic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到停机信号，退出")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			continue
		}

		var event tasks.UtilityUpdateEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 utility 更新事件: %v, value: %s", err, string(m.Value))
			_ = r.CommitMessages(ctx, m)
			continue
		}

		if err := processor.ApplyUtilityUpdate(ctx, event); err != nil {
			log.Errorf("应用 utility 更新失败: %v", err)
			// 学习信号丢失不影响正确性，提交 offset 继续消费而非阻塞队列。
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}
