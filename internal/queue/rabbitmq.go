package queue

import (
	"context"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"gopkg.in/yaml.v2"
)

type rabbitmq struct {
	ctx  context.Context
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQ(ctx context.Context, url string) (Channel, error) {
	conn, err := amqp.Dial(url)

	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()

	if err != nil {
		return nil, err
	}

	return &rabbitmq{ctx: ctx, conn: conn, ch: ch}, nil
}

func (r *rabbitmq) CreateQueue(queue string) error {
	_, err := r.ch.QueueDeclare(queue, false, false, false, false, nil)
	return err
}

func (r *rabbitmq) Consume(queue string, data interface{}) (bool, Delivery, error) {
	msg, ok, err := r.ch.Get(queue, false)

	if err != nil {
		return false, nil, errors.Wrapf(err, "rabbitmq get '%s'", queue)
	}

	if !ok {
		return false, nil, nil
	}

	if err = yaml.Unmarshal(msg.Body, data); err != nil {
		_ = msg.Nack(false, false)
		return false, nil, errors.Wrapf(err, "unable to decode '%s' message", queue)
	}

	return true, &rabbitmqDelivery{msg: msg}, nil
}

func (r *rabbitmq) Publish(queue string, data interface{}) error {
	body, err := yaml.Marshal(data)

	if err != nil {
		return errors.Wrapf(err, "unable to encode '%s' message", queue)
	}

	return r.ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType: "text/yaml",
		Body:        body,
	})
}
