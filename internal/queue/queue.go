package queue

type Channel interface {
	Consume(queue string, data interface{}) (ok bool, msg Delivery, err error)
	Publish(queue string, data interface{}) (err error)
	CreateQueue(queue string) (err error)
}

type Delivery interface {
	Ack() (err error)
	Nack(requeue bool) (err error)
}
