package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"

	"wa-gateway/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

func encodeSendRequest(req domain.SendRequest) (amqp.Publishing, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal send request: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.ID.String(),
		Timestamp:    req.QueuedAt,
		Type:         string(req.Media.Kind),
		Body:         body,
	}, nil
}

func decodeSendRequest(body []byte) (domain.SendRequest, error) {
	var req domain.SendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.SendRequest{}, fmt.Errorf("unmarshal send request: %w", err)
	}
	if req.InstanceID == "" || req.Number == "" {
		return domain.SendRequest{}, errors.New("send request without instance_id or number")
	}
	if _, err := domain.ParseMediaKind(string(req.Media.Kind)); err != nil {
		return domain.SendRequest{}, err
	}
	return req, nil
}
