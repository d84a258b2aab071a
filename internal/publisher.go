package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher delivers a simulated provider event to the downstream consumer.
// The topic is the delivery target: the receiver URL for the http driver, the
// queue topic for the others.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

type watermillPublisher struct {
	driver    string
	publisher message.Publisher
	closeFn   func() error
}

// DeliveryFactory builds a watermill publisher for a custom delivery driver.
type DeliveryFactory func(cfg DeliveryConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var deliveryFactories = map[string]DeliveryFactory{
	"gochannel": buildGoChannelDelivery,
}

// RegisterDeliveryDriver registers a custom delivery driver.
func RegisterDeliveryDriver(name string, factory DeliveryFactory) {
	if name == "" || factory == nil {
		return
	}
	deliveryFactories[strings.ToLower(name)] = factory
}

// NewPublisher builds the delivery publisher for the configured driver.
func NewPublisher(cfg DeliveryConfig) (Publisher, error) {
	logger := watermill.NewStdLogger(false, false)

	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "http"
	}

	switch driver {
	case "http":
		mode := strings.ToLower(cfg.HTTP.Mode)
		if mode != "topic_url" && mode != "base_url" {
			return nil, fmt.Errorf("unsupported http delivery mode: %s", cfg.HTTP.Mode)
		}
		if mode == "base_url" && cfg.HTTP.BaseURL == "" {
			return nil, errors.New("http base_url is required for base_url mode")
		}
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*http.Request, error) {
				target, err := deliveryTargetURL(cfg.HTTP, topic)
				if err != nil {
					return nil, err
				}
				req, err := wmhttp.DefaultMarshalMessageFunc(target, msg)
				if err != nil {
					return nil, err
				}
				req.Header.Set("Content-Type", "application/json")
				return req, nil
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return &watermillPublisher{driver: driver, publisher: pub}, nil
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return nil, errors.New("sql delivery driver and dsn are required")
		}
		schemaAdapter, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter,
			AutoInitializeSchema: cfg.SQL.InitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &watermillPublisher{driver: driver, publisher: pub, closeFn: db.Close}, nil
	default:
		if factory, ok := deliveryFactories[driver]; ok {
			pub, closeFn, err := factory(cfg, logger)
			if err != nil {
				return nil, err
			}
			return &watermillPublisher{driver: driver, publisher: pub, closeFn: closeFn}, nil
		}
		return nil, fmt.Errorf("unsupported delivery driver: %s", cfg.Driver)
	}
}

func (w *watermillPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := w.publisher.Publish(topic, msg); err != nil {
		IncDeliveryError(w.driver)
		return err
	}
	return nil
}

func (w *watermillPublisher) Close() error {
	if w.publisher == nil {
		return nil
	}
	err := w.publisher.Close()
	if w.closeFn != nil {
		return errors.Join(err, w.closeFn())
	}
	return err
}

func buildGoChannelDelivery(cfg DeliveryConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	pub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
			Persistent:          cfg.GoChannel.Persistent,
		},
		logger,
	)
	return pub, nil, nil
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

func deliveryTargetURL(cfg HTTPDelivery, topic string) (string, error) {
	switch strings.ToLower(cfg.Mode) {
	case "topic_url":
		if topic == "" {
			return "", errors.New("delivery target url is empty")
		}
		return topic, nil
	case "base_url":
		if cfg.BaseURL == "" {
			return "", errors.New("http base_url is empty")
		}
		if topic == "" {
			return strings.TrimRight(cfg.BaseURL, "/"), nil
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(topic, "/"), nil
	default:
		return "", fmt.Errorf("unsupported http delivery mode: %s", cfg.Mode)
	}
}
