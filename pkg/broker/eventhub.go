package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"
	"github.com/go-logr/logr"

	"github.com/MiguelElGallo/evsnow/pkg/model"
)

// EventHubBroker implements Broker against a single Azure Event Hub +
// consumer group, adapted from the teacher's EventHubSource (spec.md §4.4
// startup step 2: "Open a broker cursor").
type EventHubBroker struct {
	Namespace     string
	EventHub      string
	ConsumerGroup string
	ConnectionStr string // optional: connection-string auth instead of managed identity
	ReceiveWindow time.Duration
	Log           logr.Logger

	mu     sync.Mutex
	client *azeventhubs.ConsumerClient
}

func NewEventHubBroker(namespace, eventHub, consumerGroup, connectionStr string, log logr.Logger) *EventHubBroker {
	if consumerGroup == "" {
		consumerGroup = azeventhubs.DefaultConsumerGroup
	}
	return &EventHubBroker{
		Namespace:     namespace,
		EventHub:      eventHub,
		ConsumerGroup: consumerGroup,
		ConnectionStr: connectionStr,
		ReceiveWindow: 5 * time.Second,
		Log:           log.WithName("broker").WithName("eventhub"),
	}
}

func (b *EventHubBroker) Connect(ctx context.Context) ([]string, error) {
	var (
		client *azeventhubs.ConsumerClient
		err    error
	)

	if b.ConnectionStr != "" {
		client, err = azeventhubs.NewConsumerClientFromConnectionString(b.ConnectionStr, b.EventHub, b.ConsumerGroup, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("creating Azure credential: %w", credErr)
		}
		client, err = azeventhubs.NewConsumerClient(b.Namespace, b.EventHub, b.ConsumerGroup, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating Event Hub consumer client: %w", err)
	}

	props, err := client.GetEventHubProperties(ctx, nil)
	if err != nil {
		client.Close(ctx)
		return nil, fmt.Errorf("fetching Event Hub properties: %w", err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()

	b.Log.Info("connected to event hub",
		"namespace", b.Namespace, "eventHub", b.EventHub, "consumerGroup", b.ConsumerGroup,
		"partitions", len(props.PartitionIDs))
	return props.PartitionIDs, nil
}

func (b *EventHubBroker) OpenCursor(ctx context.Context, partition string, afterSequence uint64, haveCheckpoint bool, start StartPosition) (Cursor, error) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("broker not connected")
	}

	var startPos azeventhubs.StartPosition
	switch {
	case haveCheckpoint:
		seq := int64(afterSequence)
		startPos = azeventhubs.StartPosition{SequenceNumber: &seq, Inclusive: false}
	case start == StartEarliest:
		startPos = azeventhubs.StartPosition{Earliest: boolPtr(true)}
	default:
		startPos = azeventhubs.StartPosition{Latest: boolPtr(true)}
	}

	pc, err := client.NewPartitionClient(partition, &azeventhubs.PartitionClientOptions{
		StartPosition: startPos,
	})
	if err != nil {
		return nil, fmt.Errorf("opening partition client for %s: %w", partition, err)
	}

	return &eventHubCursor{
		partition:     partition,
		client:        pc,
		receiveWindow: b.ReceiveWindow,
		log:           b.Log,
	}, nil
}

func (b *EventHubBroker) Close(ctx context.Context) error {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close(ctx)
}

type eventHubCursor struct {
	partition     string
	client        *azeventhubs.PartitionClient
	receiveWindow time.Duration
	log           logr.Logger
}

func (c *eventHubCursor) Receive(ctx context.Context, maxEvents int) ([]model.Event, error) {
	receiveCtx, cancel := context.WithTimeout(ctx, c.receiveWindow)
	defer cancel()

	received, err := c.client.ReceiveEvents(receiveCtx, maxEvents, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if receiveCtx.Err() != nil {
			// poll timeout — no events available, not an error condition.
			return nil, nil
		}
		return nil, fmt.Errorf("receiving events from partition %s: %w", c.partition, err)
	}

	events := make([]model.Event, 0, len(received))
	for _, e := range received {
		enqueued := time.Time{}
		if e.EnqueuedTime != nil {
			enqueued = e.EnqueuedTime.UTC()
		}
		events = append(events, model.Event{
			Body:             e.Body,
			Partition:        c.partition,
			SequenceNumber:   uint64(e.SequenceNumber),
			Offset:           e.Offset,
			EnqueuedTime:     enqueued,
			Properties:       convertProperties(e.Properties),
			SystemProperties: convertProperties(e.SystemProperties),
		})
	}
	return events, nil
}

func (c *eventHubCursor) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

func convertProperties(src map[string]any) model.PropertyMap {
	if len(src) == 0 {
		return nil
	}
	out := make(model.PropertyMap, len(src))
	for k, v := range src {
		switch val := v.(type) {
		case string:
			out[k] = model.StringValue(val)
		case []byte:
			out[k] = model.BytesValue(val)
		case int64:
			out[k] = model.IntValue(val)
		case int:
			out[k] = model.IntValue(int64(val))
		case float64:
			out[k] = model.FloatValue(val)
		case bool:
			out[k] = model.BoolValue(val)
		default:
			out[k] = model.StringValue(fmt.Sprintf("%v", val))
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
