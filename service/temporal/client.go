package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Client starts settlement workflows against a Temporal cluster. It
// implements the relay package's WorkflowStarter.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// sellWorkflowID builds the deterministic workflow ID for a sell settlement.
// The event identity in the ID means a duplicate start for the same event
// collides with the running execution instead of spawning a second one.
func sellWorkflowID(signature string, logIndex int) string {
	return fmt.Sprintf("settle-sell-%s-%d", signature, logIndex)
}

// StartSellSettlement starts the sell settlement workflow for the given
// settlement. Starting an already-running settlement is treated as success.
func (c *Client) StartSellSettlement(ctx context.Context, settlementID int64, signature string, logIndex int) error {
	workflowID := sellWorkflowID(signature, logIndex)

	c.logger.Debug("starting sell settlement workflow",
		"workflow_id", workflowID,
		"settlement_id", settlementID,
	)

	_, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, "SettleSellWorkflow", SettleSellInput{
		SettlementID: settlementID,
		Signature:    signature,
		LogIndex:     logIndex,
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			c.logger.Debug("sell settlement workflow already running", "workflow_id", workflowID)
			return nil
		}
		return fmt.Errorf("failed to start workflow %s: %w", workflowID, err)
	}

	c.logger.Info("sell settlement workflow started",
		"workflow_id", workflowID,
		"settlement_id", settlementID,
	)
	return nil
}

// Close closes the underlying Temporal connection.
func (c *Client) Close() {
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's log.Logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
