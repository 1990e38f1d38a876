package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
	"github.com/loomworks/loom/pkg/export"
)

// WebhookSend delivers the first upstream file to a webhook URL through the
// webhook export adapter and passes the file through on success. A remote
// rejection fails the node, same as a transport error.
type WebhookSend struct {
	adapters *export.Registry
}

// NewWebhookSend builds the webhook_send handler.
func NewWebhookSend(adapters *export.Registry) *WebhookSend {
	return &WebhookSend{adapters: adapters}
}

func (h *WebhookSend) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	adapter, err := h.adapters.Get("webhook")
	if err != nil {
		return runtime.Result{}, err
	}

	summary, err := adapter.Export(ctx, inv.FirstUpstream(), node.Config)
	if err != nil {
		return runtime.Result{}, err
	}
	if !summary.Success {
		return runtime.Result{}, fmt.Errorf("webhook delivery failed: %s", summaryFailure(summary))
	}

	status := "N/A"
	if summary.StatusCode != 0 {
		status = fmt.Sprintf("%d", summary.StatusCode)
	}
	return runtime.Result{
		Log:        fmt.Sprintf("Webhook: %s", status),
		OutputPath: inv.FirstUpstream(),
	}, nil
}

// DBInsert writes the first upstream file into a database table through the
// connector named by db_type (default mysql) and passes the file through.
// Config: db_type, table_name, plus the connector's connection settings.
type DBInsert struct {
	connectors *connector.Registry
}

// NewDBInsert builds the db_insert handler.
func NewDBInsert(connectors *connector.Registry) *DBInsert {
	return &DBInsert{connectors: connectors}
}

func (h *DBInsert) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	dbType := stringOpt(node.Config, "db_type", "mysql")

	conn, err := h.connectors.Get(dbType)
	if err != nil {
		return runtime.Result{}, err
	}
	if err := conn.Connect(node.Config); err != nil {
		return runtime.Result{}, fmt.Errorf("connect %s: %w", dbType, err)
	}

	if err := conn.Write(ctx, inv.FirstUpstream(), node.Config); err != nil {
		return runtime.Result{}, fmt.Errorf("write via %s: %w", dbType, err)
	}

	return runtime.Result{
		Log:        fmt.Sprintf("Inserted to %s", stringOpt(node.Config, "table_name", "unknown")),
		OutputPath: inv.FirstUpstream(),
	}, nil
}

// Export pushes the first upstream file to an external system through the
// adapter named by adapter_type (default webhook). Terminal: no output path
// is recorded, so nothing downstream can consume an export node.
type Export struct {
	adapters *export.Registry
}

// NewExport builds the export handler.
func NewExport(adapters *export.Registry) *Export {
	return &Export{adapters: adapters}
}

func (h *Export) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	adapterType := stringOpt(node.Config, "adapter_type", "webhook")

	adapter, err := h.adapters.Get(adapterType)
	if err != nil {
		return runtime.Result{}, err
	}

	summary, err := adapter.Export(ctx, inv.FirstUpstream(), node.Config)
	if err != nil {
		return runtime.Result{}, err
	}
	if !summary.Success {
		return runtime.Result{}, fmt.Errorf("export via %s failed: %s", adapterType, summaryFailure(summary))
	}

	detail, err := json.Marshal(summary)
	if err != nil {
		detail = []byte(`{"success":true}`)
	}
	return runtime.Result{Log: string(detail)}, nil
}

// summaryFailure condenses a non-success summary into one line.
func summaryFailure(s *export.Summary) string {
	switch {
	case s.Error != "":
		return s.Error
	case len(s.Errors) > 0:
		return strings.Join(s.Errors, "; ")
	case s.StatusCode != 0:
		return fmt.Sprintf("status %d", s.StatusCode)
	}
	return "rejected by remote"
}
