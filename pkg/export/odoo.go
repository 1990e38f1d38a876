package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kolo/xmlrpc"
)

// OdooAdapter pushes JSON records into an Odoo instance over its XML-RPC
// external API, one execute_kw call per record.
type OdooAdapter struct {
	// newClient is swappable for tests.
	newClient func(url string) (xmlrpcCaller, error)
}

type xmlrpcCaller interface {
	Call(serviceMethod string, args any, reply any) error
}

// NewOdooAdapter creates an Odoo XML-RPC adapter.
func NewOdooAdapter() *OdooAdapter {
	return &OdooAdapter{
		newClient: func(url string) (xmlrpcCaller, error) {
			return xmlrpc.NewClient(url, nil)
		},
	}
}

// Export authenticates against /xmlrpc/2/common, then calls the configured
// model method (default "create") once per record in the JSON data file.
// Per-record failures are collected rather than aborting the batch.
func (a *OdooAdapter) Export(_ context.Context, dataPath string, config map[string]any) (*Summary, error) {
	url, _ := config["url"].(string)
	db, _ := config["db"].(string)
	username, _ := config["username"].(string)
	password, _ := config["password"].(string)
	model, _ := config["model"].(string)
	if url == "" || db == "" || model == "" {
		return nil, fmt.Errorf("odoo export: config requires url, db, and model")
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = "create"
	}

	common, err := a.newClient(url + "/xmlrpc/2/common")
	if err != nil {
		return nil, fmt.Errorf("odoo export: %w", err)
	}

	var uid int64
	if err := common.Call("authenticate", []any{db, username, password, map[string]any{}}, &uid); err != nil {
		return nil, fmt.Errorf("odoo export: authenticate: %w", err)
	}
	if uid == 0 {
		return &Summary{Success: false, Error: "Authentication failed"}, nil
	}

	content, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("odoo export: read %s: %w", dataPath, err)
	}

	records, err := decodeRecords(content)
	if err != nil {
		return &Summary{Success: false, Error: "Data file is not valid JSON"}, nil
	}

	objects, err := a.newClient(url + "/xmlrpc/2/object")
	if err != nil {
		return nil, fmt.Errorf("odoo export: %w", err)
	}

	summary := &Summary{Total: len(records)}
	for _, record := range records {
		var result any
		err := objects.Call("execute_kw", []any{db, uid, password, model, method, []any{record}}, &result)
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		summary.CreatedIDs = append(summary.CreatedIDs, result)
	}
	summary.Success = len(summary.Errors) == 0
	return summary, nil
}

// Type returns "odoo_xmlrpc".
func (a *OdooAdapter) Type() string {
	return "odoo_xmlrpc"
}

// decodeRecords accepts either a JSON array of objects or a single object.
func decodeRecords(content []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(content, &list); err == nil {
		return list, nil
	}
	var single map[string]any
	if err := json.Unmarshal(content, &single); err != nil {
		return nil, err
	}
	return []map[string]any{single}, nil
}
