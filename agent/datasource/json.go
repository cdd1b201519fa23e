// Package datasource provides order lookups for the order status action.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
)

// JSONFile serves orders from a JSON array on disk. The file is read once,
// on first lookup.
type JSONFile struct {
	path string

	once    sync.Once
	orders  map[string]map[string]any
	loadErr error
}

var _ actionx.OrderSource = (*JSONFile)(nil)

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (j *JSONFile) load() {
	raw, err := os.ReadFile(j.path)
	if err != nil {
		j.loadErr = fmt.Errorf("read orders file: %w", err)
		return
	}

	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		j.loadErr = fmt.Errorf("decode orders file: %w", err)
		return
	}

	j.orders = make(map[string]map[string]any, len(list))
	for _, o := range list {
		id, _ := o["order_id"].(string)
		if id = strings.TrimSpace(id); id != "" {
			j.orders[id] = o
		}
	}
}

func (j *JSONFile) GetOrder(_ context.Context, orderID string) (map[string]any, error) {
	j.once.Do(j.load)
	if j.loadErr != nil {
		return nil, j.loadErr
	}

	order, ok := j.orders[orderID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(order))
	for k, v := range order {
		out[k] = v
	}
	return out, nil
}
